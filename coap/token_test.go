package coap

import "testing"

func TestRandomTokenGeneratorDefaultLength(t *testing.T) {
	gen := NewRandomTokenGenerator()
	tok := gen.NextToken()
	if len(tok) != 4 {
		t.Fatalf("expected a 4-byte token by default, got %d bytes", len(tok))
	}
}

func TestRandomTokenGeneratorCustomLength(t *testing.T) {
	gen := &RandomTokenGenerator{Length: 8}
	tok := gen.NextToken()
	if len(tok) != 8 {
		t.Fatalf("expected an 8-byte token, got %d bytes", len(tok))
	}
}

func TestRandomTokenGeneratorInvalidLengthFallsBackToFour(t *testing.T) {
	gen := &RandomTokenGenerator{Length: 12}
	tok := gen.NextToken()
	if len(tok) != 4 {
		t.Fatalf("expected the 4-byte fallback for an out-of-range length, got %d bytes", len(tok))
	}
}

func TestCountingTokenGeneratorCountsUp(t *testing.T) {
	gen := NewCountingTokenGenerator()
	first := gen.NextToken()
	second := gen.NextToken()
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected 1-byte tokens, got %d and %d", len(first), len(second))
	}
	if second[0] != first[0]+1 {
		t.Errorf("expected token to count up by one, got %d then %d", first[0], second[0])
	}
}

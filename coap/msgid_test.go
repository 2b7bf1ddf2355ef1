package coap

import "testing"

func TestMessageIDGeneratorNextNeverRepeatsImmediately(t *testing.T) {
	gen := newMessageIDGenerator()
	prev := gen.Next()
	for i := 0; i < 100; i++ {
		next := gen.Next()
		if next == prev {
			t.Fatalf("Next returned the same ID twice in a row: %d", next)
		}
		prev = next
	}
}

func TestMessageIDGeneratorFollowIncrementsByOne(t *testing.T) {
	gen := newMessageIDGenerator()
	if got := gen.Follow(41); got != 42 {
		t.Errorf("Follow(41) = %d, want 42", got)
	}
	if got := gen.Follow(0xFFFF); got != 0 {
		t.Errorf("Follow(0xFFFF) = %d, want wraparound to 0", got)
	}
}

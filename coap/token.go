package coap

import (
	"math/rand"
	"sync"
	"time"
)

// TokenGenerator produces the opaque 1-8 byte token that correlates a
// request with its eventual response.
type TokenGenerator interface {
	NextToken() []byte
}

// RandomTokenGenerator draws tokens from a PRNG. Length is
// implementation-chosen in 1..8; by convention this engine uses 4.
type RandomTokenGenerator struct {
	Length int // 1..8, defaults to 4 if unset

	rand *rand.Rand
	mu   sync.Mutex
}

// NewRandomTokenGenerator returns a generator producing 4-byte tokens.
func NewRandomTokenGenerator() TokenGenerator {
	return &RandomTokenGenerator{
		Length: 4,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (t *RandomTokenGenerator) NextToken() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rand == nil {
		t.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	n := t.Length
	if n <= 0 || n > 8 {
		n = 4
	}
	tok := make([]byte, n)
	t.rand.Read(tok)
	return tok
}

// CountingTokenGenerator hands out 1-byte tokens that count up. Mainly
// used in tests where deterministic tokens make assertions simpler.
type CountingTokenGenerator struct {
	lastTokenSeq uint8
	mu           sync.Mutex
}

func NewCountingTokenGenerator() TokenGenerator {
	return &CountingTokenGenerator{}
}

func (t *CountingTokenGenerator) NextToken() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	tok := make([]byte, 1)
	t.lastTokenSeq++
	tok[0] = t.lastTokenSeq
	return tok
}

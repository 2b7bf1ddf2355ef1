package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		mut  func(c Config) Config
	}{
		{"zero min", func(c Config) Config { c.RetransmitInitialMin = 0; return c }},
		{"max below min", func(c Config) Config { c.RetransmitInitialMax = c.RetransmitInitialMin - time.Millisecond; return c }},
		{"negative attempts", func(c Config) Config { c.RetransmitMaxAttempts = -1; return c }},
		{"szx too large", func(c Config) Config { c.BlockSZX = 7; return c }},
		{"zero port", func(c Config) Config { c.DefaultPort = 0; return c }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := tc.mut(Default())
			require.Error(t, c.Validate())
		})
	}
}

package coap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := wrapError(KindHostNotFound, cause)
	require.ErrorIs(t, err, cause)
}

func TestErrorTimeoutAndTemporary(t *testing.T) {
	cases := []struct {
		kind      Kind
		timeout   bool
		temporary bool
	}{
		{KindTimeout, true, true},
		{KindHostNotFound, false, true},
		{KindInvalidURLScheme, false, false},
		{KindCancelled, false, false},
		{KindProtocolError, false, false},
	}
	for _, c := range cases {
		t.Run(c.kind.String(), func(t *testing.T) {
			err := wrapError(c.kind, nil)
			assert.Equal(t, c.timeout, err.Timeout())
			assert.Equal(t, c.temporary, err.Temporary())
		})
	}
}

func TestErrorStringWithAndWithoutCause(t *testing.T) {
	assert.Equal(t, "coap: Timeout", wrapError(KindTimeout, nil).Error())
	assert.NotEmpty(t, wrapError(KindInvalidPDU, errors.New("short packet")).Error())
}

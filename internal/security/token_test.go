package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_HashAndCheck(t *testing.T) {
	tok, err := NewToken(24)
	require.NoError(t, err)
	assert.Len(t, tok, 32)

	hash, err := HashToken(tok)
	require.NoError(t, err)
	require.NoError(t, ValidHash(hash))
	assert.True(t, CheckToken(hash, tok))
	assert.False(t, CheckToken(hash, tok+"x"))
	assert.False(t, CheckToken("", tok))

	assert.ErrorIs(t, ValidHash("plaintext"), ErrMalformedHash)
}

func TestBearer(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer  ", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := Bearer(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

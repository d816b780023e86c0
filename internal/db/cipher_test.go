package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipher_SealOpen(t *testing.T) {
	c := NewCipher("secret")
	a, err := c.Seal([]byte("chest pain since noon"))
	require.NoError(t, err)
	b, err := c.Seal([]byte("chest pain since noon"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "fresh nonce per seal")

	plain, err := c.Open(a)
	require.NoError(t, err)
	assert.Equal(t, "chest pain since noon", string(plain))
}

func TestCipher_OpenRejects(t *testing.T) {
	c := NewCipher("secret")
	token, err := c.Seal([]byte("x"))
	require.NoError(t, err)

	_, err = NewCipher("other").Open(token)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = c.Open("not base64 !!")
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = c.Open("c2hvcnQ")
	assert.ErrorIs(t, err, ErrDecrypt)
}

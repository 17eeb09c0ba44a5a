package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	body := []byte(`{"object":"instagram"}`)
	valid := sign(body)

	require.True(t, verifySignature(testAppSecret, body, valid))
	// Hex digest comparison is case-insensitive.
	require.True(t, verifySignature(testAppSecret, body, "sha256="+strings.ToUpper(strings.TrimPrefix(valid, "sha256="))))

	require.False(t, verifySignature(testAppSecret, body, ""))
	require.False(t, verifySignature(testAppSecret, body, strings.TrimPrefix(valid, "sha256=")))
	require.False(t, verifySignature(testAppSecret, body, "sha256=deadbeef"))
	require.False(t, verifySignature("other-secret", body, valid))
	require.False(t, verifySignature(testAppSecret, []byte(`tampered`), valid))
}

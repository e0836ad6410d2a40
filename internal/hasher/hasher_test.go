package hasher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_RoundTrip(t *testing.T) {
	t.Parallel()

	h := New(bcrypt.MinCost)

	for _, plain := range []string{
		"password123",
		"",
		"пароль-с-юникодом",
		strings.Repeat("x", 72),
		"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9." + strings.Repeat("payload", 30) + ".signature",
	} {
		hash, err := h.Hash(plain)
		require.NoError(t, err)
		require.NotEqual(t, plain, hash)
		require.True(t, h.Verify(plain, hash))
		require.False(t, h.Verify(plain+"!", hash))
	}
}

func TestHasher_SaltIsRandom(t *testing.T) {
	t.Parallel()

	h := New(bcrypt.MinCost)

	h1, err := h.Hash("password123")
	require.NoError(t, err)
	h2, err := h.Hash("password123")
	require.NoError(t, err)

	require.NotEqual(t, h1, h2)
}

// Длинные токены отличаются только хвостом: хэш обязан покрывать всю строку.
func TestHasher_LongInputsDifferingAfter72Bytes(t *testing.T) {
	t.Parallel()

	h := New(bcrypt.MinCost)
	prefix := strings.Repeat("a", 100)

	hash, err := h.Hash(prefix + "tail-1")
	require.NoError(t, err)

	require.True(t, h.Verify(prefix+"tail-1", hash))
	require.False(t, h.Verify(prefix+"tail-2", hash))
}

func TestHasher_CostFallback(t *testing.T) {
	t.Parallel()

	require.Equal(t, bcrypt.DefaultCost, New(0).cost)
	require.Equal(t, bcrypt.DefaultCost, New(bcrypt.MaxCost+1).cost)
	require.Equal(t, 12, New(12).cost)

	hash, err := New(bcrypt.MinCost).Hash("pw")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	require.Equal(t, bcrypt.MinCost, cost)
}

func TestHasher_VerifyGarbageHash(t *testing.T) {
	t.Parallel()

	require.False(t, New(bcrypt.MinCost).Verify("pw", "not-a-bcrypt-hash"))
}

package epoch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticShardLayoutIsDeterministic(t *testing.T) {
	l, err := NewStaticShardLayout(4)
	require.NoError(t, err)
	s1, err := l.AccountIDToShardID("alice.near", "epoch-0")
	require.NoError(t, err)
	s2, err := l.AccountIDToShardID("alice.near", "epoch-1")
	require.NoError(t, err)
	require.Equal(t, s1, s2)
}

func TestStaticShardLayoutStaysInRange(t *testing.T) {
	l, err := NewStaticShardLayout(3)
	require.NoError(t, err)
	for _, acct := range []string{"a", "b", "c", "very.long.account.name.near"} {
		s, err := l.AccountIDToShardID(acct, "e")
		require.NoError(t, err)
		require.Less(t, uint64(s), uint64(3))
	}
}

func TestNewStaticShardLayoutRejectsZeroShards(t *testing.T) {
	_, err := NewStaticShardLayout(0)
	require.Error(t, err)
}

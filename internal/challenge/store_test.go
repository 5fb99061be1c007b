package challenge_test

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/keybot/internal/challenge"
	"github.com/m3rciful/keybot/internal/store"
)

func TestMemoryStoreReissueAfterWrongAnswer(t *testing.T) {
	st := store.NewMemory()
	svc, err := challenge.NewService(st, challenge.Config{MaxOperand: 2, Choices: 2}, rand.New(rand.NewPCG(7, 9)))
	require.NoError(t, err)
	ctx := context.Background()

	prev, err := svc.Issue(ctx, 42)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		ok, err := svc.Verify(ctx, 42, prev.Answer()+100)
		require.NoError(t, err)
		require.False(t, ok)

		next, err := svc.Issue(ctx, 42)
		require.NoError(t, err)
		require.False(t, next.A == prev.A && next.B == prev.B, "round %d reused %+v", i, next)
		prev = next
	}

	ok, err := svc.Verify(ctx, 42, prev.Answer())
	require.NoError(t, err)
	assert.True(t, ok)
	_, open, err := st.LoadChallenge(ctx, 42)
	require.NoError(t, err)
	assert.False(t, open, "a passed challenge is consumed")
}

package store

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/keybot/internal/challenge"
	"github.com/m3rciful/keybot/internal/session"
)

type backend interface {
	StateStore
	challenge.Repository
}

func newSQLite(t *testing.T) *SQL {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// every connection to :memory: is its own database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	ddl, err := os.ReadFile("../../migrations/000001_chat_sessions.up.sql")
	require.NoError(t, err)
	for _, stmt := range strings.Split(string(ddl), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return NewSQL(db)
}

func backends(t *testing.T) map[string]backend {
	return map[string]backend{
		"sql":    newSQLite(t),
		"memory": NewMemory(),
	}
}

func TestStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, found, err := s.State(ctx, 7)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.SetState(ctx, 7, session.FirstCaptcha))
			st, found, err := s.State(ctx, 7)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, session.FirstCaptcha, st)

			require.NoError(t, s.SetState(ctx, 7, session.AdminUnbanUser))
			st, _, err = s.State(ctx, 7)
			require.NoError(t, err)
			assert.Equal(t, session.AdminUnbanUser, st)

			err = s.SetState(ctx, 7, session.State{Flow: session.FlowAdmin, Step: session.StepHome})
			assert.ErrorIs(t, err, session.ErrUnknownState)
		})
	}
}

func TestLanguageWithoutStateKeepsStateAbsent(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, found, err := s.Language(ctx, 9)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.SetLanguage(ctx, 9, "fa"))
			lang, found, err := s.Language(ctx, 9)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "fa", lang)

			_, found, err = s.State(ctx, 9)
			require.NoError(t, err)
			assert.False(t, found, "a language alone does not make a state")

			require.NoError(t, s.SetState(ctx, 9, session.Home))
			lang, _, err = s.Language(ctx, 9)
			require.NoError(t, err)
			assert.Equal(t, "fa", lang, "writing the state keeps the language")
		})
	}
}

func TestResetRecreatesAtStart(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SetLanguage(ctx, 3, "ar"))
			require.NoError(t, s.SetState(ctx, 3, session.DeleteAccountConfirm))
			require.NoError(t, s.SaveChallenge(ctx, 3, challenge.Challenge{A: 1, B: 2, Choices: []int{3, 4}}))

			require.NoError(t, s.Reset(ctx, 3))

			st, found, err := s.State(ctx, 3)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, session.Start, st)

			_, found, err = s.Language(ctx, 3)
			require.NoError(t, err)
			assert.False(t, found)

			_, found, err = s.LoadChallenge(ctx, 3)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.Reset(ctx, 4), "reset of an unknown chat creates it")
			st, found, err = s.State(ctx, 4)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, session.Start, st)
		})
	}
}

func TestChallengeRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, found, err := s.LoadChallenge(ctx, 5)
			require.NoError(t, err)
			assert.False(t, found)

			first := challenge.Challenge{A: 4, B: 5, Choices: []int{12, 9, 3, 17}}
			require.NoError(t, s.SaveChallenge(ctx, 5, first))
			got, found, err := s.LoadChallenge(ctx, 5)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, first, got)

			second := challenge.Challenge{A: 2, B: 2, Choices: []int{4, 5}}
			require.NoError(t, s.SaveChallenge(ctx, 5, second))
			got, _, err = s.LoadChallenge(ctx, 5)
			require.NoError(t, err)
			assert.Equal(t, second, got)

			require.NoError(t, s.DeleteChallenge(ctx, 5))
			_, found, err = s.LoadChallenge(ctx, 5)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestSQLStateIgnoresRetiredCodes(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)
	_, err := s.db.Exec(`INSERT INTO chat_sessions (chat_id, state) VALUES (11, 7)`)
	require.NoError(t, err)

	_, found, err := s.State(ctx, 11)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryChallengeIsCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	choices := []int{1, 2}
	require.NoError(t, m.SaveChallenge(ctx, 1, challenge.Challenge{A: 1, B: 1, Choices: choices}))
	choices[0] = 99

	got, _, err := m.LoadChallenge(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got.Choices)
}

func TestSplitInts(t *testing.T) {
	vals, err := splitInts("3,14,15")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 14, 15}, vals)

	vals, err = splitInts("")
	require.NoError(t, err)
	assert.Nil(t, vals)

	_, err = splitInts("1,x")
	assert.Error(t, err)
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/keybot/core/logger"
	"github.com/m3rciful/keybot/internal/challenge"
	"github.com/m3rciful/keybot/internal/session"
)

const (
	upsertState = `INSERT INTO chat_sessions (chat_id, state) VALUES (?, ?)
ON CONFLICT (chat_id) DO UPDATE SET state = excluded.state, updated_at = CURRENT_TIMESTAMP`
	upsertLanguage = `INSERT INTO chat_sessions (chat_id, language) VALUES (?, ?)
ON CONFLICT (chat_id) DO UPDATE SET language = excluded.language, updated_at = CURRENT_TIMESTAMP`
	upsertChallenge = `INSERT INTO chat_challenges (chat_id, operand_a, operand_b, choices) VALUES (?, ?, ?, ?)
ON CONFLICT (chat_id) DO UPDATE SET operand_a = excluded.operand_a, operand_b = excluded.operand_b,
choices = excluded.choices, created_at = CURRENT_TIMESTAMP`
)

// SQL implements StateStore and challenge.Repository on top of the chat_sessions and
// chat_challenges tables. Queries are written with ? placeholders and rebound for the
// connection's driver.
type SQL struct {
	db *sqlx.DB
}

var (
	_ StateStore           = (*SQL)(nil)
	_ challenge.Repository = (*SQL)(nil)
)

// NewSQL wraps an open connection.
func NewSQL(db *sqlx.DB) *SQL {
	return &SQL{db: db}
}

type sessionRow struct {
	State    sql.NullInt64 `db:"state"`
	Language string        `db:"language"`
}

func (s *SQL) row(ctx context.Context, chatID int64) (sessionRow, bool, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT state, language FROM chat_sessions WHERE chat_id = ?`), chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return sessionRow{}, false, nil
	}
	if err != nil {
		return sessionRow{}, false, err
	}
	return row, true, nil
}

// State returns the stored state. A code no longer known to the machine is logged and
// reported as absent.
func (s *SQL) State(ctx context.Context, chatID int64) (session.State, bool, error) {
	row, ok, err := s.row(ctx, chatID)
	if err != nil {
		return session.State{}, false, fmt.Errorf("load state: %w", err)
	}
	if !ok || !row.State.Valid {
		return session.State{}, false, nil
	}
	st, err := session.DecodeState(int(row.State.Int64))
	if err != nil {
		logger.Warn(ctx, logger.CompStore, "state.decode",
			slog.String("reject", "unknown_state"),
			slog.Int64("code", row.State.Int64),
		)
		return session.State{}, false, nil
	}
	return st, true, nil
}

func (s *SQL) SetState(ctx context.Context, chatID int64, st session.State) error {
	code := st.Code()
	if code < 0 {
		return fmt.Errorf("save state %v: %w", st, session.ErrUnknownState)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(upsertState), chatID, code); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (s *SQL) Language(ctx context.Context, chatID int64) (string, bool, error) {
	row, ok, err := s.row(ctx, chatID)
	if err != nil {
		return "", false, fmt.Errorf("load language: %w", err)
	}
	if !ok || row.Language == "" {
		return "", false, nil
	}
	return row.Language, true, nil
}

func (s *SQL) SetLanguage(ctx context.Context, chatID int64, lang string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(upsertLanguage), chatID, lang); err != nil {
		return fmt.Errorf("save language: %w", err)
	}
	return nil
}

// Reset replaces the chat's record with a fresh one at session.Start.
func (s *SQL) Reset(ctx context.Context, chatID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []struct {
		query string
		args  []any
	}{
		{`DELETE FROM chat_challenges WHERE chat_id = ?`, []any{chatID}},
		{`DELETE FROM chat_sessions WHERE chat_id = ?`, []any{chatID}},
		{`INSERT INTO chat_sessions (chat_id, state) VALUES (?, ?)`, []any{chatID, session.Start.Code()}},
	}
	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, tx.Rebind(st.query), st.args...); err != nil {
			return fmt.Errorf("reset session: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	logger.Debug(ctx, logger.CompStore, "session.reset", slog.String("status", "ok"))
	return nil
}

type challengeRow struct {
	A       int    `db:"operand_a"`
	B       int    `db:"operand_b"`
	Choices string `db:"choices"`
}

func (s *SQL) SaveChallenge(ctx context.Context, chatID int64, c challenge.Challenge) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(upsertChallenge), chatID, c.A, c.B, joinInts(c.Choices))
	if err != nil {
		return fmt.Errorf("save challenge: %w", err)
	}
	return nil
}

func (s *SQL) LoadChallenge(ctx context.Context, chatID int64) (challenge.Challenge, bool, error) {
	var row challengeRow
	err := s.db.GetContext(ctx, &row,
		s.db.Rebind(`SELECT operand_a, operand_b, choices FROM chat_challenges WHERE chat_id = ?`), chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return challenge.Challenge{}, false, nil
	}
	if err != nil {
		return challenge.Challenge{}, false, fmt.Errorf("load challenge: %w", err)
	}
	choices, err := splitInts(row.Choices)
	if err != nil {
		return challenge.Challenge{}, false, fmt.Errorf("load challenge: %w", err)
	}
	return challenge.Challenge{A: row.A, B: row.B, Choices: choices}, true, nil
}

func (s *SQL) DeleteChallenge(ctx context.Context, chatID int64) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM chat_challenges WHERE chat_id = ?`), chatID); err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func splitInts(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	vals := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("choice %q: %w", p, err)
		}
		vals[i] = v
	}
	return vals, nil
}

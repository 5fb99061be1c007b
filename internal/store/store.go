// Package store persists per-chat conversation state, language preference and the open
// registration challenge.
package store

import (
	"context"

	"github.com/m3rciful/keybot/internal/session"
)

// StateStore is the per-chat record read and written around every dispatch.
//
// A chat without a record, or whose record holds no state, reports found=false. Reset
// re-creates the record at session.Start and drops any open challenge.
type StateStore interface {
	State(ctx context.Context, chatID int64) (session.State, bool, error)
	SetState(ctx context.Context, chatID int64, st session.State) error
	Language(ctx context.Context, chatID int64) (string, bool, error)
	SetLanguage(ctx context.Context, chatID int64, lang string) error
	Reset(ctx context.Context, chatID int64) error
}

package session

import (
	"context"

	"github.com/m3rciful/keybot/internal/accounts"
	"github.com/m3rciful/keybot/internal/challenge"
)

// AccountService is the account backend the machine provisions through. GetAccount returns
// nil without error for unknown users.
type AccountService interface {
	GetAccount(ctx context.Context, uid string) (*accounts.Account, error)
	CreateAccount(ctx context.Context, uid string, chatID int64, channel string) error
	DeleteAccount(ctx context.Context, uid string, reasonID int64) (bool, error)
	RequestNewKey(ctx context.Context, uid string, issueID *int64) (accounts.KeyGrant, error)
	GetOnlineConfig(ctx context.Context, uid string) (string, error)
	GetServerInfo(ctx context.Context, serverID int64) (*accounts.ServerInfo, error)
	ListDeleteReasons(ctx context.Context, lang string) ([]accounts.Option, error)
	// ListIssues is reserved for an issue picker ahead of re-provisioning. No state
	// reaches it yet; key requests go out without an issue id.
	ListIssues(ctx context.Context, lang string) ([]accounts.Option, error)
	BanUser(ctx context.Context, username string) (bool, error)
	UnbanUser(ctx context.Context, username string) (bool, error)
}

// ChallengeService hands out and checks the registration question.
type ChallengeService interface {
	Issue(ctx context.Context, chatID int64) (challenge.Challenge, error)
	Verify(ctx context.Context, chatID int64, answer int) (bool, error)
}

// Localization resolves text keys of one language. Missing keys panic.
type Localization interface {
	Text(key string) string
}

// Package challenge issues and checks the arithmetic question new users answer before
// they can register.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/m3rciful/keybot/core/logger"
)

const (
	DefaultMaxOperand = 9
	DefaultChoices    = 4
)

// ErrConfig is returned for settings that cannot produce a valid challenge.
var ErrConfig = errors.New("challenge: invalid config")

// Challenge asks for A + B and offers Choices, exactly one of which is the sum.
type Challenge struct {
	A       int
	B       int
	Choices []int
}

// Answer returns the expected sum.
func (c Challenge) Answer() int { return c.A + c.B }

// Repository persists the open challenge of a chat.
type Repository interface {
	SaveChallenge(ctx context.Context, chatID int64, c Challenge) error
	LoadChallenge(ctx context.Context, chatID int64) (Challenge, bool, error)
	DeleteChallenge(ctx context.Context, chatID int64) error
}

// Config bounds the generated questions.
type Config struct {
	// MaxOperand is the largest operand; operands start at 1.
	MaxOperand int
	// Choices is the number of answers offered, the correct one included.
	Choices int
}

// Validate reports whether cfg can yield enough distinct answers.
func (cfg Config) Validate() error {
	if cfg.MaxOperand < 2 {
		return fmt.Errorf("%w: max_operand must be at least 2", ErrConfig)
	}
	if cfg.Choices < 2 {
		return fmt.Errorf("%w: choices must be at least 2", ErrConfig)
	}
	// sums range over [2, 2*MaxOperand]
	if cfg.Choices > 2*cfg.MaxOperand-1 {
		return fmt.Errorf("%w: %d choices exceed %d possible sums", ErrConfig, cfg.Choices, 2*cfg.MaxOperand-1)
	}
	return nil
}

// Service generates challenges and verifies answers against the stored one.
type Service struct {
	repo Repository
	cfg  Config

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewService validates cfg and returns a Service. A nil rnd selects a randomly seeded one.
func NewService(repo Repository, cfg Config, rnd *rand.Rand) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Service{repo: repo, cfg: cfg, rnd: rnd}, nil
}

// Issue creates and stores a new challenge for chatID. Its operands always differ from
// the challenge it replaces.
func (s *Service) Issue(ctx context.Context, chatID int64) (Challenge, error) {
	prev, hadPrev, err := s.repo.LoadChallenge(ctx, chatID)
	if err != nil {
		return Challenge{}, fmt.Errorf("challenge: load previous: %w", err)
	}

	s.mu.Lock()
	c := s.generate(prev, hadPrev)
	s.mu.Unlock()

	if err := s.repo.SaveChallenge(ctx, chatID, c); err != nil {
		return Challenge{}, fmt.Errorf("challenge: save: %w", err)
	}
	logger.Debug(ctx, logger.CompChallenge, "challenge.issued", slog.Int("choices", len(c.Choices)))
	return c, nil
}

// Verify checks answer against the open challenge of chatID. A passed challenge is
// consumed; a failed one stays stored so the next Issue avoids its operands. A chat with
// no open challenge never verifies.
func (s *Service) Verify(ctx context.Context, chatID int64, answer int) (bool, error) {
	c, ok, err := s.repo.LoadChallenge(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("challenge: load: %w", err)
	}
	if !ok {
		logger.Info(ctx, logger.CompChallenge, "challenge.verify", slog.String("outcome", "missing"))
		return false, nil
	}
	passed := answer == c.Answer()
	logger.Info(ctx, logger.CompChallenge, "challenge.verify", slog.Bool("passed", passed))
	if !passed {
		return false, nil
	}
	if err := s.repo.DeleteChallenge(ctx, chatID); err != nil {
		return false, fmt.Errorf("challenge: consume: %w", err)
	}
	return true, nil
}

func (s *Service) generate(prev Challenge, hadPrev bool) Challenge {
	var a, b int
	for {
		a = 1 + s.rnd.IntN(s.cfg.MaxOperand)
		b = 1 + s.rnd.IntN(s.cfg.MaxOperand)
		if !hadPrev || a != prev.A || b != prev.B {
			break
		}
	}
	answer := a + b

	choices := []int{answer}
	seen := map[int]bool{answer: true}
	for len(choices) < s.cfg.Choices {
		v := 2 + s.rnd.IntN(2*s.cfg.MaxOperand-1)
		if seen[v] {
			continue
		}
		seen[v] = true
		choices = append(choices, v)
	}
	s.rnd.Shuffle(len(choices), func(i, j int) { choices[i], choices[j] = choices[j], choices[i] })
	return Challenge{A: a, B: b, Choices: choices}
}

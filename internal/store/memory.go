package store

import (
	"context"
	"slices"
	"sync"

	"github.com/m3rciful/keybot/internal/challenge"
	"github.com/m3rciful/keybot/internal/session"
)

type record struct {
	state    session.State
	hasState bool
	language string
}

// Memory is a process-local StateStore and challenge.Repository for development and tests.
type Memory struct {
	mu         sync.RWMutex
	sessions   map[int64]*record
	challenges map[int64]challenge.Challenge
}

var (
	_ StateStore           = (*Memory)(nil)
	_ challenge.Repository = (*Memory)(nil)
)

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions:   make(map[int64]*record),
		challenges: make(map[int64]challenge.Challenge),
	}
}

// entry returns the record for chatID, creating it. Callers hold the write lock.
func (m *Memory) entry(chatID int64) *record {
	rec, ok := m.sessions[chatID]
	if !ok {
		rec = &record{}
		m.sessions[chatID] = rec
	}
	return rec
}

func (m *Memory) State(_ context.Context, chatID int64) (session.State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[chatID]
	if !ok || !rec.hasState {
		return session.State{}, false, nil
	}
	return rec.state, true, nil
}

func (m *Memory) SetState(_ context.Context, chatID int64, st session.State) error {
	if !st.Valid() {
		return session.ErrUnknownState
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.entry(chatID)
	rec.state, rec.hasState = st, true
	return nil
}

func (m *Memory) Language(_ context.Context, chatID int64) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[chatID]
	if !ok || rec.language == "" {
		return "", false, nil
	}
	return rec.language, true, nil
}

func (m *Memory) SetLanguage(_ context.Context, chatID int64, lang string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(chatID).language = lang
	return nil
}

func (m *Memory) Reset(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.challenges, chatID)
	m.sessions[chatID] = &record{state: session.Start, hasState: true}
	return nil
}

func (m *Memory) SaveChallenge(_ context.Context, chatID int64, c challenge.Challenge) error {
	c.Choices = slices.Clone(c.Choices)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges[chatID] = c
	return nil
}

func (m *Memory) LoadChallenge(_ context.Context, chatID int64) (challenge.Challenge, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.challenges[chatID]
	if ok {
		c.Choices = slices.Clone(c.Choices)
	}
	return c, ok, nil
}

func (m *Memory) DeleteChallenge(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.challenges, chatID)
	return nil
}

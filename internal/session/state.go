package session

import (
	"errors"
	"fmt"
)

// ErrUnknownState is returned by DecodeState for codes outside the persisted set.
var ErrUnknownState = errors.New("session: unknown state code")

// Flow separates the regular user journey from the admin moderation section.
type Flow uint8

const (
	FlowUser Flow = iota
	FlowAdmin
)

// Step is a position inside a Flow.
type Step uint8

const (
	StepStart Step = iota
	StepHome
	StepSetLanguage
	StepFirstCaptcha
	StepOptIn
	StepOptInDeclined
	StepDeleteAccountReason
	StepDeleteAccountConfirm

	StepAdminHome
	StepAdminBanUser
	StepAdminUnbanUser
)

// State is the per-chat position of the conversation.
type State struct {
	Flow Flow
	Step Step
}

var (
	Start                = State{FlowUser, StepStart}
	Home                 = State{FlowUser, StepHome}
	SetLanguage          = State{FlowUser, StepSetLanguage}
	FirstCaptcha         = State{FlowUser, StepFirstCaptcha}
	OptIn                = State{FlowUser, StepOptIn}
	OptInDeclined        = State{FlowUser, StepOptInDeclined}
	DeleteAccountReason  = State{FlowUser, StepDeleteAccountReason}
	DeleteAccountConfirm = State{FlowUser, StepDeleteAccountConfirm}

	AdminHome      = State{FlowAdmin, StepAdminHome}
	AdminBanUser   = State{FlowAdmin, StepAdminBanUser}
	AdminUnbanUser = State{FlowAdmin, StepAdminUnbanUser}
)

type stateInfo struct {
	code int
	name string
}

// Codes are shared with rows written by earlier deployments and must not change.
var states = map[State]stateInfo{
	Start:                {0, "START"},
	Home:                 {1, "HOME"},
	SetLanguage:          {2, "SET_LANGUAGE"},
	FirstCaptcha:         {3, "FIRST_CAPTCHA"},
	OptIn:                {4, "OPT_IN"},
	OptInDeclined:        {5, "OPT_IN_DECLINED"},
	DeleteAccountReason:  {9, "DELETE_ACCOUNT_REASON"},
	DeleteAccountConfirm: {10, "DELETE_ACCOUNT_CONFIRM"},
	AdminHome:            {1000, "ADMIN_HOME"},
	AdminBanUser:         {1001, "ADMIN_BAN_USER"},
	AdminUnbanUser:       {1005, "ADMIN_UNBAN_USER"},
}

var byCode = func() map[int]State {
	m := make(map[int]State, len(states))
	for st, info := range states {
		m[info.code] = st
	}
	return m
}()

// DecodeState maps a persisted integer back onto a State.
func DecodeState(code int) (State, error) {
	st, ok := byCode[code]
	if !ok {
		return State{}, fmt.Errorf("%w: %d", ErrUnknownState, code)
	}
	return st, nil
}

// Code returns the persisted integer of s. It returns -1 for values not built from the
// exported states.
func (s State) Code() int {
	if info, ok := states[s]; ok {
		return info.code
	}
	return -1
}

// Valid reports whether s is one of the exported states.
func (s State) Valid() bool {
	_, ok := states[s]
	return ok
}

// IsAdmin reports whether s belongs to the admin section.
func (s State) IsAdmin() bool {
	return s.Flow == FlowAdmin
}

func (s State) String() string {
	if info, ok := states[s]; ok {
		return info.name
	}
	return fmt.Sprintf("State(%d/%d)", s.Flow, s.Step)
}

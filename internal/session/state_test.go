package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateCodesRoundTrip(t *testing.T) {
	want := map[int]string{
		0: "START", 1: "HOME", 2: "SET_LANGUAGE", 3: "FIRST_CAPTCHA", 4: "OPT_IN",
		5: "OPT_IN_DECLINED", 9: "DELETE_ACCOUNT_REASON", 10: "DELETE_ACCOUNT_CONFIRM",
		1000: "ADMIN_HOME", 1001: "ADMIN_BAN_USER", 1005: "ADMIN_UNBAN_USER",
	}
	for code, name := range want {
		st, err := DecodeState(code)
		require.NoError(t, err, code)
		assert.Equal(t, code, st.Code())
		assert.Equal(t, name, st.String())
		assert.Equal(t, code >= 1000, st.IsAdmin())
	}
}

func TestDecodeStateRejectsUnknownCodes(t *testing.T) {
	for _, code := range []int{-1, 6, 7, 8, 11, 999, 1002, 1006} {
		_, err := DecodeState(code)
		assert.ErrorIs(t, err, ErrUnknownState, code)
	}
	assert.False(t, State{Flow: FlowAdmin, Step: StepHome}.Valid())
	assert.Equal(t, -1, State{Flow: FlowAdmin, Step: StepHome}.Code())
}

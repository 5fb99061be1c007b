package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyButtonsKeepsRowLayout(t *testing.T) {
	markup := ReplyButtons([]string{"New key", "Status"}, nil, []string{"Back"})

	assert.True(t, markup.ResizeKeyboard)
	require.Len(t, markup.ReplyKeyboard, 2)
	require.Len(t, markup.ReplyKeyboard[0], 2)
	assert.Equal(t, "New key", markup.ReplyKeyboard[0][0].Text)
	assert.Equal(t, "Status", markup.ReplyKeyboard[0][1].Text)
	assert.Equal(t, "Back", markup.ReplyKeyboard[1][0].Text)
}

func TestReplyButtonsWithoutLabelsRemovesKeyboard(t *testing.T) {
	markup := ReplyButtons()
	assert.True(t, markup.RemoveKeyboard)
	assert.Empty(t, markup.ReplyKeyboard)
}

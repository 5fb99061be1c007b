// Package router binds telebot endpoints to handlers and logs one summary line per handled
// update.
package router

import (
	"context"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/keybot/core/telegram"
	tghelpers "github.com/m3rciful/keybot/core/telegram/helpers"
)

// UpdateHandler processes one raw update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd *tele.Update) (Summary, error)
}

// UpdateHandlerFunc adapts a function to UpdateHandler.
type UpdateHandlerFunc func(ctx context.Context, upd *tele.Update) (Summary, error)

// HandleUpdate calls f.
func (f UpdateHandlerFunc) HandleUpdate(ctx context.Context, upd *tele.Update) (Summary, error) {
	return f(ctx, upd)
}

// updateEndpoints lists every endpoint the bot listens on besides commands.
var updateEndpoints = []struct {
	endpoint string
	name     string
}{
	{tele.OnText, "update.text"},
	{tele.OnDocument, "update.document"},
	{tele.OnPhoto, "update.photo"},
	{tele.OnVoice, "update.voice"},
	{tele.OnLocation, "update.location"},
	{tele.OnEdited, "update.edited"},
	{tele.OnCallback, "update.callback"},
	{tele.OnQuery, "update.inline"},
	{tele.OnChannelPost, "update.channel_post"},
	{tele.OnEditedChannelPost, "update.edited_channel_post"},
	{tele.OnMyChatMember, "update.member"},
}

// Handler returns a telebot handler feeding c's update to h under name. Callback queries
// are acknowledged first so the client stops its spinner.
func Handler(h UpdateHandler, name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Callback() != nil {
			_ = c.Respond()
		}
		upd := c.Update()
		ctx := tghelpers.WithHandler(c, name)
		return handleWithSummary(c, name, func() (Summary, error) {
			return h.HandleUpdate(ctx, &upd)
		})
	}
}

// UpdateRoutes binds every non-command endpoint to h.
func UpdateRoutes(h UpdateHandler) []tg.Route {
	if h == nil {
		return nil
	}
	routes := make([]tg.Route, 0, len(updateEndpoints))
	for _, ep := range updateEndpoints {
		routes = append(routes, tg.Route{Endpoint: ep.endpoint, Handler: Handler(h, ep.name)})
	}
	return routes
}

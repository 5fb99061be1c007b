// Package session decides how the bot answers a chat message given where the chat is in
// its conversation.
//
// Machine.Handle is free of transport and storage concerns: it reads the account and
// challenge services it was built with and returns the messages to send together with the
// next state. The caller delivers the actions and persists the state.
package session

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/m3rciful/keybot/core/logger"
	"github.com/m3rciful/keybot/internal/i18n"
	"github.com/m3rciful/keybot/internal/message"
)

const (
	CommandStart = "start"
	CommandAdmin = "admin"

	// DefaultChannel tags accounts created through Telegram.
	DefaultChannel = "TG"
)

// Config carries the deployment specific content of the conversation.
type Config struct {
	Version string
	// Admins are Telegram usernames allowed into the admin section.
	Admins []string
	// SupportBot is the handle users are pointed at for help.
	SupportBot string
	// LinkTag is appended as a fragment to every access link.
	LinkTag string
	// InvitationURL is the hosted import page. {lang} and {key} are replaced; the key is
	// query escaped.
	InvitationURL string
	TermsURL      map[string]string
	PrivacyURL    map[string]string
	// MediaDir holds the instruction media. {lang} in the file names is replaced.
	MediaDir         string
	InstructionPhoto string
	InstructionVideo string
	Channel          string
}

// Input is everything Handle needs about one inbound message.
type Input struct {
	// State is the stored state; meaningful only when Stored is set.
	State  State
	Stored bool
	// Lang is the chat's preferred language.
	Lang    string
	Message message.Message
}

// Machine is the chat state machine.
type Machine struct {
	cfg        Config
	catalog    *i18n.Catalog
	accounts   AccountService
	challenges ChallengeService
	admins     map[string]struct{}
}

// NewMachine wires a Machine.
func NewMachine(cfg Config, catalog *i18n.Catalog, accounts AccountService, challenges ChallengeService) *Machine {
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	admins := make(map[string]struct{}, len(cfg.Admins))
	for _, name := range cfg.Admins {
		name = normalizeUsername(name)
		if name != "" {
			admins[name] = struct{}{}
		}
	}
	return &Machine{cfg: cfg, catalog: catalog, accounts: accounts, challenges: challenges, admins: admins}
}

// Handle decides the reaction to in.Message. Message.UserUID must already be the opaque
// user handle known to the account service.
func (m *Machine) Handle(ctx context.Context, in Input) Outcome {
	t := &turn{
		m:     m,
		ctx:   ctx,
		in:    in,
		chat:  in.Message.ChatID,
		uid:   in.Message.UserUID,
		lang:  in.Lang,
		texts: m.catalog.For(in.Lang),
	}
	t.dispatch(in.Message)
	attrs := []slog.Attr{
		slog.String("state", t.stateName()),
		slog.Int("actions", len(t.out.Actions)),
	}
	if t.out.Persist {
		attrs = append(attrs, slog.String("next_state", t.out.Next.String()))
	}
	logger.Debug(ctx, logger.CompSession, "session.handled", attrs...)
	return t.out
}

// IsAdmin reports whether username may enter the admin section.
func (m *Machine) IsAdmin(username string) bool {
	_, ok := m.admins[normalizeUsername(username)]
	return ok
}

func normalizeUsername(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "@"))
}

// turn accumulates the outcome of one Handle call.
type turn struct {
	m     *Machine
	ctx   context.Context
	in    Input
	chat  int64
	uid   string
	lang  string
	texts i18n.Table
	out   Outcome
}

func (t *turn) dispatch(msg message.Message) {
	if msg.Body != "" && msg.Body == t.texts.Text("MENU_BACK_HOME") {
		t.home("MSG_HOME_ELSE")
		return
	}

	if msg.Command == CommandStart && msg.CommandArg != "" {
		if body, ok := decodeDeepLink(msg.CommandArg); ok {
			t.dispatch(msg.WithBody(body))
			return
		}
		logger.Warn(t.ctx, logger.CompSession, "deeplink.rejected",
			slog.String("reject", "undecodable"),
			slog.String("payload", logger.SanitizeLimit(msg.CommandArg, 64)),
		)
	}

	switch msg.Command {
	case CommandStart:
		t.welcome()
		return
	case CommandAdmin:
		t.adminGate()
		return
	}

	if msg.Type != message.TypeMessage {
		return
	}

	if t.in.Stored && t.in.State.IsAdmin() {
		t.admin(msg)
		return
	}

	if !t.in.Stored {
		t.fallback(msg)
		return
	}

	switch t.in.State {
	case SetLanguage:
		t.setLanguage(msg)
	case FirstCaptcha:
		t.firstCaptcha(msg)
	case OptIn:
		t.optIn(msg)
	case OptInDeclined:
		t.optInDeclined(msg)
	case Home:
		t.homeMenu(msg)
	case DeleteAccountReason:
		t.deleteReason(msg)
	default:
		t.fallback(msg)
	}
}

// decodeDeepLink accepts padded and unpadded URL-safe base64.
func decodeDeepLink(arg string) (string, bool) {
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.RawURLEncoding} {
		if raw, err := enc.DecodeString(arg); err == nil {
			return string(raw), true
		}
	}
	return "", false
}

func (t *turn) stateName() string {
	if !t.in.Stored {
		return "ABSENT"
	}
	return t.in.State.String()
}

func (t *turn) moveTo(st State) {
	t.out.Next = st
	t.out.Persist = true
}

func (t *turn) useLanguage(lang string) {
	t.lang = lang
	t.texts = t.m.catalog.For(lang)
	t.out.Language = lang
}

func (t *turn) say(text string) {
	t.out.Actions = append(t.out.Actions, Action{Kind: ActionText, ChatID: t.chat, Text: text})
}

func (t *turn) sayKey(key string) {
	t.say(t.texts.Text(key))
}

func (t *turn) sayMarkdown(text string) {
	t.out.Actions = append(t.out.Actions, Action{Kind: ActionText, ChatID: t.chat, Text: text, Markdown: true})
}

func (t *turn) keyboard(text string, rows [][]string) {
	t.out.Actions = append(t.out.Actions, Action{Kind: ActionKeyboard, ChatID: t.chat, Text: text, Keyboard: rows})
}

func (t *turn) photo(path, caption string) {
	t.out.Actions = append(t.out.Actions, Action{Kind: ActionPhoto, ChatID: t.chat, File: path, Caption: caption})
}

func (t *turn) video(path string) {
	t.out.Actions = append(t.out.Actions, Action{Kind: ActionVideo, ChatID: t.chat, File: path})
}

// fail reports a downstream error to the user with the generic text. Nothing is persisted.
func (t *turn) fail(event string, err error) {
	logger.Error(t.ctx, logger.CompSession, event, slog.String("status", "fail"), logger.Err(err))
	t.sayKey("MSG_ERROR")
	t.out.Persist = false
}

// home shows the main menu under text and moves to Home.
func (t *turn) home(textKey string) {
	t.keyboard(t.texts.Text(textKey), homeKeyboard(t.texts))
	t.moveTo(Home)
}

// homeKeyboardOnly re-shows the main menu without touching the stored state.
func (t *turn) homeKeyboardOnly() {
	t.keyboard(t.texts.Text("MSG_HOME_ELSE"), homeKeyboard(t.texts))
}

func (t *turn) languagePicker() {
	t.keyboard(t.texts.Text("MSG_SELECT_LANGUAGE"), chunk(t.m.catalog.LanguageLabels(), languagesPerRow))
	t.moveTo(SetLanguage)
}

func (t *turn) welcome() {
	t.out.Reset = true
	t.say(t.texts.Textf("MSG_INITIAL_SCREEN", t.m.cfg.Version))
	t.languagePicker()
}

// fallback answers messages that mean nothing in the current state.
func (t *turn) fallback(msg message.Message) {
	logger.Info(t.ctx, logger.CompSession, "message.unsupported",
		slog.String("state", t.stateName()),
		slog.String("msg_type", string(msg.BodyType)),
	)
	t.sayKey("MSG_UNSUPPORTED_COMMAND")

	acc, err := t.m.accounts.GetAccount(t.ctx, t.uid)
	if err != nil {
		logger.Error(t.ctx, logger.CompSession, "fallback.account", slog.String("status", "fail"), logger.Err(err))
		return
	}
	if acc == nil || acc.Username == "" {
		t.languagePicker()
		return
	}
	t.home("MSG_HOME_ELSE")
}

func (t *turn) invitationURL(link string) string {
	tmpl := t.m.cfg.InvitationURL
	if tmpl == "" {
		return link
	}
	r := strings.NewReplacer("{lang}", url.PathEscape(t.lang), "{key}", url.QueryEscape(link))
	return r.Replace(tmpl)
}

func (t *turn) tagged(link string) string {
	if t.m.cfg.LinkTag == "" {
		return link
	}
	return link + "#" + t.m.cfg.LinkTag
}

func (t *turn) mediaPath(pattern string) string {
	if pattern == "" {
		return ""
	}
	name := strings.ReplaceAll(pattern, "{lang}", t.lang)
	if t.m.cfg.MediaDir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(t.m.cfg.MediaDir, name)
}

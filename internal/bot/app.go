package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/keybot/core/buildinfo"
	"github.com/m3rciful/keybot/core/logger"
	tg "github.com/m3rciful/keybot/core/telegram"
	"github.com/m3rciful/keybot/core/telegram/commands"
	tghelpers "github.com/m3rciful/keybot/core/telegram/helpers"
	"github.com/m3rciful/keybot/core/telegram/router"
	tgsender "github.com/m3rciful/keybot/core/telegram/sender"
	"github.com/m3rciful/keybot/internal/accounts"
	"github.com/m3rciful/keybot/internal/challenge"
	"github.com/m3rciful/keybot/internal/config"
	"github.com/m3rciful/keybot/internal/i18n"
	"github.com/m3rciful/keybot/internal/identity"
	"github.com/m3rciful/keybot/internal/message"
	"github.com/m3rciful/keybot/internal/session"
	"github.com/m3rciful/keybot/internal/store"
)

// backend is what a state store implementation has to provide.
type backend interface {
	store.StateStore
	challenge.Repository
}

// App is the assembled bot.
type App struct {
	cfg        *config.Config
	registry   *tg.Registry
	sender     *tgsender.Dispatcher
	outbox     *Outbox
	dispatcher *Dispatcher
	closers    []func() error
}

// New assembles the bot from cfg. db may be nil when the memory store is selected.
func New(ctx context.Context, cfg *config.Config, db *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bot: nil config")
	}

	var st backend
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		st = store.NewMemory()
	default:
		if db == nil {
			return nil, fmt.Errorf("bot: store driver %q needs a database", cfg.Store.Driver)
		}
		st = store.NewSQL(db)
	}

	catalog, err := i18n.Load(catalogOrder(cfg.Bot.DefaultLanguage, cfg.Bot.Languages))
	if err != nil {
		return nil, err
	}
	hasher, err := identity.NewHasher(cfg.Identity.Secret)
	if err != nil {
		return nil, err
	}
	challenges, err := challenge.NewService(st, challenge.Config{
		MaxOperand: cfg.Challenge.MaxOperand,
		Choices:    cfg.Challenge.Choices,
	}, nil)
	if err != nil {
		return nil, err
	}

	app := &App{cfg: cfg, registry: tg.NewRegistry()}

	client := accounts.NewClient(accounts.Config{
		BaseURL:   cfg.Accounts.BaseURL,
		APIKey:    cfg.Accounts.APIKey,
		UserAgent: cfg.Accounts.UserAgent,
		Timeout:   cfg.Accounts.Timeout(),
		Region:    cfg.Accounts.Region,
		Endpoints: accounts.Endpoints(cfg.Accounts.Endpoints),
	}, nil)
	var accountSvc session.AccountService = client
	if ttl := cfg.Accounts.CacheTTL(); ttl > 0 {
		cached, err := accounts.NewCached(ctx, client, ttl)
		if err != nil {
			return nil, err
		}
		accountSvc = cached
		app.closers = append(app.closers, cached.Close)
	}

	machine := session.NewMachine(session.Config{
		Version:          buildinfo.Version,
		Admins:           cfg.Bot.Admins,
		SupportBot:       cfg.Bot.SupportBot,
		LinkTag:          cfg.Bot.LinkTag,
		InvitationURL:    cfg.Bot.InvitationURL,
		TermsURL:         cfg.Bot.TermsURL,
		PrivacyURL:       cfg.Bot.PrivacyURL,
		MediaDir:         cfg.Bot.MediaDir,
		InstructionPhoto: cfg.Bot.InstructionPhoto,
		InstructionVideo: cfg.Bot.InstructionVideo,
		Channel:          cfg.Accounts.Channel,
	}, catalog, accountSvc, challenges)

	app.sender = tgsender.NewDispatcher(tg.SenderOptionsFrom(cfg.CoreConfig()))
	app.outbox = NewOutbox(app.sender)

	types := make([]message.Type, 0, len(cfg.Bot.SupportedMessageTypes))
	for _, typ := range cfg.Bot.SupportedMessageTypes {
		types = append(types, message.Type(typ))
	}
	app.dispatcher = NewDispatcher(DispatcherConfig{
		DefaultLanguage: cfg.Bot.DefaultLanguage,
		Languages:       cfg.Bot.Languages,
		SupportedTypes:  types,
	}, hasher, st, catalog, machine, app.outbox)

	app.registerCommands()

	logger.Info(ctx, logger.CompApp, "app.assembled",
		slog.String("status", "ok"),
		slog.String("store", cfg.Store.Driver),
		slog.String("languages", strings.Join(catalog.Languages(), ",")),
		slog.Bool("accounts_cache", cfg.Accounts.CacheTTL() > 0),
	)
	return app, nil
}

// catalogOrder puts def first so it becomes the catalog fallback.
func catalogOrder(def string, langs []string) []string {
	out := make([]string, 0, len(langs)+1)
	if def != "" {
		out = append(out, def)
	}
	for _, l := range langs {
		if l != def {
			out = append(out, l)
		}
	}
	return out
}

func (a *App) registerCommands() {
	a.registry.RegisterCommand("/"+session.CommandStart, commands.Command{
		Description: "Start over",
		Handler:     a.handleCommand,
	})
	a.registry.RegisterCommand("/"+session.CommandAdmin, commands.Command{
		Description: "Moderation",
		Hidden:      true,
		Handler:     a.handleCommand,
	})
}

func (a *App) handleCommand(c tele.Context) error {
	upd := c.Update()
	_, err := a.dispatcher.HandleUpdate(tghelpers.BuildContext(c), &upd)
	return err
}

// Dispatcher returns the update dispatcher.
func (a *App) Dispatcher() *Dispatcher { return a.dispatcher }

// TelegramRunOptions describes the bot runtime.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	routes := router.CommandRoutes(a.registry)
	routes = append(routes, router.UpdateRoutes(a.dispatcher)...)

	return tg.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Sender:      a.sender,
		Middlewares: tg.DefaultMiddlewares(core, nil),
		Routes:      routes,
		OnStart: func(_ context.Context, rt tg.Runtime) error {
			a.outbox.Attach(rt.Bot)
			return nil
		},
		OnStop: func(context.Context, tg.Runtime) error {
			return a.Close()
		},
	}, nil
}

// OnClose registers fn to run on Close.
func (a *App) OnClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases the app resources. The sender is closed by the telegram runtime.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Package app wires the bot together: config, logging, storage, the
// Telegram adapter and the domain handlers, plus the background jobs
// (config watch, scheduled title refresh).
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"slotbot/internal/auth"
	"slotbot/internal/bot"
	"slotbot/internal/broadcast"
	"slotbot/internal/config"
	"slotbot/internal/jackpot"
	"slotbot/internal/storage"
	"slotbot/internal/transport/telegram"
	"slotbot/pkg/logx"
)

const defaultTitleRefreshCron = "0 4 * * *"

type App struct {
	cfgMgr   *config.Manager
	log      logx.Logger
	logClose func() error

	store  storage.Store
	tg     *telegram.Bot
	authz  *auth.Resolver
	router *bot.Router
	cron   *cron.Cron

	wg sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	boot := logx.NewConsole("info")
	cfgMgr := config.NewManager(cfgPath, boot)
	cfg, err := cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, logClose := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.ConsoleLogging(),
		File:    logx.FileConfig(cfg.Logging.File),
	})

	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = "./slotbot.db"
	}
	store, err := storage.Open(storage.Config{
		Path:        dbPath,
		BusyTimeout: config.DurationOr(cfg.Storage.BusyTimeout, 5*time.Second),
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logClose()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	tg, err := telegram.New(telegram.Config{
		Token:          cfg.Telegram.Token,
		PollTimeout:    config.DurationOr(cfg.Telegram.PollTimeout, 10*time.Second),
		SendRatePerSec: cfg.Telegram.SendRatePerSec,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = store.Close()
		_ = logClose()
		return nil, fmt.Errorf("telegram: %w", err)
	}

	authz := auth.NewResolver(auth.OwnerConfig(cfg.Owner), tg, log.With(logx.String("comp", "auth")))

	engine := broadcast.New(broadcast.Config{
		SendGap: config.DurationOr(cfg.Broadcast.SendGap, 50*time.Millisecond),
		Policy: broadcast.Policy{
			MaxAttempts: 2,
			Grace:       config.DurationOr(cfg.Broadcast.RetryGrace, 500*time.Millisecond),
		},
	}, store, tg, log.With(logx.String("comp", "broadcast")))

	dice := jackpot.New(jackpot.Config{
		RevealDelay: config.DurationOr(cfg.Jackpot.RevealDelay, 1500*time.Millisecond),
	}, store, tg, log.With(logx.String("comp", "jackpot")))

	router := bot.NewRouter(store, authz, tg, engine, dice, log.With(logx.String("comp", "bot")))
	tg.Bind(router, bot.CommandNames())

	return &App{
		cfgMgr:   cfgMgr,
		log:      log,
		logClose: logClose,
		store:    store,
		tg:       tg,
		authz:    authz,
		router:   router,
	}, nil
}

// Start launches the background loops and the Telegram poller. It returns
// once everything is running; the loops stop when ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgMgr.Current()

	// Command menu is cosmetic; a failed publish is not fatal.
	menu := bot.Menu()
	cmds := make([]telegram.Command, 0, len(menu))
	for _, m := range menu {
		cmds = append(cmds, telegram.Command{Text: m.Name, Description: m.Description})
	}
	if err := a.tg.SetCommands(cmds); err != nil {
		a.log.Warn("command menu update failed", logx.Err(err))
	}

	// Config hot reload: only the owner identity is applied live.
	updates := a.cfgMgr.Subscribe()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgMgr.Watch(ctx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case next := <-updates:
				a.authz.SetOwner(auth.OwnerConfig(next.Owner))
				logx.SetLevel(next.Logging.Level)
				a.log.Info("reloaded config applied",
					logx.String("level", next.Logging.Level))
			}
		}
	}()

	// Scheduled refresh keeps ListUnpaid labels current even for chats
	// that never send commands.
	spec := cfg.TitleRefreshCron
	if spec == "" {
		spec = defaultTitleRefreshCron
	}
	if spec != "off" {
		a.cron = cron.New()
		if _, err := a.cron.AddFunc(spec, func() { a.refreshTitles(ctx) }); err != nil {
			return fmt.Errorf("title refresh schedule %q: %w", spec, err)
		}
		a.cron.Start()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.tg.Start(ctx)
	}()

	a.log.Info("started", logx.String("title_refresh", spec))
	return nil
}

// Stop waits for the loops to wind down and releases resources.
func (a *App) Stop(ctx context.Context) error {
	if a.cron != nil {
		cronCtx := a.cron.Stop()
		select {
		case <-cronCtx.Done():
		case <-ctx.Done():
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("shutdown timed out waiting for background loops")
	}

	err := a.store.Close()
	_ = a.logClose()
	return err
}

// refreshTitles re-fetches the title of every known chat. Chats the bot
// lost access to are left as they are.
func (a *App) refreshTitles(ctx context.Context) {
	ids, err := a.store.ListChats(ctx)
	if err != nil {
		a.log.Warn("title refresh: list chats failed", logx.Err(err))
		return
	}
	var updated int
	for _, id := range ids {
		title, err := a.tg.ChatTitle(ctx, id)
		if err != nil || title == "" {
			continue
		}
		if err := a.store.SetGroupTitle(ctx, id, title); err != nil {
			a.log.Debug("title refresh: store failed", logx.Int64("chat_id", id), logx.Err(err))
			continue
		}
		updated++
	}
	a.log.Info("title refresh done", logx.Int("chats", len(ids)), logx.Int("updated", updated))
}

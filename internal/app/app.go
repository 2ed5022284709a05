// Package app wires configuration, logging, storage, transport and the two
// services (ingest, dispatch) into one process.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"remindbot/internal/config"
	"remindbot/internal/dispatch"
	"remindbot/internal/ingest"
	rtsup "remindbot/internal/runtime/supervisor"
	"remindbot/internal/storage"
	"remindbot/internal/task"
	kit "remindbot/internal/transport"
	telegram "remindbot/internal/transport/telegram"
	logx "remindbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service
	sup  *rtsup.Supervisor

	store   storage.Store
	adapter *telegram.Adapter

	ing  *ingest.Service
	disp *dispatch.Service

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(context.Background(), cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg.Logging))
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
		RatePerSec:  cfg.Telegram.RatePerSec,
	}, logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, logSvc.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	disp, err := dispatch.New(dispatch.Config{
		Enabled:  cfg.Dispatcher.Enabled,
		Timezone: cfg.Dispatcher.Timezone,
	}, store, adapter, logSvc.Logger().With(logx.String("comp", "dispatch")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	// One clock for everything: reminder times parse in the same zone the
	// dispatcher truncates against.
	parser := task.NewParser(disp.Location())

	ing := ingest.New(ingest.Config{Greeting: cfg.Bot.Greeting},
		parser, store, adapter,
		logSvc.Logger().With(logx.String("comp", "ingest")))

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		adapter: adapter,
		ing:     ing,
		disp:    disp,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validate)

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.sup.Go0("ingest.loop", func(c context.Context) {
		a.ing.Run(c, a.updates)
	})
	if err := a.disp.Start(a.sup.Context()); err != nil {
		return err
	}

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
	sub := a.cfgm.Subscribe(1)
	a.sup.Go0("config.apply", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyReload(cfg)
			}
		}
	})

	// systemd integration is best-effort; outside systemd these are no-ops.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		a.sup.Go0("systemd.watchdog", func(c context.Context) {
			ticker := time.NewTicker(interval / 2)
			defer ticker.Stop()
			for {
				select {
				case <-c.Done():
					return
				case <-ticker.C:
					_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				}
			}
		})
	}

	a.log.Info("started")
	return nil
}

// applyReload pushes the hot-reloadable parts of a new config into running
// components. Transport token, storage and dispatcher timezone require a
// restart.
func (a *App) applyReload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.logs.Apply(mapLoggingConfig(cfg.Logging))
	a.ing.SetGreeting(cfg.Bot.Greeting)
	a.adapter.SetSendRate(cfg.Telegram.RatePerSec)
	a.log.Info("config applied")
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if a.disp != nil {
		_ = a.disp.Stop(ctx)
	}
	if a.adapter != nil {
		_ = a.adapter.Stop(ctx)
	}
	if a.sup != nil {
		a.sup.Cancel()
		_ = a.sup.Wait(ctx)
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func mapLoggingConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
	}
}

// validate is the transactional check run before a config is committed,
// both at startup and on hot reload.
func validate(_ context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is empty")
	}
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if cfg.Telegram.RatePerSec < 0 {
		return fmt.Errorf("telegram.rate_per_sec must be >= 0")
	}
	if _, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}
	if tz := cfg.Dispatcher.Timezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("dispatcher.timezone: %w", err)
		}
	}
	return nil
}

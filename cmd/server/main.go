package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/storyteller-backend/internal/archive"
	"github.com/DoyleJ11/storyteller-backend/internal/config"
	"github.com/DoyleJ11/storyteller-backend/internal/display"
	"github.com/DoyleJ11/storyteller-backend/internal/display/obs"
	"github.com/DoyleJ11/storyteller-backend/internal/engine"
	"github.com/DoyleJ11/storyteller-backend/internal/httpapi"
	"github.com/DoyleJ11/storyteller-backend/internal/reveal"
	"github.com/DoyleJ11/storyteller-backend/internal/script"
	"github.com/DoyleJ11/storyteller-backend/internal/sound"
	"github.com/DoyleJ11/storyteller-backend/internal/store"
	"github.com/DoyleJ11/storyteller-backend/internal/timer"
)

const defaultScript = "trouble_brewing"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// no logger yet
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	log := newLogger(cfg.Debug)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(debug bool) *zap.Logger {
	if debug {
		l, err := zap.NewDevelopment()
		if err == nil {
			return l
		}
	}
	l, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) (err error) {
	registry, err := script.NewRegistry()
	if err != nil {
		return err
	}
	s, err := registry.Script(defaultScript)
	if err != nil {
		return err
	}
	gameOpts := []engine.Option{engine.WithMaxNameLength(cfg.MaxPlayerNameLength)}
	initial, err := engine.NewGame(s, 0, gameOpts...)
	if err != nil {
		return err
	}

	archiver, err := archive.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, archiver.Close()) }()

	var sounds sound.Player = sound.Nop{}
	if cfg.SoundCommand != "" {
		sounds = sound.NewCommandPlayer(cfg.SoundDir, cfg.SoundCommand, log)
	}

	st := store.New(ctx, initial, log)
	defer st.Close()

	g, ctx := errgroup.WithContext(ctx)

	timerOpts := []timer.Option{
		timer.WithCue(sounds),
		timer.WithLimits(cfg.TimerMaxSeconds, cfg.TimerDefaultSeconds),
	}
	if cfg.OBSEnabled {
		dc := display.New(obs.New(obs.Config{Addr: cfg.OBSAddr, Password: cfg.OBSPassword}), log)
		timerOpts = append(timerOpts, timer.WithDisplay(dc))
		g.Go(func() error { return dc.Run(ctx) })
	}
	clock := timer.New(log, timerOpts...)
	g.Go(func() error { return clock.Run(ctx) })

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Registry:    registry,
			Store:       st,
			Gate:        reveal.New(st, cfg.RevealAttempts, cfg.RevealPollInterval),
			Timer:       clock,
			Sounds:      sounds,
			Archive:     archiver,
			GameOptions: gameOpts,
			Log:         log,

			WSOriginPatterns: cfg.WSOriginPatterns,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Package state defines shared program state.
package state

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mdeck/config"
	"mdeck/deck"
	"mdeck/theme"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// Themes is shared by every deck program creates, it is loaded once.
	Themes *theme.Set

	// used by render subcommand
	Overwrite bool

	start         time.Time
	restoreStdLog func()
}

func newLocalEnv() *LocalEnv {
	return &LocalEnv{start: time.Now()}
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}

// LoadThemes prepares shared theme set. Themes which could not be loaded are
// reported and skipped, set is still usable as long as built-in theme is
// there.
func (e *LocalEnv) LoadThemes() error {
	if e.Themes != nil {
		return nil
	}
	set, err := e.Cfg.Themes.Prepare(e.Log)
	if set == nil {
		return err
	}
	if err != nil {
		e.Log.Warn("Some themes were not loaded", zap.Error(err))
	}
	e.Themes = set
	e.Log.Debug("Themes loaded", zap.Strings("names", set.Names()))
	return nil
}

// NewDeck creates deck compiler configured by current configuration.
func (e *LocalEnv) NewDeck() (*deck.Deck, error) {
	if err := e.LoadThemes(); err != nil {
		return nil, err
	}
	opts, err := e.Cfg.Deck.DeckOptions(e.Themes, e.Log)
	if err != nil {
		return nil, err
	}
	d, err := deck.New(opts)
	if err != nil {
		return nil, fmt.Errorf("unable to configure deck: %w", err)
	}
	return d, nil
}

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bitfsorg/libsale-go/account"
	"github.com/bitfsorg/libsale-go/config"
	"github.com/bitfsorg/libsale-go/deploy"
	"github.com/bitfsorg/libsale-go/host"
	"github.com/bitfsorg/libsale-go/store"
)

// app carries the state shared by every command.
type app struct {
	flags struct {
		dataDir    string
		configFile string
		at          int64
		debug       bool
		metricsFile string
	}
	cfg           config.Config
	configPath    string
	configMissing bool
	logger        *zap.Logger
}

// load resolves the data directory and reads the deployment file. A missing
// file leaves the defaults in place so init --template and keygen still work.
func (a *app) load() error {
	base := config.DefaultConfig()
	if err := config.ApplyEnv(&base); err != nil {
		return err
	}
	dataDir := base.DataDir
	if a.flags.dataDir != "" {
		dataDir = a.flags.dataDir
	}
	a.configPath = a.flags.configFile
	if a.configPath == "" {
		a.configPath = config.ConfigPath(dataDir)
	}

	cfg, err := config.LoadConfig(a.configPath)
	switch {
	case errors.Is(err, config.ErrConfigNotFound):
		cfg = base
		a.configMissing = true
	case err != nil:
		return err
	}
	if a.flags.dataDir != "" || cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger, err = newLogger(cfg.LogLevel, a.flags.debug)
	return err
}

func newLogger(level string, debug bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidLogLevel, level)
	}
	zc := zap.NewProductionConfig()
	if debug {
		zc = zap.NewDevelopmentConfig()
		lvl = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build(zap.Fields(zap.String("component", programName)))
}

// now is the single clock reading for this invocation: --at, then
// SALE_NOW or the file's now, then wall-clock time.
func (a *app) now() int64 {
	switch {
	case a.flags.at != 0:
		return a.flags.at
	case a.cfg.Now != 0:
		return a.cfg.Now
	}
	return time.Now().Unix()
}

func (a *app) requireConfig() error {
	if a.configMissing {
		return fmt.Errorf("%w: %s (run init --template first)", config.ErrConfigNotFound, a.configPath)
	}
	return nil
}

func (a *app) openStore() (*store.BoltStore, error) {
	return store.OpenBoltStore(config.DBPath(a.cfg.DataDir))
}

// view opens the deployment read-only.
func (a *app) view(fn func(d *deploy.Deployment, now int64) error) error {
	return a.with(false, fn)
}

// run executes one state-changing operation and saves the snapshot only if
// it succeeds.
func (a *app) run(fn func(d *deploy.Deployment, now int64) error) error {
	return a.with(true, fn)
}

func (a *app) with(write bool, fn func(d *deploy.Deployment, now int64) error) error {
	if err := a.requireConfig(); err != nil {
		return err
	}
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	now := a.now()
	d, err := deploy.Open(a.cfg, host.NewManualClock(now), st, deploy.WithLogger(a.logger))
	if err != nil {
		return err
	}
	if !write {
		err = fn(d, now)
	} else {
		err = d.Apply(st, func(d *deploy.Deployment) error { return fn(d, now) })
	}
	// Rejections are counted too, so metrics are written either way.
	if merr := a.writeMetrics(d); merr != nil {
		if err != nil {
			a.logger.Warn("metrics not written", zap.Error(merr))
			return err
		}
		return merr
	}
	return err
}

// writeMetrics dumps the invocation's metrics when --metrics-file is set.
func (a *app) writeMetrics(d *deploy.Deployment) error {
	if a.flags.metricsFile == "" {
		return nil
	}
	return d.WriteMetrics(a.flags.metricsFile)
}

// --- Argument parsing ---

func parseAddress(name, s string) (account.Address, error) {
	addr, err := account.Parse(s)
	if err != nil {
		return account.Zero, fmt.Errorf("%s: %w", name, err)
	}
	return addr, nil
}

func parseAmount(name, s string) (config.Amount, error) {
	amt, err := config.ParseAmount(s)
	if err != nil {
		return config.Amount{}, fmt.Errorf("%s: %w", name, err)
	}
	return amt, nil
}

// fromFlag resolves --from, falling back to def when unset.
func fromFlag(from string, def account.Address) (account.Address, error) {
	if from == "" {
		if def.IsZero() {
			return account.Zero, errors.New("--from is required")
		}
		return def, nil
	}
	return parseAddress("--from", from)
}

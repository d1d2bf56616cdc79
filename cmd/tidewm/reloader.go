package main

import (
	"fmt"
	"os"

	"github.com/tidewm/tidewm/internal/config"
	"github.com/tidewm/tidewm/internal/util"
)

// reloadTarget is the slice of the engine a reload touches.
type reloadTarget interface {
	Reload(cfg *config.Config) error
}

type configReloader struct {
	path           string
	logger         *util.Logger
	engine         reloadTarget
	lastSerialized []byte
}

func newConfigReloader(path string, logger *util.Logger, eng reloadTarget, serialized []byte) *configReloader {
	return &configReloader{
		path:           path,
		logger:         logger,
		engine:         eng,
		lastSerialized: append([]byte(nil), serialized...),
	}
}

// Reload re-reads the config file and applies it to the running engine. A
// file that fails to parse or validate is rejected and the previous
// configuration stays in effect.
func (r *configReloader) Reload(reason string) error {
	r.logger.Infof("%s, reloading config", reason)
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg, err := config.Parse(raw)
	if err != nil {
		r.logDiff(raw)
		return err
	}
	if err := r.engine.Reload(cfg); err != nil {
		return err
	}
	if diff := config.Diff(r.lastSerialized, raw); diff != "" {
		r.logger.Debugf("config changed:\n%s", diff)
	}
	r.lastSerialized = append([]byte(nil), raw...)
	return nil
}

func (r *configReloader) logDiff(current []byte) {
	diff := config.Diff(r.lastSerialized, current)
	if diff == "" {
		r.logger.Warnf("config change rejected; unable to compute diff vs last valid config")
		return
	}
	r.logger.Warnf("config change rejected; diff vs last valid config:\n%s", diff)
}

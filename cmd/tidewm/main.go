package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tidewm/tidewm/internal/config"
	"github.com/tidewm/tidewm/internal/control"
	"github.com/tidewm/tidewm/internal/engine"
	"github.com/tidewm/tidewm/internal/metrics"
	"github.com/tidewm/tidewm/internal/util"
	"github.com/tidewm/tidewm/internal/x11"
)

func main() {
	home, _ := os.UserHomeDir()
	defaultConfig := filepath.Join(home, ".config", "tidewm", "config.yaml")

	cfgPath := flag.String("config", defaultConfig, "path to YAML config")
	logLevel := flag.String("log-level", "info", "log level (trace|debug|info|warn|error)")
	strict := flag.Bool("strict", false, "verify state invariants after every event (slow)")
	enableMetrics := flag.Bool("metrics", true, "collect event and command counters")
	flag.Parse()

	logger := util.NewLogger(util.ParseLogLevel(*logLevel))

	cfg, raw, err := loadConfig(*cfgPath, defaultConfig, logger)
	if err != nil {
		exitErr(err)
	}

	conn, err := x11.Connect(logger)
	if err != nil {
		exitErr(err)
	}
	defer conn.Close()

	collector := metrics.NewCollector(*enableMetrics)
	eng, err := engine.New(conn, logger, cfg, collector, *strict)
	if err != nil {
		exitErr(fmt.Errorf("start engine: %w", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloader := newConfigReloader(*cfgPath, logger, eng, raw)
	reloadRequests := make(chan string, 1)
	if raw != nil {
		stopWatch, err := watchConfigFile(*cfgPath, logger, reloadRequests)
		if err != nil {
			exitErr(err)
		}
		defer stopWatch()
	}

	ctrlSrv, err := control.NewServer(eng, collector, logger, reloader.Reload, cancel)
	if err != nil {
		exitErr(fmt.Errorf("start control server: %w", err))
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	errs := make(chan error, 2)
	go func() {
		errs <- eng.Run(ctx)
	}()
	go func() {
		errs <- ctrlSrv.Serve(ctx)
	}()

	for {
		select {
		case err := <-errs:
			cancel()
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("engine exited: %v", err)
				os.Exit(1)
			}
			logger.Infof("engine stopped")
			return
		case reason := <-reloadRequests:
			if err := reloader.Reload(reason); err != nil {
				logger.Errorf("reload failed: %v", err)
			}
		case sig := <-sigs:
			switch sig {
			case syscall.SIGHUP:
				if err := reloader.Reload("received SIGHUP"); err != nil {
					logger.Errorf("reload failed: %v", err)
				}
			case os.Interrupt, syscall.SIGTERM:
				logger.Infof("received %s, shutting down", sig)
				cancel()
			}
		}
	}
}

// loadConfig reads the configuration file. A missing file at the default
// location falls back to the built-in configuration; an explicitly given
// path must exist. raw is nil when running on built-ins.
func loadConfig(path, defaultPath string, logger *util.Logger) (*config.Config, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == defaultPath {
			logger.Infof("no config at %s, using built-in defaults", path)
			return config.Default(), nil, nil
		}
		return nil, nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := config.Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	return cfg, raw, nil
}

// watchConfigFile debounces filesystem events on the config file into
// reload requests. Watching the directory catches editors that replace the
// file instead of writing it in place.
func watchConfigFile(path string, logger *util.Logger, reloadRequests chan<- string) (func(), error) {
	full, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	full = filepath.Clean(full)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	if err := watcher.Add(filepath.Dir(full)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}
	if err := watcher.Add(full); err != nil {
		logger.Debugf("unable to watch config file directly: %v", err)
	}
	go watchLoop(logger, watcher, full, reloadRequests)
	return func() { watcher.Close() }, nil
}

func watchLoop(logger *util.Logger, watcher *fsnotify.Watcher, target string, reloadRequests chan<- string) {
	const debounceWindow = 250 * time.Millisecond
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					<-timerCh
				}
				timer.Reset(debounceWindow)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			select {
			case reloadRequests <- "config file updated":
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("config watcher error: %v", err)
		}
	}
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

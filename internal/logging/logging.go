// Package logging sets up the process-wide slog logger per
// GBF_RAID_FINDER_LOG_PATH, with rotation handled by lumberjack.
package logging

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Setup builds and installs the default slog logger. path == "" or
// "stdout" logs to stdout with no rotation; any other value is treated
// as a directory for a rotating log file. Returns a close func the
// caller should defer.
func Setup(path string) (func() error, error) {
	if path == "" || path == "stdout" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})))
		return func() error { return nil }, nil
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	logFile := filepath.Join(path, "gbf-raidfinder.log")
	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    100, // MB
		MaxBackups: 10,
		MaxAge:     28, // days
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(rotator, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	watcher, err := watchForExternalRotation(logFile, rotator)
	if err != nil {
		slog.Warn("logging: rotation watch disabled", "err", err)
		return rotator.Close, nil
	}
	return func() error {
		_ = watcher.Close()
		return rotator.Close()
	}, nil
}

// watchForExternalRotation reopens rotator's file handle if something
// external (logrotate, an operator `mv`) removes or renames the active
// log file out from under it, so writes keep landing in a file at
// logFile rather than silently going to a deleted inode.
func watchForExternalRotation(logFile string, rotator *lumberjack.Logger) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(logFile)); err != nil {
		watcher.Close()
		return nil, err
	}
	go func() {
		for event := range watcher.Events {
			if event.Name == logFile && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				if err := rotator.Rotate(); err != nil {
					slog.Error("logging: reopen after external rotation failed", "err", err)
				}
			}
		}
	}()
	return watcher, nil
}

package main

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/binzume/organconv/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

const watchDelay = 500 * time.Millisecond

// ignored reports whether an event on name should not trigger a conversion.
func ignored(name, folder, outDir string) bool {
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(folder, outDir)
	}
	rel, err := filepath.Rel(filepath.Clean(outDir), filepath.Clean(name))
	if err == nil && (rel == "." || !strings.HasPrefix(rel, "..")) {
		return true
	}
	base := filepath.Base(name)
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~")
}

// watch calls convert once, and again each time the folder has been quiet for watchDelay
// after a change. Returns when ctx is done.
func watch(ctx context.Context, folder, outDir string, convert func() error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(folder); err != nil {
		return errors.Wrapf(err, "watch %s", folder)
	}

	if err := convert(); err != nil {
		return err
	}
	logging.Infof("watching %s", folder)

	timer := time.NewTimer(watchDelay)
	timer.Stop()
	for {
		select {
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if e.Op == fsnotify.Chmod || ignored(e.Name, folder, outDir) {
				continue
			}
			logging.Debugf("%s %s", e.Op, e.Name)
			timer.Reset(watchDelay)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logging.Warnf("watch: %v", err)
		case <-timer.C:
			if err := convert(); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

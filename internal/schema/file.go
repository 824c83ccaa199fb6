package schema

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// FileSource serves a hand-written schema file and reloads it when the file
// changes. A reload that fails to parse keeps the previous description.
type FileSource struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	current Description
	timer   *time.Timer
}

func NewFileSource(path string, logger *slog.Logger) (*FileSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	source := &FileSource{path: filepath.Clean(path), logger: logger}
	if err := source.Reload(); err != nil {
		return nil, err
	}
	return source, nil
}

func (s *FileSource) Describe(context.Context) (Description, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *FileSource) Reload() error {
	content, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read schema file %q: %w", s.path, err)
	}
	description, err := Parse(string(content))
	if err != nil {
		return fmt.Errorf("parse schema file %q: %w", s.path, err)
	}
	s.mu.Lock()
	s.current = description
	s.mu.Unlock()
	return nil
}

// Watch reloads the file on change until ctx is done. The parent directory is
// watched so editors that replace the file are picked up.
func (s *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create schema watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch schema dir: %w", err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				s.stopTimer()
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != s.path {
					continue
				}
				if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename) {
					s.scheduleReload()
				}
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("schema watcher error", "error", watchErr)
			}
		}
	}()
	return nil
}

func (s *FileSource) scheduleReload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(reloadDebounce, func() {
		if err := s.Reload(); err != nil {
			s.logger.Warn("schema reload failed", "path", s.path, "error", err)
			return
		}
		s.logger.Info("schema reloaded", "path", s.path)
	})
}

func (s *FileSource) stopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
}

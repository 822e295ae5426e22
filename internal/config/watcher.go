// Copyright 2026 The replyguard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Store holds the live configuration and supports hot reloading.
// Readers call Current; a background fsnotify watcher swaps the value
// in when the file changes. An invalid file keeps the last good config.
type Store struct {
	path string

	mu  sync.RWMutex
	cfg *Config

	watcher  *fsnotify.Watcher
	stopOnce sync.Once
	stop     chan struct{}
}

// NewStore loads the configuration file and returns a store around it.
func NewStore(path string) (*Store, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return &Store{
		path: path,
		cfg:  cfg,
		stop: make(chan struct{}),
	}, nil
}

// NewStaticStore wraps an in-memory configuration with no file backing.
// Used by embedding hosts and tests; hot reload does not apply.
func NewStaticStore(cfg *Config) *Store {
	if cfg == nil {
		cfg = Default()
	}
	return &Store{cfg: cfg, stop: make(chan struct{})}
}

// Current returns the active configuration. The returned value must be
// treated as read-only.
func (s *Store) Current() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Replace installs a new configuration, returning the previous one.
func (s *Store) Replace(cfg *Config) *Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.cfg
	s.cfg = cfg
	return old
}

// StartWatcher begins watching the config file's directory for changes
// and reloads on write, create or rename events.
func (s *Store) StartWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	// Watch the directory rather than the file so editors that replace
	// the file via rename are still observed.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					log.Infof("Config file changed (%s), reloading...", event.Name)
					time.Sleep(100 * time.Millisecond)
					s.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Errorf("Config watcher error: %v", err)
			case <-s.stop:
				return
			}
		}
	}()

	return nil
}

func (s *Store) reload() {
	cfg, err := LoadConfig(s.path)
	if err != nil {
		log.Errorf("Failed to reload config, keeping previous: %v", err)
		return
	}
	s.Replace(cfg)
	log.Info("Config reloaded")
}

// StopWatcher stops the file watcher. Safe to call more than once.
func (s *Store) StopWatcher() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.watcher != nil {
			s.watcher.Close()
		}
	})
}

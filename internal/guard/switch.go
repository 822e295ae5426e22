// Copyright 2026 The replyguard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package guard

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	log "github.com/sirupsen/logrus"

	"github.com/traylinx/replyguard/internal/config"
	"github.com/traylinx/replyguard/internal/platform"
)

// Override is a snapshot of one active Switch Record, exposed to the
// status API.
type Override struct {
	SessionKey       string    `json:"session_key"`
	ActiveProvider   string    `json:"active_provider"`
	PreviousProvider string    `json:"previous_provider"`
	Since            time.Time `json:"since"`
}

// switchRecord tracks an active temporary provider override for one
// session key.
type switchRecord struct {
	active   string
	previous string
	since    time.Time
}

// revertTask is the cancellable deferred action that restores the
// previous provider. Cancellation is idempotent and never errors.
type revertTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// sessionState is the per-session override slot: one Switch Record and
// at most one pending revert task, created and destroyed together.
type sessionState struct {
	record switchRecord
	revert *revertTask
}

// replyRetrier retries the user's original request against the newly
// selected provider. Implemented by Retrier; nil disables the retry.
type replyRetrier interface {
	RetryWithSwitchedProvider(ctx context.Context, ev *platform.Event) bool
}

// SwitchController performs keyword-triggered temporary provider
// switches per session, with a timed revert to the previous provider.
type SwitchController struct {
	store    *config.Store
	registry platform.ProviderRegistry
	host     platform.HostConfig
	retrier  replyRetrier

	mu       sync.Mutex
	sessions map[string]*sessionState

	// revertUnit scales switch-revert-seconds; tests shrink it.
	revertUnit time.Duration
}

// NewSwitchController builds a switch controller. retrier may be nil,
// disabling the immediate retry-reply path.
func NewSwitchController(store *config.Store, registry platform.ProviderRegistry, host platform.HostConfig, retrier replyRetrier) *SwitchController {
	return &SwitchController{
		store:      store,
		registry:   registry,
		host:       host,
		retrier:    retrier,
		sessions:   make(map[string]*sessionState),
		revertUnit: time.Second,
	}
}

func isKeywordSeparator(r rune) bool {
	switch r {
	case ',', ';', '、', '，', '；':
		return true
	}
	return unicode.IsSpace(r)
}

// ParseKeywords splits a configured keyword string into trimmed,
// non-empty tokens. Commas, semicolons and whitespace separate tokens,
// full-width variants included.
func ParseKeywords(s string) []string {
	fields := strings.FieldsFunc(s, isKeywordSeparator)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if tok := strings.TrimSpace(f); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// MaybeSwitchOnKeyword checks the outgoing reply for a switch trigger
// and performs the provider switch when one matches. It returns true
// when the caller must stop further reply processing for this event.
func (c *SwitchController) MaybeSwitchOnKeyword(ctx context.Context, ev *platform.Event) bool {
	cfg := c.store.Current()
	if !cfg.SwitchOnKeywordEnable || c.registry == nil || ev == nil || ev.Result() == nil {
		return false
	}

	tokens := ParseKeywords(cfg.SwitchKeywords)
	if len(tokens) == 0 {
		tokens = DefaultErrorMarkers
	}

	text := strings.ToLower(ev.Result().PlainText())
	if text == "" || !containsAnyFold(text, tokens) {
		return false
	}

	target := strings.TrimSpace(cfg.SwitchProviderID)
	if target == "" {
		log.Warn("Switch keyword matched but no switch-provider-id configured")
		return c.intercept(ev, cfg.SwitchBlockMessage)
	}
	if _, err := c.registry.Resolve(target); err != nil {
		log.Errorf("Switch target provider %s not resolvable: %v", target, err)
		return c.intercept(ev, cfg.SwitchBlockMessage)
	}

	scope := platform.ScopeGlobal
	if c.host.ProviderPerSession() {
		scope = platform.ScopeSession
	}

	previous := ""
	if cur, err := c.registry.CurrentProvider(ev.SessionKey); err != nil {
		log.Warnf("Failed to resolve current provider for %s: %v", ev.SessionKey, err)
	} else if cur != nil {
		if cur.ID() == target {
			// Already on the target: no registry mutation, no new record.
			// An existing override keeps its record but gets a fresh
			// revert timer so repeated triggers extend the window.
			log.Debugf("Session %s already on provider %s", ev.SessionKey, target)
			c.refreshRevert(ev.SessionKey, target, scope, cfg)
			return c.intercept(ev, cfg.SwitchBlockMessage)
		}
		previous = cur.ID()
	}

	if !attempt("switch provider to "+target, func() error {
		return c.registry.SetProvider(ctx, target, scope, ev.SessionKey)
	}) {
		return c.intercept(ev, cfg.SwitchBlockMessage)
	}
	log.Infof("Switched provider for %s: %s -> %s (%s)", ev.SessionKey, previous, target, scope)

	c.mu.Lock()
	c.cancelRevertLocked(ev.SessionKey)
	st := &sessionState{record: switchRecord{active: target, previous: previous, since: time.Now()}}
	c.sessions[ev.SessionKey] = st
	if cfg.SwitchRevertSeconds > 0 && previous != "" {
		c.scheduleRevertLocked(ev.SessionKey, st, target, previous, scope,
			time.Duration(cfg.SwitchRevertSeconds)*c.revertUnit)
	}
	c.mu.Unlock()

	if cfg.SwitchRetryReplyEnable && c.retrier != nil {
		if c.retrier.RetryWithSwitchedProvider(ctx, ev) {
			return true
		}
	}

	return c.intercept(ev, cfg.SwitchBlockMessage)
}

// intercept clears the event result and halts processing when block is
// set, and reports whether the event was handled.
func (c *SwitchController) intercept(ev *platform.Event, block bool) bool {
	if block {
		ev.ClearResult()
		ev.Stop()
	}
	return block
}

func containsAnyFold(lowered string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(lowered, strings.ToLower(tok)) {
			return true
		}
	}
	return false
}

// refreshRevert restarts the revert window for an already-active
// override. The first timer is cancelled before the new one starts, so
// at most one revert timer exists for the session at any time.
func (c *SwitchController) refreshRevert(sessionKey, target string, scope platform.Scope, cfg *config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.sessions[sessionKey]
	if !ok || st.record.active != target {
		return
	}
	c.cancelRevertLocked(sessionKey)
	if cfg.SwitchRevertSeconds > 0 && st.record.previous != "" {
		c.scheduleRevertLocked(sessionKey, st, target, st.record.previous, scope,
			time.Duration(cfg.SwitchRevertSeconds)*c.revertUnit)
	}
}

// cancelRevertLocked cancels any pending revert task for the session.
// Cancellation is expected lifecycle, not an error. Caller holds c.mu.
func (c *SwitchController) cancelRevertLocked(sessionKey string) {
	if st, ok := c.sessions[sessionKey]; ok && st.revert != nil {
		st.revert.cancel()
		st.revert = nil
	}
}

// scheduleRevertLocked attaches a new revert task to st. Any previous
// task for the session has already been cancelled. Caller holds c.mu.
func (c *SwitchController) scheduleRevertLocked(sessionKey string, st *sessionState, target, previous string, scope platform.Scope, delay time.Duration) {
	taskCtx, cancel := context.WithCancel(context.Background())
	task := &revertTask{cancel: cancel, done: make(chan struct{})}
	st.revert = task

	go func() {
		defer close(task.done)
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-taskCtx.Done():
			return
		case <-timer.C:
		}
		c.fireRevert(sessionKey, task, target, previous, scope)
	}()
}

// fireRevert runs when a revert timer elapses. The session's provider
// is reread before mutating: a later manual or keyword switch must not
// be clobbered by a stale timer.
func (c *SwitchController) fireRevert(sessionKey string, task *revertTask, target, previous string, scope platform.Scope) {
	c.mu.Lock()
	st, ok := c.sessions[sessionKey]
	if !ok || st.revert != task {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	cur, err := c.registry.CurrentProvider(sessionKey)
	if err == nil && cur != nil && cur.ID() == target {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if attempt("revert provider for "+sessionKey, func() error {
			return c.registry.SetProvider(ctx, previous, scope, sessionKey)
		}) {
			log.Infof("Reverted provider for %s: %s -> %s", sessionKey, target, previous)
		}
	} else {
		log.Debugf("Skipping revert for %s: provider no longer %s", sessionKey, target)
	}

	c.mu.Lock()
	if live, ok := c.sessions[sessionKey]; ok && live == st && st.revert == task {
		delete(c.sessions, sessionKey)
	}
	c.mu.Unlock()
}

// ActiveOverrides returns a snapshot of the live Switch Records.
func (c *SwitchController) ActiveOverrides() []Override {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Override, 0, len(c.sessions))
	for key, st := range c.sessions {
		out = append(out, Override{
			SessionKey:       key,
			ActiveProvider:   st.record.active,
			PreviousProvider: st.record.previous,
			Since:            st.record.since,
		})
	}
	return out
}

// Shutdown cancels every pending revert task without mutating any
// provider selection.
func (c *SwitchController) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.sessions {
		c.cancelRevertLocked(key)
	}
}

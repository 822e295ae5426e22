// Copyright 2026 The replyguard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package guard

import (
	"context"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/replyguard/internal/config"
	"github.com/traylinx/replyguard/internal/platform"
)

// Guard is the reply-processing pipeline registered with the host's
// on-decorating-result hook. Every outgoing reply passes the provider
// switch controller first; replies it does not handle go through error
// detection, AI explanation, admin notification and blocking.
//
// The guard's worst failure mode is behaving as if absent: no error
// raised here ever reaches the host or aborts message delivery.
type Guard struct {
	store    *config.Store
	detector *Detector
	explain  *Explainer
	switcher *SwitchController
	notifier *Notifier
}

// Deps are the host collaborators a Guard is wired against.
type Deps struct {
	Registry      platform.ProviderRegistry
	Conversations platform.ConversationManager
	Transport     platform.AdminTransport
	Host          platform.HostConfig
	Tools         platform.ToolSource
}

// New builds a fully wired guard over the live configuration. The
// detector's marker list and condition are fixed at construction;
// toggle and endpoint settings follow hot reloads.
func New(store *config.Store, deps Deps) *Guard {
	cfg := store.Current()
	var retrier replyRetrier
	if deps.Registry != nil && deps.Conversations != nil {
		retrier = NewRetrier(deps.Registry, deps.Conversations, deps.Tools)
	}
	return &Guard{
		store:    store,
		detector: NewDetector(cfg.ErrorKeywords, cfg.ErrorCondition),
		explain:  NewExplainer(store),
		switcher: NewSwitchController(store, deps.Registry, deps.Host, retrier),
		notifier: NewNotifier(deps.Transport, deps.Host),
	}
}

// OnDecoratingResult is the hook entry point, invoked by the host after
// a reply is composed but before delivery.
func (g *Guard) OnDecoratingResult(ctx context.Context, ev *platform.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("Panic in reply guard: %v", rec)
		}
	}()

	if ev == nil || ev.Result() == nil {
		return
	}

	reqLog := log.WithField("request_id", requestID())

	if g.switcher != nil && g.switcher.MaybeSwitchOnKeyword(ctx, ev) {
		reqLog.Debug("Reply handled by provider switch")
		return
	}

	text := ev.Result().PlainText()
	if text == "" || !g.detector.MatchEvent(ev) {
		return
	}
	reqLog.Infof("Intercepted error reply for %s: %s", ev.SessionKey, text)

	cfg := g.store.Current()

	explanation := ""
	if cfg.EnableAIExplanation {
		explanation, _ = g.explain.Explain(ctx, text, SessionContextFrom(ev))
	}

	if cfg.NotifyAdmin {
		g.notifier.NotifyError(ctx, ev, text, explanation)
	}

	if !cfg.BlockErrorMessages {
		return
	}

	ev.Stop()
	if explanation != "" && !cfg.BlockAIExplanationAndSendAdmin {
		reqLog.Infof("Replacing error reply with AI explanation: %s", explanation)
		ev.SetResult(&platform.Result{Text: explanation})
	} else {
		ev.ClearResult()
	}
}

// ActiveOverrides exposes the switch controller's live Switch Records.
func (g *Guard) ActiveOverrides() []Override {
	if g.switcher == nil {
		return nil
	}
	return g.switcher.ActiveOverrides()
}

// Shutdown cancels pending revert timers. Provider selections are left
// as they are; pending reverts do not survive a restart.
func (g *Guard) Shutdown() {
	if g.switcher != nil {
		g.switcher.Shutdown()
	}
}

// requestID returns a short correlation id for one hook invocation.
func requestID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

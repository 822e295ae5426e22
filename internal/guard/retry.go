// Copyright 2026 The replyguard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package guard

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/traylinx/replyguard/internal/platform"
)

// Retrier replays the user's original request against the session's
// freshly switched provider and installs the new reply.
type Retrier struct {
	registry platform.ProviderRegistry
	convs    platform.ConversationManager
	tools    platform.ToolSource
}

// NewRetrier builds a retrier. tools may be nil, meaning no tool set is
// offered to the provider.
func NewRetrier(registry platform.ProviderRegistry, convs platform.ConversationManager, tools platform.ToolSource) *Retrier {
	return &Retrier{registry: registry, convs: convs, tools: tools}
}

// RetryWithSwitchedProvider invokes the session's current provider with
// the original user message and the stored conversation history, then
// installs the response as the event result. Returns false on any
// failure; the caller falls back to the normal intercept logic.
func (r *Retrier) RetryWithSwitchedProvider(ctx context.Context, ev *platform.Event) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("Panic during reply retry for %s: %v", ev.SessionKey, rec)
			ok = false
		}
	}()

	provider, err := r.registry.CurrentProvider(ev.SessionKey)
	if err != nil || provider == nil {
		log.Warnf("Reply retry for %s: no current provider: %v", ev.SessionKey, err)
		return false
	}

	convID := r.convs.CurrentConversationID(ev.SessionKey)
	if convID == "" {
		convID, err = r.convs.CreateConversation(ev.SessionKey)
		if err != nil {
			log.Errorf("Reply retry for %s: failed to create conversation: %v", ev.SessionKey, err)
			return false
		}
	}

	conv, err := r.convs.Conversation(ev.SessionKey, convID)
	if err != nil {
		log.Errorf("Reply retry for %s: failed to fetch conversation %s: %v", ev.SessionKey, convID, err)
		return false
	}

	req := &platform.ChatRequest{
		Prompt:  ev.MessageText,
		History: parseHistory(conv.History),
	}
	if r.tools != nil {
		req.Tools = r.tools.ActiveTools()
	}

	resp, err := provider.ChatCompletion(ctx, req)
	if err != nil || resp == nil {
		log.Errorf("Reply retry for %s: provider %s call failed: %v", ev.SessionKey, provider.ID(), err)
		return false
	}

	if resp.Payload != nil {
		ev.SetResult(&platform.Result{Payload: resp.Payload})
	} else {
		ev.SetResult(&platform.Result{Text: resp.Text})
	}
	ev.Stop()
	log.Infof("Reply retried with provider %s for %s", provider.ID(), ev.SessionKey)
	return true
}

// parseHistory decodes the host's serialized conversation history.
// Malformed or non-array JSON yields an empty history.
func parseHistory(raw string) []platform.HistoryEntry {
	parsed := gjson.Parse(raw)
	if !parsed.IsArray() {
		return nil
	}
	var history []platform.HistoryEntry
	parsed.ForEach(func(_, turn gjson.Result) bool {
		history = append(history, platform.HistoryEntry{
			Role:    turn.Get("role").String(),
			Content: turn.Get("content").String(),
		})
		return true
	})
	return history
}

// Copyright 2026 The replyguard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/traylinx/replyguard/internal/platform"
)

// devHost is the in-memory stand-in for the chat-bot host used by the
// development harness. It ships two echo providers so keyword switching
// and reverting can be observed end to end.
type devHost struct {
	registry      *devRegistry
	conversations *devConversations
	transport     *devTransport
}

func newDevHost() *devHost {
	return &devHost{
		registry: &devRegistry{
			providers: map[string]*devProvider{
				"primary": {id: "primary"},
				"backup":  {id: "backup"},
			},
			current: make(map[string]string),
			global:  "primary",
		},
		conversations: &devConversations{ids: make(map[string]string)},
		transport:     &devTransport{},
	}
}

func (h *devHost) AdminIDs() []string { return []string{"10001"} }

func (h *devHost) ProviderPerSession() bool { return true }

type devProvider struct {
	id string
}

func (p *devProvider) ID() string { return p.id }

func (p *devProvider) ChatCompletion(_ context.Context, req *platform.ChatRequest) (*platform.ChatResponse, error) {
	return &platform.ChatResponse{
		Text: fmt.Sprintf("[%s] %s", p.id, req.Prompt),
	}, nil
}

type devRegistry struct {
	mu        sync.Mutex
	providers map[string]*devProvider
	current   map[string]string
	global    string
}

func (r *devRegistry) Resolve(id string) (platform.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("unknown provider %q", id)
}

func (r *devRegistry) CurrentProvider(sessionKey string) (platform.Provider, error) {
	return r.Resolve(r.currentID(sessionKey))
}

func (r *devRegistry) SetProvider(_ context.Context, id string, scope platform.Scope, sessionKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[id]; !ok {
		return fmt.Errorf("unknown provider %q", id)
	}
	if scope == platform.ScopeSession {
		r.current[sessionKey] = id
	} else {
		r.global = id
	}
	return nil
}

func (r *devRegistry) currentID(sessionKey string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.current[sessionKey]; ok {
		return id
	}
	return r.global
}

type devConversations struct {
	mu  sync.Mutex
	ids map[string]string
}

func (c *devConversations) CurrentConversationID(sessionKey string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ids[sessionKey]
}

func (c *devConversations) CreateConversation(sessionKey string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := fmt.Sprintf("conv-%d", len(c.ids)+1)
	c.ids[sessionKey] = id
	return id, nil
}

func (c *devConversations) Conversation(_, id string) (*platform.Conversation, error) {
	return &platform.Conversation{ID: id, History: "[]"}, nil
}

type devTransport struct{}

func (t *devTransport) SendDirectMessage(_ context.Context, adminID int64, text string) error {
	log.Infof("[admin %d] %s", adminID, text)
	return nil
}

func (t *devTransport) GroupInfo(_ context.Context, groupID string) (*platform.GroupInfo, error) {
	return &platform.GroupInfo{Name: "dev-group-" + groupID}, nil
}

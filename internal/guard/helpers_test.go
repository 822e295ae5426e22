package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/traylinx/replyguard/internal/platform"
)

// platform1Event builds a reply event with a pending plain-text result.
func platform1Event(session, replyText, userMsg, sender, platformName, group string) *platform.Event {
	ev := &platform.Event{
		SessionKey:  session,
		Platform:    platformName,
		SenderID:    "1001",
		SenderName:  sender,
		GroupID:     group,
		MessageText: userMsg,
	}
	ev.SetResult(&platform.Result{Text: replyText})
	return ev
}

type fakeProvider struct {
	id      string
	reply   *platform.ChatResponse
	err     error
	lastReq *platform.ChatRequest
}

func (p *fakeProvider) ID() string { return p.id }

func (p *fakeProvider) ChatCompletion(_ context.Context, req *platform.ChatRequest) (*platform.ChatResponse, error) {
	p.lastReq = req
	if p.err != nil {
		return nil, p.err
	}
	return p.reply, nil
}

// fakeRegistry is an in-memory provider registry tracking the current
// selection per session plus a global fallback.
type fakeRegistry struct {
	mu        sync.Mutex
	providers map[string]*fakeProvider
	current   map[string]string
	global    string

	setCalls   int
	resolveErr error
	currentErr error
	setErr     error
}

func newFakeRegistry(global string, ids ...string) *fakeRegistry {
	r := &fakeRegistry{
		providers: make(map[string]*fakeProvider),
		current:   make(map[string]string),
		global:    global,
	}
	for _, id := range append(ids, global) {
		if id != "" {
			r.providers[id] = &fakeProvider{id: id}
		}
	}
	return r
}

func (r *fakeRegistry) Resolve(id string) (platform.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolveErr != nil {
		return nil, r.resolveErr
	}
	if p, ok := r.providers[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("unknown provider %q", id)
}

func (r *fakeRegistry) CurrentProvider(sessionKey string) (platform.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.currentErr != nil {
		return nil, r.currentErr
	}
	id, ok := r.current[sessionKey]
	if !ok {
		id = r.global
	}
	if id == "" {
		return nil, errors.New("no provider selected")
	}
	if p, ok := r.providers[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("unknown provider %q", id)
}

func (r *fakeRegistry) SetProvider(_ context.Context, id string, scope platform.Scope, sessionKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setCalls++
	if r.setErr != nil {
		return r.setErr
	}
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

func (r *fakeRegistry) currentID(sessionKey string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.current[sessionKey]; ok {
		return id
	}
	return r.global
}

// force sets a session's provider directly, bypassing SetProvider
// bookkeeping, to simulate a manual change behind the controller's back.
func (r *fakeRegistry) force(sessionKey, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[id]; !ok {
		r.providers[id] = &fakeProvider{id: id}
	}
	r.current[sessionKey] = id
}

func (r *fakeRegistry) mutations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setCalls
}

type fakeConvs struct {
	currentID string
	createID  string
	createErr error
	conv      *platform.Conversation
	convErr   error
	created   int
}

func (c *fakeConvs) CurrentConversationID(string) string { return c.currentID }

func (c *fakeConvs) CreateConversation(string) (string, error) {
	c.created++
	return c.createID, c.createErr
}

func (c *fakeConvs) Conversation(_, _ string) (*platform.Conversation, error) {
	return c.conv, c.convErr
}

type sentMessage struct {
	AdminID int64
	Text    string
}

type fakeTransport struct {
	mu       sync.Mutex
	sent     []sentMessage
	sendErr  error
	group    *platform.GroupInfo
	groupErr error
}

func (t *fakeTransport) SendDirectMessage(_ context.Context, adminID int64, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sent = append(t.sent, sentMessage{AdminID: adminID, Text: text})
	return nil
}

func (t *fakeTransport) GroupInfo(_ context.Context, _ string) (*platform.GroupInfo, error) {
	return t.group, t.groupErr
}

func (t *fakeTransport) messages() []sentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]sentMessage, len(t.sent))
	copy(out, t.sent)
	return out
}

type fakeHost struct {
	admins     []string
	perSession bool
}

func (h *fakeHost) AdminIDs() []string       { return h.admins }
func (h *fakeHost) ProviderPerSession() bool { return h.perSession }

type fakeTools struct {
	tools []platform.ToolSpec
}

func (f *fakeTools) ActiveTools() []platform.ToolSpec { return f.tools }

// Copyright 2026 The replyguard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package platform defines the contracts between replyguard and its host
// chat-bot runtime. The host owns the message/event model, the provider
// registry, the conversation store, and the admin messaging transport;
// replyguard only consumes these interfaces and never implements them.
package platform

import "context"

// Scope selects whether a provider change applies to a single session or
// to the whole process.
type Scope string

const (
	// ScopeGlobal applies a provider change to every session.
	ScopeGlobal Scope = "global"
	// ScopeSession applies a provider change to one session key only.
	ScopeSession Scope = "session"
)

// SegmentType identifies the kind of a message segment.
type SegmentType string

const (
	// SegmentText is a plain-text segment; all other types are opaque.
	SegmentText SegmentType = "text"
	// SegmentImage is an image attachment segment.
	SegmentImage SegmentType = "image"
	// SegmentAt is a mention segment.
	SegmentAt SegmentType = "at"
)

// Segment is one element of a structured message content sequence.
type Segment struct {
	Type SegmentType `json:"type"`
	Text string      `json:"text,omitempty"`
	Data string      `json:"data,omitempty"`
}

// Result is the outgoing reply attached to an event. Either Text or
// Segments carries the content; Payload holds a structured provider
// reply installed verbatim by a retry.
type Result struct {
	Text     string
	Segments []Segment
	Payload  any
}

// PlainText returns the textual rendering of the result. When Text is
// empty the textual segments are concatenated in order; non-textual
// segments are skipped.
func (r *Result) PlainText() string {
	if r == nil {
		return ""
	}
	if r.Text != "" {
		return r.Text
	}
	var out string
	for _, seg := range r.Segments {
		if seg.Type == SegmentText {
			out += seg.Text
		}
	}
	return out
}

// Event is the mutable reply-event handle the host passes to the
// on-decorating-result hook. SessionKey is the unified message origin
// and uniquely identifies one conversation destination.
type Event struct {
	SessionKey  string
	Platform    string
	SenderID    string
	SenderName  string
	GroupID     string
	MessageText string

	result  *Result
	stopped bool
}

// NewEvent builds an event carrying the given pending result.
func NewEvent(sessionKey string, result *Result) *Event {
	return &Event{SessionKey: sessionKey, result: result}
}

// Result returns the pending outgoing reply, or nil when none is set.
func (e *Event) Result() *Result { return e.result }

// SetResult replaces the pending outgoing reply.
func (e *Event) SetResult(r *Result) { e.result = r }

// ClearResult removes the pending outgoing reply.
func (e *Event) ClearResult() { e.result = nil }

// Stop halts further host-side processing of this event.
func (e *Event) Stop() { e.stopped = true }

// Stopped reports whether event propagation has been halted.
func (e *Event) Stopped() bool { return e.stopped }

// IsGroup reports whether the event originated in a group chat.
func (e *Event) IsGroup() bool { return e.GroupID != "" }

// HistoryEntry is one prior turn of a conversation.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolSpec describes one tool the provider may call.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ChatRequest is a single-shot, non-streaming completion request.
type ChatRequest struct {
	Prompt  string
	History []HistoryEntry
	Tools   []ToolSpec
}

// ChatResponse is the provider's completion result. Payload, when
// non-nil, is a structured reply the host can install directly.
type ChatResponse struct {
	Text    string
	Payload any
}

// Provider is a pluggable language-model backend.
type Provider interface {
	// ID returns the registry identifier of this provider.
	ID() string
	// ChatCompletion performs one synchronous completion call.
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// ProviderRegistry resolves and selects providers. Selection may be
// global or scoped to a session key depending on host configuration.
type ProviderRegistry interface {
	// Resolve looks up a provider by id.
	Resolve(id string) (Provider, error)
	// CurrentProvider returns the provider currently serving a session.
	CurrentProvider(sessionKey string) (Provider, error)
	// SetProvider switches the active provider. sessionKey is ignored
	// for ScopeGlobal.
	SetProvider(ctx context.Context, id string, scope Scope, sessionKey string) error
}

// Conversation is a stored conversation record. History is the host's
// serialized JSON array of {role, content} turns.
type Conversation struct {
	ID      string
	History string
}

// ConversationManager is the host's conversation-history store.
type ConversationManager interface {
	// CurrentConversationID returns the active conversation id for a
	// session, or "" when the session has none.
	CurrentConversationID(sessionKey string) string
	// CreateConversation starts a new conversation for a session.
	CreateConversation(sessionKey string) (string, error)
	// Conversation fetches a stored conversation record.
	Conversation(sessionKey, id string) (*Conversation, error)
}

// GroupInfo is the host's view of a group chat.
type GroupInfo struct {
	Name string
}

// AdminTransport delivers out-of-band messages to administrators.
type AdminTransport interface {
	// SendDirectMessage sends one private text message to an admin.
	SendDirectMessage(ctx context.Context, adminID int64, text string) error
	// GroupInfo resolves display information for a group chat.
	GroupInfo(ctx context.Context, groupID string) (*GroupInfo, error)
}

// HostConfig exposes the host-level settings replyguard consults.
type HostConfig interface {
	// AdminIDs returns the configured administrator identifiers.
	AdminIDs() []string
	// ProviderPerSession reports whether provider selection is scoped
	// per session key rather than process-global.
	ProviderPerSession() bool
}

// ToolSource supplies the tool set available to a retried completion.
// Implementations may be nil, meaning no tools.
type ToolSource interface {
	ActiveTools() []ToolSpec
}

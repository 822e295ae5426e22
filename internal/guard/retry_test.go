package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traylinx/replyguard/internal/platform"
)

func TestRetry_InstallsPlainText(t *testing.T) {
	reg := newFakeRegistry("backup")
	reg.providers["backup"].reply = &platform.ChatResponse{Text: "all good now"}
	convs := &fakeConvs{
		currentID: "conv-1",
		conv:      &platform.Conversation{ID: "conv-1", History: `[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]`},
	}
	r := NewRetrier(reg, convs, &fakeTools{tools: []platform.ToolSpec{{Name: "search"}}})

	ev := platform1Event("s1", "失败", "what is up", "alice", "qq", "")
	require.True(t, r.RetryWithSwitchedProvider(context.Background(), ev))

	assert.True(t, ev.Stopped())
	assert.Equal(t, "all good now", ev.Result().PlainText())

	req := reg.providers["backup"].lastReq
	require.NotNil(t, req)
	assert.Equal(t, "what is up", req.Prompt)
	require.Len(t, req.History, 2)
	assert.Equal(t, "user", req.History[0].Role)
	assert.Equal(t, "hello", req.History[1].Content)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "search", req.Tools[0].Name)
}

func TestRetry_InstallsStructuredPayload(t *testing.T) {
	payload := map[string]any{"kind": "chat_completion", "id": "abc"}
	reg := newFakeRegistry("backup")
	reg.providers["backup"].reply = &platform.ChatResponse{Text: "ignored", Payload: payload}
	convs := &fakeConvs{currentID: "conv-1", conv: &platform.Conversation{ID: "conv-1", History: "[]"}}
	r := NewRetrier(reg, convs, nil)

	ev := platform1Event("s1", "失败", "hi", "alice", "qq", "")
	require.True(t, r.RetryWithSwitchedProvider(context.Background(), ev))
	require.NotNil(t, ev.Result())
	assert.Equal(t, payload, ev.Result().Payload)
	assert.Empty(t, ev.Result().Text)
}

func TestRetry_CreatesConversationWhenMissing(t *testing.T) {
	reg := newFakeRegistry("backup")
	reg.providers["backup"].reply = &platform.ChatResponse{Text: "ok"}
	convs := &fakeConvs{createID: "conv-new", conv: &platform.Conversation{ID: "conv-new", History: "[]"}}
	r := NewRetrier(reg, convs, nil)

	ev := platform1Event("s1", "失败", "hi", "alice", "qq", "")
	require.True(t, r.RetryWithSwitchedProvider(context.Background(), ev))
	assert.Equal(t, 1, convs.created)
}

func TestRetry_MalformedHistoryDefaultsToEmpty(t *testing.T) {
	for _, history := range []string{`not json`, `{"role":"user"}`, ``} {
		reg := newFakeRegistry("backup")
		reg.providers["backup"].reply = &platform.ChatResponse{Text: "ok"}
		convs := &fakeConvs{currentID: "c", conv: &platform.Conversation{ID: "c", History: history}}
		r := NewRetrier(reg, convs, nil)

		ev := platform1Event("s1", "失败", "hi", "alice", "qq", "")
		require.True(t, r.RetryWithSwitchedProvider(context.Background(), ev), "history %q", history)
		assert.Empty(t, reg.providers["backup"].lastReq.History)
	}
}

func TestRetry_Failures(t *testing.T) {
	ev := func() *platform.Event { return platform1Event("s1", "失败", "hi", "alice", "qq", "") }

	t.Run("no current provider", func(t *testing.T) {
		reg := newFakeRegistry("")
		r := NewRetrier(reg, &fakeConvs{}, nil)
		assert.False(t, r.RetryWithSwitchedProvider(context.Background(), ev()))
	})

	t.Run("conversation create fails", func(t *testing.T) {
		reg := newFakeRegistry("backup")
		convs := &fakeConvs{createErr: errors.New("store down")}
		r := NewRetrier(reg, convs, nil)
		assert.False(t, r.RetryWithSwitchedProvider(context.Background(), ev()))
	})

	t.Run("conversation fetch fails", func(t *testing.T) {
		reg := newFakeRegistry("backup")
		convs := &fakeConvs{currentID: "c", convErr: errors.New("store down")}
		r := NewRetrier(reg, convs, nil)
		assert.False(t, r.RetryWithSwitchedProvider(context.Background(), ev()))
	})

	t.Run("provider call fails", func(t *testing.T) {
		reg := newFakeRegistry("backup")
		reg.providers["backup"].err = errors.New("upstream 502")
		convs := &fakeConvs{currentID: "c", conv: &platform.Conversation{ID: "c", History: "[]"}}
		r := NewRetrier(reg, convs, nil)

		e := ev()
		assert.False(t, r.RetryWithSwitchedProvider(context.Background(), e))
		// The original reply stays untouched on failure.
		assert.False(t, e.Stopped())
		assert.Equal(t, "失败", e.Result().PlainText())
	})

	t.Run("nil conversation panics are contained", func(t *testing.T) {
		reg := newFakeRegistry("backup")
		convs := &fakeConvs{currentID: "c", conv: nil}
		r := NewRetrier(reg, convs, nil)
		assert.False(t, r.RetryWithSwitchedProvider(context.Background(), ev()))
	})
}

func TestParseHistory(t *testing.T) {
	history := parseHistory(`[{"role":"user","content":"a"},{"role":"assistant","content":"b"}]`)
	require.Len(t, history, 2)
	assert.Equal(t, platform.HistoryEntry{Role: "user", Content: "a"}, history[0])

	assert.Nil(t, parseHistory(""))
	assert.Nil(t, parseHistory("{}"))
	assert.Nil(t, parseHistory("garbage"))
}

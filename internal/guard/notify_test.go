package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traylinx/replyguard/internal/platform"
)

func TestNotify_DirectChat(t *testing.T) {
	transport := &fakeTransport{}
	host := &fakeHost{admins: []string{"10001", "10002"}}
	n := NewNotifier(transport, host)

	ev := platform1Event("s1", "请求失败", "hi", "alice", "qq", "")
	n.NotifyError(context.Background(), ev, "请求失败: boom", "")

	msgs := transport.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(10001), msgs[0].AdminID)
	assert.Equal(t, int64(10002), msgs[1].AdminID)
	assert.Contains(t, msgs[0].Text, "私聊")
	assert.Contains(t, msgs[0].Text, "alice")
	assert.Contains(t, msgs[0].Text, "请求失败: boom")
}

func TestNotify_GroupChatResolvesName(t *testing.T) {
	transport := &fakeTransport{group: &platform.GroupInfo{Name: "测试群"}}
	host := &fakeHost{admins: []string{"10001"}}
	n := NewNotifier(transport, host)

	ev := platform1Event("s1", "请求失败", "hi", "bob", "qq", "g777")
	n.NotifyError(context.Background(), ev, "请求失败", "")

	msgs := transport.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "群聊")
	assert.Contains(t, msgs[0].Text, "测试群")
	assert.Contains(t, msgs[0].Text, "g777")
	assert.Contains(t, msgs[0].Text, "[bob]")
}

func TestNotify_GroupNameLookupFailureFallsBack(t *testing.T) {
	transport := &fakeTransport{groupErr: errors.New("api down")}
	host := &fakeHost{admins: []string{"10001"}}
	n := NewNotifier(transport, host)

	ev := platform1Event("s1", "请求失败", "hi", "bob", "qq", "g777")
	n.NotifyError(context.Background(), ev, "请求失败", "")

	msgs := transport.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "获取群名失败")
}

func TestNotify_SkipsNonNumericAdmins(t *testing.T) {
	transport := &fakeTransport{}
	host := &fakeHost{admins: []string{"not-a-number", "", "10001", "12.5"}}
	n := NewNotifier(transport, host)

	ev := platform1Event("s1", "请求失败", "hi", "alice", "qq", "")
	n.NotifyError(context.Background(), ev, "boom", "")

	msgs := transport.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(10001), msgs[0].AdminID)
}

func TestNotify_AppendsExplanation(t *testing.T) {
	transport := &fakeTransport{}
	host := &fakeHost{admins: []string{"10001"}}
	n := NewNotifier(transport, host)

	ev := platform1Event("s1", "请求失败", "hi", "alice", "qq", "")
	n.NotifyError(context.Background(), ev, "boom", "服务暂时不可用，请稍后再试")

	msgs := transport.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "AI解释: 服务暂时不可用，请稍后再试")
}

func TestNotify_SendFailuresSwallowed(t *testing.T) {
	transport := &fakeTransport{sendErr: errors.New("network down")}
	host := &fakeHost{admins: []string{"10001"}}
	n := NewNotifier(transport, host)

	ev := platform1Event("s1", "请求失败", "hi", "alice", "qq", "")
	assert.NotPanics(t, func() {
		n.NotifyError(context.Background(), ev, "boom", "")
	})
}

func TestNotify_UnknownSenderSentinel(t *testing.T) {
	transport := &fakeTransport{}
	host := &fakeHost{admins: []string{"10001"}}
	n := NewNotifier(transport, host)

	ev := platform1Event("s1", "请求失败", "hi", "", "qq", "")
	n.NotifyError(context.Background(), ev, "boom", "")

	msgs := transport.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "未知用户")
}

func TestNotify_NilCollaborators(t *testing.T) {
	n := NewNotifier(nil, nil)
	ev := platform1Event("s1", "请求失败", "hi", "alice", "qq", "")
	assert.NotPanics(t, func() {
		n.NotifyError(context.Background(), ev, "boom", "")
	})
}

// Copyright 2026 The replyguard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package guard

import (
	"context"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/traylinx/replyguard/internal/platform"
)

const groupNameFallback = "获取群名失败"

// Notifier forwards intercepted error text to the configured admins via
// direct messages. Delivery is best-effort: every failure is logged and
// swallowed so the reply pipeline is never affected.
type Notifier struct {
	transport platform.AdminTransport
	host      platform.HostConfig
}

// NewNotifier builds an admin notifier.
func NewNotifier(transport platform.AdminTransport, host platform.HostConfig) *Notifier {
	return &Notifier{transport: transport, host: host}
}

// NotifyError sends one formatted message per configured admin whose id
// is numeric. explanation, when non-empty, is appended to the message.
func (n *Notifier) NotifyError(ctx context.Context, ev *platform.Event, errorText, explanation string) {
	if n.transport == nil || n.host == nil {
		return
	}

	text := n.formatMessage(ctx, ev, errorText)
	if explanation != "" {
		text += "\nAI解释: " + explanation
	}

	for _, adminID := range n.host.AdminIDs() {
		id, err := strconv.ParseInt(adminID, 10, 64)
		if err != nil {
			continue
		}
		attempt(fmt.Sprintf("notify admin %d", id), func() error {
			return n.transport.SendDirectMessage(ctx, id, text)
		})
	}
}

// formatMessage resolves the chat context of the event. Any lookup
// failure falls back to a placeholder instead of aborting.
func (n *Notifier) formatMessage(ctx context.Context, ev *platform.Event, errorText string) string {
	userName := withDefault(ev.SenderName, unknownUser)

	if ev.IsGroup() {
		groupName := groupNameFallback
		if info, err := n.transport.GroupInfo(ctx, ev.GroupID); err != nil {
			log.Errorf("Failed to resolve group name for %s: %v", ev.GroupID, err)
		} else if info != nil && info.Name != "" {
			groupName = info.Name
		}
		return fmt.Sprintf("主人，我在群聊 %s（%s） 中和 [%s] 聊天出现错误了: %s",
			groupName, ev.GroupID, userName, errorText)
	}

	chatID := ev.SenderID
	if chatID == "" {
		chatID = "未知ID"
	}
	return fmt.Sprintf("主人，我在和 %s（%s） 私聊时出现错误了: %s", userName, chatID, errorText)
}

// Copyright 2026 The replyguard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package guard

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/traylinx/replyguard/internal/config"
	"github.com/traylinx/replyguard/internal/platform"
)

// explanationTemperature keeps the rewritten error text deterministic.
const explanationTemperature = 0.3

// SessionContext carries the chat context substituted into the
// explanation prompt in session-aware mode. Zero values are replaced
// with sentinel strings rather than failing the template.
type SessionContext struct {
	UserMessage string
	UserName    string
	Platform    string
	ChatType    string
}

// SessionContextFrom derives the prompt context from a reply event.
func SessionContextFrom(ev *platform.Event) SessionContext {
	sctx := SessionContext{}
	if ev == nil {
		return sctx
	}
	sctx.UserMessage = ev.MessageText
	sctx.UserName = ev.SenderName
	sctx.Platform = ev.Platform
	if ev.IsGroup() {
		sctx.ChatType = "群聊"
	} else {
		sctx.ChatType = "私聊"
	}
	return sctx
}

// Explainer turns raw error text into a user-facing explanation by
// calling an OpenAI-compatible chat-completion endpoint. Every failure
// mode degrades to "no explanation"; the caller never sees an error.
type Explainer struct {
	store  *config.Store
	client *http.Client
}

// NewExplainer builds an explainer over the live configuration.
func NewExplainer(store *config.Store) *Explainer {
	return &Explainer{
		store:  store,
		client: &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// Explain generates a friendly explanation for errorText. It returns
// false without any network call when AI explanation is disabled or no
// API key is configured, and false on any endpoint failure.
func (e *Explainer) Explain(ctx context.Context, errorText string, sctx SessionContext) (string, bool) {
	cfg := e.store.Current()
	if !cfg.EnableAIExplanation || cfg.AIAPIKey == "" {
		return "", false
	}

	prompt := RenderPrompt(cfg.AIPrompt, errorText, sctx)

	body, err := json.Marshal(chatCompletionRequest{
		Model: cfg.AIModel,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens:   cfg.AIMaxTokens,
		Temperature: explanationTemperature,
	})
	if err != nil {
		log.Errorf("Failed to encode explanation request: %v", err)
		return "", false
	}

	timeout := time.Duration(cfg.AITimeoutSeconds) * time.Second
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := strings.TrimRight(cfg.AIBaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Errorf("Failed to build explanation request: %v", err)
		return "", false
	}
	req.Header.Set("Authorization", "Bearer "+cfg.AIAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		log.Errorf("Explanation API call failed: %v", err)
		return "", false
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Errorf("Failed to read explanation response: %v", err)
		return "", false
	}
	if resp.StatusCode != http.StatusOK {
		log.Errorf("Explanation API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		return "", false
	}

	choices := gjson.GetBytes(data, "choices")
	if !choices.IsArray() || len(choices.Array()) == 0 {
		log.Errorf("Explanation API returned no choices")
		return "", false
	}
	explanation := strings.TrimSpace(choices.Array()[0].Get("message.content").String())
	if explanation == "" {
		return "", false
	}

	log.Infof("AI explanation generated: %s", explanation)
	return explanation, true
}

// Sentinels substituted for missing prompt context fields.
const (
	unknownMessage  = "未知消息"
	unknownUser     = "未知用户"
	unknownPlatform = "未知平台"
	unknownChatType = "未知类型"
)

// RenderPrompt substitutes the named placeholders of the explanation
// template. The key set is fixed: {error}, {user_message}, {user_name},
// {platform}, {chat_type}. Missing context fields fall back to sentinel
// strings; unknown placeholders are left untouched.
func RenderPrompt(template, errorText string, sctx SessionContext) string {
	replacer := strings.NewReplacer(
		"{error}", errorText,
		"{user_message}", withDefault(sctx.UserMessage, unknownMessage),
		"{user_name}", withDefault(sctx.UserName, unknownUser),
		"{platform}", withDefault(sctx.Platform, unknownPlatform),
		"{chat_type}", withDefault(sctx.ChatType, unknownChatType),
	)
	return replacer.Replace(template)
}

func withDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

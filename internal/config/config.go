// Copyright 2026 The replyguard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for replyguard.
// It handles loading and parsing the YAML configuration file and
// provides structured access to the error-filter, AI-explanation and
// provider-switch settings.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPrompt is the prompt template used when ai-prompt is not set.
// {error} is replaced with the raw error text; in session-aware mode
// {user_message}, {user_name}, {platform} and {chat_type} are also
// substituted.
const DefaultPrompt = "请将以下技术错误信息转换为普通用户能理解的友好提示，保持简洁明了，不超过50字：{error}"

// Config represents the plugin configuration, loaded from a YAML file.
type Config struct {
	// BlockErrorMessages stops error-shaped replies from reaching the user.
	BlockErrorMessages bool `yaml:"block-error-messages" json:"block-error-messages"`

	// NotifyAdmin forwards intercepted errors to the configured admins.
	NotifyAdmin bool `yaml:"notify-admin" json:"notify-admin"`

	// ErrorKeywords overrides the built-in error marker list. Empty
	// keeps the defaults.
	ErrorKeywords []string `yaml:"error-keywords" json:"error-keywords"`

	// ErrorCondition is an optional expr-lang condition evaluated
	// against the reply context; when it evaluates to true the reply is
	// treated as an error even without a marker match.
	ErrorCondition string `yaml:"error-condition" json:"error-condition"`

	// EnableAIExplanation turns on AI rewriting of intercepted errors.
	EnableAIExplanation bool `yaml:"enable-ai-explanation" json:"enable-ai-explanation"`

	// AIBaseURL is the OpenAI-compatible endpoint base, without the
	// /chat/completions suffix.
	AIBaseURL string `yaml:"ai-base-url" json:"ai-base-url"`

	// AIAPIKey authenticates against the explanation endpoint. Empty
	// disables the explanation call entirely.
	AIAPIKey string `yaml:"ai-api-key" json:"-"`

	// AIModel is the model name sent with the explanation request.
	AIModel string `yaml:"ai-model" json:"ai-model"`

	// AIPrompt is the explanation prompt template.
	AIPrompt string `yaml:"ai-prompt" json:"ai-prompt"`

	// AITimeoutSeconds bounds the whole explanation HTTP call.
	AITimeoutSeconds int `yaml:"ai-timeout" json:"ai-timeout"`

	// AIMaxTokens caps the explanation length.
	AIMaxTokens int `yaml:"ai-max-tokens" json:"ai-max-tokens"`

	// BlockAIExplanationAndSendAdmin keeps the AI explanation out of the
	// user-facing reply and routes it to the admins instead.
	BlockAIExplanationAndSendAdmin bool `yaml:"block-ai-explanation-and-send-admin" json:"block-ai-explanation-and-send-admin"`

	// SwitchOnKeywordEnable turns on the keyword-triggered provider switch.
	SwitchOnKeywordEnable bool `yaml:"switch-on-keyword-enable" json:"switch-on-keyword-enable"`

	// SwitchKeywords is the trigger keyword list as a single string,
	// split on commas, semicolons and whitespace (full-width included).
	// Empty falls back to the error marker list.
	SwitchKeywords string `yaml:"switch-keywords" json:"switch-keywords"`

	// SwitchProviderID is the provider to switch to on a keyword match.
	SwitchProviderID string `yaml:"switch-provider-id" json:"switch-provider-id"`

	// SwitchRevertSeconds delays the automatic revert to the previous
	// provider. -1 disables the revert.
	SwitchRevertSeconds int `yaml:"switch-revert-seconds" json:"switch-revert-seconds"`

	// SwitchBlockMessage intercepts the triggering reply after a switch.
	SwitchBlockMessage bool `yaml:"switch-block-message" json:"switch-block-message"`

	// SwitchRetryReplyEnable retries the user's request against the new
	// provider immediately after a switch.
	SwitchRetryReplyEnable bool `yaml:"switch-retry-reply-enable" json:"switch-retry-reply-enable"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile writes logs to rotating files instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// StatusPort exposes the read-only status API when non-zero.
	StatusPort int `yaml:"status-port" json:"status-port"`
}

// Default returns a configuration populated with the documented defaults.
func Default() *Config {
	return &Config{
		BlockErrorMessages:     true,
		NotifyAdmin:            true,
		AIBaseURL:              "https://api.openai.com/v1",
		AIModel:                "gpt-3.5-turbo",
		AIPrompt:               DefaultPrompt,
		AITimeoutSeconds:       10,
		AIMaxTokens:            100,
		SwitchRevertSeconds:    -1,
		SwitchBlockMessage:     true,
		SwitchRetryReplyEnable: true,
	}
}

// LoadConfig reads and parses the YAML configuration file at the given
// path, applying defaults for any omitted keys.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration bytes, applying defaults for
// any omitted keys.
func ParseConfig(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.AIBaseURL) == "" {
		c.AIBaseURL = "https://api.openai.com/v1"
	}
	if strings.TrimSpace(c.AIModel) == "" {
		c.AIModel = "gpt-3.5-turbo"
	}
	if strings.TrimSpace(c.AIPrompt) == "" {
		c.AIPrompt = DefaultPrompt
	}
	if c.AITimeoutSeconds <= 0 {
		c.AITimeoutSeconds = 10
	}
	if c.AIMaxTokens <= 0 {
		c.AIMaxTokens = 100
	}
}

// Validate checks the configuration for values that cannot be used.
func (c *Config) Validate() error {
	if c.StatusPort < 0 || c.StatusPort > 65535 {
		return fmt.Errorf("config: invalid status-port %d", c.StatusPort)
	}
	if c.SwitchRevertSeconds < -1 {
		return fmt.Errorf("config: invalid switch-revert-seconds %d", c.SwitchRevertSeconds)
	}
	return nil
}

// Copyright 2026 The replyguard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package guard implements the reply-inspection pipeline: error
// detection, AI-generated explanations, admin notification and the
// keyword-triggered provider switch with its timed revert.
package guard

import (
	"errors"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/replyguard/internal/platform"
)

var errConditionNotBoolean = errors.New("condition did not return boolean")

// DefaultErrorMarkers is the built-in list of substrings that mark a
// reply as error-shaped. Matching is case-sensitive.
var DefaultErrorMarkers = []string{
	"请求失败",
	"错误类型",
	"错误信息",
	"调用失败",
	"处理失败",
	"描述失败",
	"获取模型列表失败",
}

// Detector inspects outgoing reply text for error markers. An optional
// expr-lang condition widens the match beyond the marker list.
type Detector struct {
	markers   []string
	condition string

	mu       sync.Mutex
	programs map[string]*vm.Program
}

// NewDetector builds a detector. An empty marker list falls back to
// DefaultErrorMarkers; condition may be empty.
func NewDetector(markers []string, condition string) *Detector {
	if len(markers) == 0 {
		markers = DefaultErrorMarkers
	}
	return &Detector{
		markers:   markers,
		condition: condition,
		programs:  make(map[string]*vm.Program),
	}
}

// Markers returns the active marker list.
func (d *Detector) Markers() []string { return d.markers }

// Match reports whether text contains any error marker. Substring
// match, case-sensitive, logical OR across markers. No side effects.
func (d *Detector) Match(text string) bool {
	if text == "" {
		return false
	}
	for _, marker := range d.markers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// MatchEvent runs Match over the event's pending reply text and, when a
// condition is configured, additionally evaluates it against the event
// context. Either matching makes the reply error-shaped.
func (d *Detector) MatchEvent(ev *platform.Event) bool {
	if ev == nil || ev.Result() == nil {
		return false
	}
	text := ev.Result().PlainText()
	if d.Match(text) {
		return true
	}
	if d.condition == "" {
		return false
	}

	matched, err := d.evaluateCondition(d.condition, map[string]interface{}{
		"Text":     text,
		"Platform": ev.Platform,
		"Sender":   ev.SenderID,
		"Group":    ev.GroupID,
	})
	if err != nil {
		log.Warnf("Failed to evaluate error condition '%s': %v", d.condition, err)
		return false
	}
	return matched
}

func (d *Detector) evaluateCondition(condition string, env map[string]interface{}) (bool, error) {
	d.mu.Lock()
	program, exists := d.programs[condition]
	if !exists {
		var err error
		program, err = expr.Compile(condition)
		if err != nil {
			d.mu.Unlock()
			return false, err
		}
		d.programs[condition] = program
	}
	d.mu.Unlock()

	output, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	result, ok := output.(bool)
	if !ok {
		return false, errConditionNotBoolean
	}
	return result, nil
}

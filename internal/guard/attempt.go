// Copyright 2026 The replyguard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package guard

import (
	log "github.com/sirupsen/logrus"
)

// attempt runs one outbound dependency call best-effort: errors and
// panics are logged and reported as false, never propagated. Every
// external call in the pipeline goes through this wrapper so failure
// handling stays in one place.
func attempt(op string, fn func() error) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("%s panicked: %v", op, rec)
			ok = false
		}
	}()
	if err := fn(); err != nil {
		log.Errorf("%s failed: %v", op, err)
		return false
	}
	return true
}

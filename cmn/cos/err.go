// Package cos provides the simulator's low-level error taxonomy, ID
// generation, and small file-I/O helpers shared by every package.
// Adapted from the teacher's cmn/cos: ErrNotFound/Errs/Exitf became
// ErrConfig/ErrProtocol/Errs, dropping the syscall- and url.Error-
// specific helpers (no sockets, no files beyond the config/result
// JSON).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

type (
	// ErrConfig is a config-kind error: bad input JSON, or a schema
	// violation caught by sim.Input.Validate.
	ErrConfig struct {
		what string
	}

	// ErrProtocol is a protocol-invariant-kind error: an invalid flit
	// at a given state, an invalid link-state transition, or a
	// misdirected reconfiguration message. Fatal to the run.
	ErrProtocol struct {
		what string
	}

	// Errs accumulates transient-mismatch-kind errors (ACK/flit
	// misdirection) up to a small cap, deduplicating by message, for
	// diagnostics only - never a hard failure.
	Errs struct {
		mu   sync.Mutex
		errs []error
		cnt  int64
	}
)

func NewErrConfig(format string, a ...any) *ErrConfig {
	return &ErrConfig{fmt.Sprintf(format, a...)}
}

func (e *ErrConfig) Error() string { return "config: " + e.what }

// NewErrProtocol wraps the message with a stack trace via pkg/errors
// so a fatal run failure carries call-site context.
func NewErrProtocol(format string, a ...any) error {
	return errors.WithStack(&ErrProtocol{fmt.Sprintf(format, a...)})
}

func (e *ErrProtocol) Error() string { return "protocol: " + e.what }

func IsErrProtocol(err error) bool {
	var e *ErrProtocol
	return errors.As(err, &e)
}

const maxErrs = 8

// add Unwrap() if need be
func (e *Errs) Add(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			return
		}
	}
	e.cnt++
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
	}
}

func (e *Errs) Cnt() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cnt
}

func (e *Errs) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cnt == 0 {
		return ""
	}
	s := fmt.Sprintf("%d transient mismatch(es)", e.cnt)
	if len(e.errs) > 0 {
		s += ": " + errors.Join(e.errs...).Error()
	}
	return s
}

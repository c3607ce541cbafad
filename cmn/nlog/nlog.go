// Package nlog is the simulator's leveled logger: stderr-only, no log
// files, no rotation. The teacher's cmn/nlog buffers lines into pooled
// fixed-size pages and rotates log files by size because aistore nodes
// run for days unattended; a simulation run is a single short-lived CLI
// invocation with nothing to persist beyond stdout, so that machinery
// is dropped and only the leveled-write, timestamp, and
// verbosity-gating shape is kept.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Neccolini/recsimu/cmn/mono"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
	sevTrace
)

var sevChar = [...]byte{sevInfo: 'I', sevWarn: 'W', sevErr: 'E', sevTrace: 'T'}

var (
	mu      sync.Mutex
	verbose bool
)

// SetVerbose toggles per-cycle scheduler tracing (Traceln), wired to
// the CLI's --verbose flag.
func SetVerbose(v bool) { verbose = v }

func Verbose() bool { return verbose }

func Infof(format string, args ...any)    { write(sevInfo, format, args...) }
func Warningf(format string, args ...any) { write(sevWarn, format, args...) }
func Errorf(format string, args ...any)   { write(sevErr, format, args...) }
func Errorln(args ...any)                 { write(sevErr, "", args...) }

// Traceln is emitted only when SetVerbose(true); it carries the
// scheduler's per-cycle phase narration for the CLI's --verbose flag.
func Traceln(args ...any) {
	if verbose {
		write(sevTrace, "", args...)
	}
}

func write(sev severity, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	now := time.Now().Format("15:04:05.000000")
	elapsed := mono.Since(0)
	fmt.Fprintf(os.Stderr, "%c %s [+%s] ", sevChar[sev], now, elapsed)
	if format == "" {
		fmt.Fprintln(os.Stderr, args...)
	} else {
		fmt.Fprintf(os.Stderr, format, args...)
		if n := len(format); n == 0 || format[n-1] != '\n' {
			fmt.Fprintln(os.Stderr)
		}
	}
}

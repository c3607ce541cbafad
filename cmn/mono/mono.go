// Package mono provides the monotonic clock nlog uses to stamp each
// log line with the time elapsed since process start.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

var start = time.Now()

// NanoTime returns nanoseconds elapsed since process start. Unlike
// time.Now().UnixNano() it never goes backwards across a clock step,
// which is all nlog's elapsed-time stamp needs.
func NanoTime() int64 { return time.Since(start).Nanoseconds() }

func Since(ns int64) time.Duration { return time.Duration(NanoTime() - ns) }

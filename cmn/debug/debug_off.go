//go:build !debug

// Package debug gates the simulator's invariant checks (in the link
// state machine, network layer, and routing cores) behind a build tag
// so production runs skip them and `-tags debug` test/bench runs pay
// for them.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package debug

func ON() bool { return false }

func Assert(_ bool, _ ...any)            {}
func Assertf(_ bool, _ string, _ ...any) {}
func AssertNoErr(_ error)                {}
func AssertFunc(_ func() bool, _ ...any) {}

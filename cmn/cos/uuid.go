// Package cos - ID generation. Adapted from the teacher's
// cmn/cos/uuid.go GenTie()/xxhash tie-breaker pattern: the teacher
// mixes a monotonic counter through its uuidABC alphabet to break
// shortid collisions when minting bucket/daemon UUIDs; NewVID instead
// mixes a fresh crypto-random draw through the same xxhash algorithm
// to hand out the random router vids the MultiTree/Dynamic routing
// cores need at construction time, and RunID reuses the teacher's
// shortid generator to tag a sim.Run invocation.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"crypto/rand"

	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"
)

// alphabet for RunID/GenTie, mirroring the teacher's uuidABC: longer
// than 0x3f entries so GenTie's bit-masked indexing never overruns.
const tieABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var rtie uint32

// NewVID mixes a fresh crypto-random draw through xxhash to produce a
// vid uniformly distributed over [lo, hi) for a router node, drawn
// from [channel_num+1, 2^32-1) so it never collides with a reserved
// coordinator vid. xxhash gives a well-distributed spread over that
// range from a single crypto/rand draw, rather than pulling in a
// second RNG dependency.
func NewVID(lo, hi uint32) uint32 {
	var seed [8]byte
	_, _ = rand.Read(seed[:])
	digest := xxhash.Checksum64(seed[:])
	span := uint64(hi) - uint64(lo)
	return lo + uint32(digest%span)
}

var sid *shortid.Shortid

// InitRunIDs seeds the run-id generator once per process (or once per
// test, for isolation).
func InitRunIDs(seed uint64) {
	sid = shortid.MustNew(1, tieABC, seed)
}

// RunID tags a sim.Run invocation for log correlation in --verbose
// tracing and CollisionInfo diagnostics.
func RunID() string {
	if sid == nil {
		var b [8]byte
		_, _ = rand.Read(b[:])
		seed := uint64(0)
		for _, c := range b {
			seed = seed<<8 | uint64(c)
		}
		InitRunIDs(seed)
	}
	id, err := sid.Generate()
	if err != nil {
		return GenTie()
	}
	return id
}

// GenTie is a fast 3-character tie-breaker, used when RunID's
// underlying generator errors out (teacher pattern).
func GenTie() string {
	rtie++
	tie := rtie
	b0 := tieABC[tie&0x3f]
	b1 := tieABC[-tie&0x3f]
	b2 := tieABC[(tie>>2)&0x3f]
	return string([]byte{b0, b1, b2})
}

package randutil

import (
	"crypto/rand"
	"encoding/binary"
	randv2 "math/rand/v2"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a *rand.Rand seeded deterministically from the provided
// int64. The helper centralises how we derive the two 64-bit seeds
// required by rand/v2 so all call sites get reproducible sequences.
func New(seed int64) *randv2.Rand {
	u := uint64(seed)
	return randv2.New(randv2.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// NewSystem returns a *rand.Rand seeded from the system entropy
// source, used for production deck shuffles.
func NewSystem() *randv2.Rand {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("randutil: system entropy unavailable: " + err.Error())
	}
	return New(int64(binary.LittleEndian.Uint64(buf[:])))
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

package conn

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// PartitionedRNG provides isolated deterministic RNG streams per subsystem,
// so random connection rules reproduce exactly for a fixed master seed
// regardless of which thread or rank drives them.
type PartitionedRNG struct {
	masterSeed int64
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a partitioned RNG with the given master seed.
func NewPartitionedRNG(masterSeed int64) *PartitionedRNG {
	return &PartitionedRNG{
		masterSeed: masterSeed,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the stream for a subsystem name. Streams are created
// lazily; repeated calls with the same name return the same instance.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, exists := p.subsystems[name]; exists {
		return rng
	}
	rng := rand.New(rand.NewSource(p.deriveSeed(name)))
	p.subsystems[name] = rng
	return rng
}

// ForThread returns the stream owned by one worker thread.
func (p *PartitionedRNG) ForThread(tid ThreadID) *rand.Rand {
	return p.ForSubsystem(fmt.Sprintf("thread_%d", tid))
}

// ForRule returns the stream for one connection-rule invocation. Every rank
// draws from the same stream, so a distributed build realizes one consistent
// random graph.
func (p *PartitionedRNG) ForRule(rule string, invocation int) *rand.Rand {
	return p.ForSubsystem(fmt.Sprintf("rule_%s_%d", rule, invocation))
}

// deriveSeed mixes the master seed with the subsystem name via FNV-1a.
func (p *PartitionedRNG) deriveSeed(name string) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%s", p.masterSeed, name)
	return int64(h.Sum64())
}

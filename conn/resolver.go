package conn

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Resolver drives the round-based pull loop of the resolution protocol over
// a set of managers, one per rank, standing in for the outer scheduler plus
// transport. Each round, every (rank, thread) offers pending entries; a
// receiving rank accepts at most bufferSize entries per round, and overflow
// offers are rejected back without losing order. Rounds repeat until every
// source table reports exhaustion.
type Resolver struct {
	managers   []*ConnectionManager
	bufferSize int
}

// NewResolver creates a resolver over one manager per rank. bufferSize is
// the per-receiving-rank round capacity; zero means unbounded rounds.
func NewResolver(managers []*ConnectionManager, bufferSize int) *Resolver {
	return &Resolver{managers: managers, bufferSize: bufferSize}
}

// Resolve runs the protocol to completion: prepare target tables, exchange
// rounds until all ranks and threads are exhausted, then discard the staging
// tables. A round that moves nothing while entries remain is a protocol bug.
func (r *Resolver) Resolve() error {
	numRanks := Rank(len(r.managers))
	for _, m := range r.managers {
		for tid := 0; tid < m.NumThreads(); tid++ {
			m.PrepareTargetTable(ThreadID(tid))
		}
	}

	round := 0
	for {
		if r.allCleared() {
			break
		}
		round++
		transferred := 0
		buffers := make(map[Rank][]TargetData, numRanks)
		for _, m := range r.managers {
			for tid := 0; tid < m.NumThreads(); tid++ {
				t := ThreadID(tid)
				m.SaveSourceTableEntryPoint(t)
				for {
					td, destRank, ok := m.NextTargetData(t, 0, numRanks)
					if !ok {
						break
					}
					if r.bufferSize > 0 && len(buffers[destRank]) >= r.bufferSize {
						// Receiver full this round; undo the pull and let the
						// next round resume from the same position.
						m.RejectLastTargetData(t)
						break
					}
					buffers[destRank] = append(buffers[destRank], td)
					transferred++
				}
			}
		}
		if transferred == 0 {
			return fmt.Errorf("resolution round %d made no progress with entries pending", round)
		}
		for destRank, batch := range buffers {
			dest := r.managers[destRank]
			for _, td := range batch {
				dest.AddTarget(td)
			}
		}
		logrus.Debugf("resolution round %d: %d target data transferred", round, transferred)
	}

	for _, m := range r.managers {
		m.DiscardSourceTable()
	}
	logrus.Infof("resolution complete after %d rounds across %d ranks", round, numRanks)
	return nil
}

func (r *Resolver) allCleared() bool {
	for _, m := range r.managers {
		if !m.IsSourceTableCleared() {
			return false
		}
	}
	return true
}

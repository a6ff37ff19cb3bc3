package conn

import (
	"fmt"
	"math/rand"
	"sort"
)

// ConnSpec selects and parameterizes a connection rule.
type ConnSpec struct {
	Rule           string   `yaml:"rule"`
	Indegree       int      `yaml:"indegree,omitempty"`
	Outdegree      int      `yaml:"outdegree,omitempty"`
	P              float64  `yaml:"p,omitempty"`
	AllowAutapses  *bool    `yaml:"allow_autapses,omitempty"`
	AllowMultapses *bool    `yaml:"allow_multapses,omitempty"`
}

// SynSpec selects the synapse model and per-call overrides. Nil Weight/Delay
// mean "use the model default" — the NaN sentinel internally.
type SynSpec struct {
	Model    string   `yaml:"model,omitempty"`
	Weight   *float64 `yaml:"weight,omitempty"`
	Delay    *float64 `yaml:"delay,omitempty"` // ms
	Label    int64    `yaml:"label,omitempty"`
	Receptor int      `yaml:"receptor,omitempty"`
}

// Rule names recognized by the registry.
const (
	RuleOneToOne          = "one_to_one"
	RuleAllToAll          = "all_to_all"
	RuleFixedIndegree     = "fixed_indegree"
	RuleFixedOutdegree    = "fixed_outdegree"
	RulePairwiseBernoulli = "pairwise_bernoulli"
)

// ConnBuilder is a transient strategy object, one per Connect invocation,
// that iterates its rule over the source/target sets and emits individual
// link-creation calls.
type ConnBuilder interface {
	Connect() error
}

type builderFactory func(cm *ConnectionManager, sources, targets []GlobalID, cs ConnSpec, ss SynSpec) (ConnBuilder, error)

// ruleFactories is the connection-rule registry.
var ruleFactories = map[string]builderFactory{
	RuleOneToOne:          newOneToOne,
	RuleAllToAll:          newAllToAll,
	RuleFixedIndegree:     newFixedIndegree,
	RuleFixedOutdegree:    newFixedOutdegree,
	RulePairwiseBernoulli: newPairwiseBernoulli,
}

// RegisteredRules returns the registry contents in sorted order.
func RegisteredRules() []string {
	names := make([]string, 0, len(ruleFactories))
	for name := range ruleFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// connBuilder carries the state shared by every rule.
type connBuilder struct {
	cm       *ConnectionManager
	sources  []GlobalID
	targets  []GlobalID
	synID    SynapseTypeID
	weight   float64 // NaN = model default
	delayMS  float64 // NaN = model default
	label    int64
	receptor int
	rng      *rand.Rand

	allowAutapses  bool
	allowMultapses bool
}

func newConnBuilder(cm *ConnectionManager, sources, targets []GlobalID, cs ConnSpec, ss SynSpec) (connBuilder, error) {
	synID, err := cm.models.IDByName(ss.Model)
	if err != nil {
		return connBuilder{}, err
	}
	b := connBuilder{
		cm:             cm,
		sources:        sources,
		targets:        targets,
		synID:          synID,
		weight:         UnsetWeight(),
		delayMS:        UnsetDelayMS(),
		label:          ss.Label,
		receptor:       ss.Receptor,
		rng:            cm.rng.ForRule(cs.Rule, cm.ruleInvocations),
		allowAutapses:  true,
		allowMultapses: true,
	}
	if ss.Weight != nil {
		b.weight = *ss.Weight
	}
	if ss.Delay != nil {
		b.delayMS = *ss.Delay
	}
	if cs.AllowAutapses != nil {
		b.allowAutapses = *cs.AllowAutapses
	}
	if cs.AllowMultapses != nil {
		b.allowMultapses = *cs.AllowMultapses
	}
	return b, nil
}

// pair realizes one source->target link if the target is hosted on this rank.
// Non-local targets are someone else's to realize; every rank drives the same
// rule iteration so the random sequences stay aligned.
func (b *connBuilder) pair(sgid, tgid GlobalID) error {
	if b.cm.lookup.HostRank(tgid) != b.cm.rank {
		return nil
	}
	target := b.cm.lookup.Node(tgid)
	tid := b.cm.lookup.HostThread(tgid)
	return b.cm.connectPair(sgid, target, tid, b.synID, b.delayMS, b.weight, b.label, b.receptor)
}

// oneToOne connects sources[i] -> targets[i].
type oneToOne struct{ connBuilder }

func newOneToOne(cm *ConnectionManager, sources, targets []GlobalID, cs ConnSpec, ss SynSpec) (ConnBuilder, error) {
	if len(sources) != len(targets) {
		return nil, fmt.Errorf("one_to_one: %d sources vs %d targets: %w", len(sources), len(targets), ErrBadSpec)
	}
	b, err := newConnBuilder(cm, sources, targets, cs, ss)
	if err != nil {
		return nil, err
	}
	return &oneToOne{b}, nil
}

func (b *oneToOne) Connect() error {
	for i := range b.sources {
		if err := b.pair(b.sources[i], b.targets[i]); err != nil {
			return err
		}
	}
	return nil
}

// allToAll connects every source to every target.
type allToAll struct{ connBuilder }

func newAllToAll(cm *ConnectionManager, sources, targets []GlobalID, cs ConnSpec, ss SynSpec) (ConnBuilder, error) {
	b, err := newConnBuilder(cm, sources, targets, cs, ss)
	if err != nil {
		return nil, err
	}
	return &allToAll{b}, nil
}

func (b *allToAll) Connect() error {
	for _, tgid := range b.targets {
		for _, sgid := range b.sources {
			if !b.allowAutapses && sgid == tgid {
				continue
			}
			if err := b.pair(sgid, tgid); err != nil {
				return err
			}
		}
	}
	return nil
}

// fixedIndegree draws Indegree sources per target.
type fixedIndegree struct {
	connBuilder
	indegree int
}

func newFixedIndegree(cm *ConnectionManager, sources, targets []GlobalID, cs ConnSpec, ss SynSpec) (ConnBuilder, error) {
	if cs.Indegree < 1 {
		return nil, fmt.Errorf("fixed_indegree: indegree must be positive, got %d: %w", cs.Indegree, ErrBadSpec)
	}
	b, err := newConnBuilder(cm, sources, targets, cs, ss)
	if err != nil {
		return nil, err
	}
	if !b.allowMultapses && cs.Indegree > len(sources) {
		return nil, fmt.Errorf("fixed_indegree: indegree %d exceeds %d sources without multapses: %w", cs.Indegree, len(sources), ErrBadSpec)
	}
	return &fixedIndegree{connBuilder: b, indegree: cs.Indegree}, nil
}

func (b *fixedIndegree) Connect() error {
	for _, tgid := range b.targets {
		picks, err := samplePool(b.rng, b.sources, b.indegree, b.allowMultapses, b.allowAutapses, tgid)
		if err != nil {
			return fmt.Errorf("fixed_indegree: %w", err)
		}
		for _, sgid := range picks {
			if err := b.pair(sgid, tgid); err != nil {
				return err
			}
		}
	}
	return nil
}

// fixedOutdegree draws Outdegree targets per source.
type fixedOutdegree struct {
	connBuilder
	outdegree int
}

func newFixedOutdegree(cm *ConnectionManager, sources, targets []GlobalID, cs ConnSpec, ss SynSpec) (ConnBuilder, error) {
	if cs.Outdegree < 1 {
		return nil, fmt.Errorf("fixed_outdegree: outdegree must be positive, got %d: %w", cs.Outdegree, ErrBadSpec)
	}
	b, err := newConnBuilder(cm, sources, targets, cs, ss)
	if err != nil {
		return nil, err
	}
	if !b.allowMultapses && cs.Outdegree > len(targets) {
		return nil, fmt.Errorf("fixed_outdegree: outdegree %d exceeds %d targets without multapses: %w", cs.Outdegree, len(targets), ErrBadSpec)
	}
	return &fixedOutdegree{connBuilder: b, outdegree: cs.Outdegree}, nil
}

func (b *fixedOutdegree) Connect() error {
	for _, sgid := range b.sources {
		picks, err := samplePool(b.rng, b.targets, b.outdegree, b.allowMultapses, b.allowAutapses, sgid)
		if err != nil {
			return fmt.Errorf("fixed_outdegree: %w", err)
		}
		for _, tgid := range picks {
			if err := b.pair(sgid, tgid); err != nil {
				return err
			}
		}
	}
	return nil
}

// pairwiseBernoulli connects each (source, target) pair with probability p.
type pairwiseBernoulli struct {
	connBuilder
	p float64
}

func newPairwiseBernoulli(cm *ConnectionManager, sources, targets []GlobalID, cs ConnSpec, ss SynSpec) (ConnBuilder, error) {
	if cs.P < 0 || cs.P > 1 {
		return nil, fmt.Errorf("pairwise_bernoulli: p must be in [0,1], got %g: %w", cs.P, ErrBadSpec)
	}
	b, err := newConnBuilder(cm, sources, targets, cs, ss)
	if err != nil {
		return nil, err
	}
	return &pairwiseBernoulli{connBuilder: b, p: cs.P}, nil
}

func (b *pairwiseBernoulli) Connect() error {
	for _, tgid := range b.targets {
		for _, sgid := range b.sources {
			if b.rng.Float64() >= b.p {
				continue
			}
			if !b.allowAutapses && sgid == tgid {
				continue
			}
			if err := b.pair(sgid, tgid); err != nil {
				return err
			}
		}
	}
	return nil
}

// samplePool draws k elements from pool. With multapses allowed the draws are
// independent; without, it is a partial Fisher-Yates without replacement.
// When autapses are disallowed, self is excluded before drawing; a pool that
// ends up empty, or too small to satisfy k without replacement, is a spec
// error rather than a silent shortfall.
// gonum's sampleuv covers the without-replacement case but takes its own
// rand.Source type; sampling stays on the PartitionedRNG stream instead so
// rule determinism has a single owner.
func samplePool(rng *rand.Rand, pool []GlobalID, k int, multapses, autapses bool, self GlobalID) ([]GlobalID, error) {
	eligible := pool
	if !autapses {
		eligible = make([]GlobalID, 0, len(pool))
		for _, gid := range pool {
			if gid != self {
				eligible = append(eligible, gid)
			}
		}
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("node %d has no eligible partners with autapses disallowed: %w", self, ErrBadSpec)
	}
	if !multapses && k > len(eligible) {
		return nil, fmt.Errorf("degree %d exceeds %d eligible partners of node %d without multapses: %w", k, len(eligible), self, ErrBadSpec)
	}
	picks := make([]GlobalID, 0, k)
	if multapses {
		for i := 0; i < k; i++ {
			picks = append(picks, eligible[rng.Intn(len(eligible))])
		}
		return picks, nil
	}
	idx := make([]int, len(eligible))
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		picks = append(picks, eligible[idx[i]])
	}
	return picks, nil
}

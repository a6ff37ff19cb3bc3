package conn

import "fmt"

// ReceptorTag is the routing tag cached in a stored connection after the
// one-time compatibility check at connection-build time. The send path never
// re-dispatches the check.
type ReceptorTag int

// Node is the capability interface every simulated node must support.
// Concrete neuron/device models live outside this subsystem; the tables here
// only need identity, proxy-ness, the compatibility check, delivery, and the
// generic parameter surface.
type Node interface {
	ID() GlobalID
	// HasProxies reports whether the node is replicated across ranks.
	// Devices (recorders, stimulators) have no remote proxy and are wired
	// through the direct device table instead of the resolution protocol.
	HasProxies() bool
	// HandlesTest checks that the node accepts events of the given kind on
	// the given receptor, returning the tag to cache in the connection.
	// Fails with ErrUnknownReceptor or ErrIncompatibleReceptor.
	HandlesTest(kind EventKind, receptor int) (ReceptorTag, error)
	// Deliver hands a routed event to the node. Called only on the thread
	// that owns the node.
	Deliver(ev Event)
	GetParam(name string) (float64, bool)
	SetParam(name string, value float64) error
}

// NodeLookup is the view of the external node registry this subsystem needs:
// which rank/thread hosts a GlobalID, its thread-local index, and the node
// object itself.
type NodeLookup interface {
	HostRank(gid GlobalID) Rank
	HostThread(gid GlobalID) ThreadID
	LocalID(gid GlobalID) int
	NumLocal(r Rank, t ThreadID) int
	Node(gid GlobalID) Node
}

// Neuron is a plain proxied node accepting a fixed set of event kinds per
// receptor. It doubles as the test stand-in for real neuron models.
type Neuron struct {
	gid       GlobalID
	receptors map[int][]EventKind
	params    map[string]float64
	Delivered []Event
}

// NewNeuron creates a neuron accepting spikes and currents on receptor 0.
func NewNeuron(gid GlobalID) *Neuron {
	return &Neuron{
		gid: gid,
		receptors: map[int][]EventKind{
			0: {SpikeEventKind, CurrentEventKind, RateEventKind},
		},
		params: make(map[string]float64),
	}
}

// SetReceptor declares the event kinds accepted on a receptor index.
func (n *Neuron) SetReceptor(receptor int, kinds ...EventKind) {
	if n.receptors == nil {
		n.receptors = make(map[int][]EventKind)
	}
	n.receptors[receptor] = kinds
}

func (n *Neuron) ID() GlobalID     { return n.gid }
func (n *Neuron) HasProxies() bool { return true }

func (n *Neuron) HandlesTest(kind EventKind, receptor int) (ReceptorTag, error) {
	kinds, ok := n.receptors[receptor]
	if !ok {
		return 0, fmt.Errorf("node %d receptor %d: %w", n.gid, receptor, ErrUnknownReceptor)
	}
	for _, k := range kinds {
		if k == kind {
			return ReceptorTag(receptor), nil
		}
	}
	return 0, fmt.Errorf("node %d receptor %d rejects %s: %w", n.gid, receptor, kind, ErrIncompatibleReceptor)
}

func (n *Neuron) Deliver(ev Event) { n.Delivered = append(n.Delivered, ev) }

func (n *Neuron) GetParam(name string) (float64, bool) {
	v, ok := n.params[name]
	return v, ok
}

func (n *Neuron) SetParam(name string, value float64) error {
	n.params[name] = value
	return nil
}

// DeviceNode is a recorder/stimulator: thread-local, no remote proxy.
type DeviceNode struct {
	Neuron
}

// NewDevice creates a device accepting every event kind on receptor 0.
func NewDevice(gid GlobalID) *DeviceNode {
	d := &DeviceNode{Neuron: *NewNeuron(gid)}
	return d
}

func (d *DeviceNode) HasProxies() bool { return false }

// NodeGrid is an in-process node registry distributing neuron GlobalIDs
// round-robin across ranks, then across threads within a rank. It stands in
// for the network-wide registry the simulator kernel provides.
type NodeGrid struct {
	numRanks   int
	numThreads int
	numNeurons int
	nodes      map[GlobalID]Node
	placement  map[GlobalID]gridSlot // devices and overrides
	perThread  map[gridKey]int       // local node count per (rank, thread)
	nextGID    GlobalID
}

type gridSlot struct {
	rank   Rank
	thread ThreadID
	lid    int
}

type gridKey struct {
	rank   Rank
	thread ThreadID
}

// NewNodeGrid creates numNeurons neurons with GlobalIDs 1..numNeurons spread
// over the given ranks and threads.
func NewNodeGrid(numRanks, numThreads, numNeurons int) *NodeGrid {
	if numRanks < 1 || numThreads < 1 {
		panic("NewNodeGrid: need at least one rank and one thread")
	}
	g := &NodeGrid{
		numRanks:   numRanks,
		numThreads: numThreads,
		numNeurons: numNeurons,
		nodes:      make(map[GlobalID]Node, numNeurons),
		placement:  make(map[GlobalID]gridSlot),
		perThread:  make(map[gridKey]int),
		nextGID:    GlobalID(numNeurons) + 1,
	}
	for i := 0; i < numNeurons; i++ {
		gid := GlobalID(i + 1)
		g.nodes[gid] = NewNeuron(gid)
		slot := g.neuronSlot(gid)
		g.perThread[gridKey{slot.rank, slot.thread}]++
	}
	return g
}

func (g *NodeGrid) neuronSlot(gid GlobalID) gridSlot {
	i := int(gid) - 1
	rank := Rank(i % g.numRanks)
	perRank := i / g.numRanks
	thread := ThreadID(perRank % g.numThreads)
	return gridSlot{rank: rank, thread: thread, lid: perRank / g.numThreads}
}

// AddDevice registers a device on the given rank and thread and returns it.
// Devices get GlobalIDs after the neuron range.
func (g *NodeGrid) AddDevice(rank Rank, thread ThreadID) *DeviceNode {
	gid := g.nextGID
	g.nextGID++
	dev := NewDevice(gid)
	key := gridKey{rank, thread}
	g.placement[gid] = gridSlot{rank: rank, thread: thread, lid: g.perThread[key]}
	g.perThread[key]++
	g.nodes[gid] = dev
	return dev
}

// ReplaceNode swaps the node object for a GlobalID, keeping its placement.
// Used to install nodes with non-default receptor declarations.
func (g *NodeGrid) ReplaceNode(n Node) {
	if _, ok := g.nodes[n.ID()]; !ok {
		panic(fmt.Sprintf("NodeGrid.ReplaceNode: unknown gid %d", n.ID()))
	}
	g.nodes[n.ID()] = n
}

func (g *NodeGrid) slot(gid GlobalID) gridSlot {
	if s, ok := g.placement[gid]; ok {
		return s
	}
	if int(gid) < 1 || int(gid) > g.numNeurons {
		panic(fmt.Sprintf("NodeGrid: unknown gid %d", gid))
	}
	return g.neuronSlot(gid)
}

func (g *NodeGrid) HostRank(gid GlobalID) Rank { return g.slot(gid).rank }
func (g *NodeGrid) HostThread(gid GlobalID) ThreadID { return g.slot(gid).thread }
func (g *NodeGrid) LocalID(gid GlobalID) int         { return g.slot(gid).lid }

func (g *NodeGrid) NumLocal(r Rank, t ThreadID) int {
	return g.perThread[gridKey{r, t}]
}

func (g *NodeGrid) Node(gid GlobalID) Node { return g.nodes[gid] }

// NeuronIDs returns all neuron GlobalIDs in ascending order.
func (g *NodeGrid) NeuronIDs() []GlobalID {
	ids := make([]GlobalID, g.numNeurons)
	for i := range ids {
		ids[i] = GlobalID(i + 1)
	}
	return ids
}

package conn

import "errors"

// Error kinds matched by callers with errors.Is. Configuration errors abort
// the enclosing bulk Connect before any connection is committed; receptor
// errors abort a single pair attempt and leave earlier connections in place.
var (
	ErrUnknownRule          = errors.New("unknown connection rule")
	ErrUnknownSynapseModel  = errors.New("unknown synapse model")
	ErrEmptyNodeSet         = errors.New("empty node set")
	ErrIncompatibleReceptor = errors.New("incompatible receptor type")
	ErrUnknownReceptor      = errors.New("unknown receptor type")
	ErrBadDelay             = errors.New("delay out of range")
	ErrBadSpec              = errors.New("malformed spec")
)

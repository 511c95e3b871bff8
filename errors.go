package kroute

import "golang.org/x/xerrors"

var (
	// ErrLengthMismatch is returned when an id does not have the length the
	// routing table was configured with.
	ErrLengthMismatch = xerrors.New("kroute: id length mismatch")

	// ErrBitIndexOutOfRange is returned by NodeId.Bit for an index outside of
	// [0, BitLen).
	ErrBitIndexOutOfRange = xerrors.New("kroute: bit index out of range")

	// ErrSelfReferential is returned when the local node id is used where a
	// remote id is expected.
	ErrSelfReferential = xerrors.New("kroute: id refers to the local node")

	// ErrEntropyUnavailable is returned when the system's secure random number
	// generator fails.
	ErrEntropyUnavailable = xerrors.New("kroute: entropy unavailable")

	// ErrNoProber is returned by NewRoutingTable when no Prober was configured.
	ErrNoProber = xerrors.New("kroute: no prober configured")
)

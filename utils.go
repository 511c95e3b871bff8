package kroute

import (
	"crypto/rand"
	"net/netip"

	"golang.org/x/xerrors"
)

// CompareAddrPorts compares two netip.AddrPorts.
// It will return true if the two AddrPorts are equal, false otherwise.
// IPv4-mapped IPv6 addresses are equal to their IPv4 form.
func CompareAddrPorts(a, b netip.AddrPort) bool {
	if a.Addr().Unmap().Compare(b.Addr().Unmap()) == 0 && a.Port() == b.Port() {
		return true
	}

	return false
}

// GenerateRandomBytes returns securely generated random bytes.
// It will return an error wrapping ErrEntropyUnavailable if the system's secure
// random number generator fails to function correctly.
func GenerateRandomBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, xerrors.Errorf("negative byte count %d", n)
	}

	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, xerrors.Errorf("read random bytes: %v: %w", err, ErrEntropyUnavailable)
	}

	return b, nil
}

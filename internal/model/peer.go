package model

import "time"

// PeerRole describes which side of a sync exchange a peer plays.
type PeerRole int

const (
	PeerRoleSymmetric PeerRole = iota
	PeerRolePrimary
	PeerRoleReplica
)

func (r PeerRole) String() string {
	switch r {
	case PeerRolePrimary:
		return "PRIMARY"
	case PeerRoleReplica:
		return "REPLICA"
	default:
		return "PEER"
	}
}

// Peer is a remote instance of the memory engine this node can sync with
// (spec §4.7).
type Peer struct {
	PeerID          string
	Role            PeerRole
	ProtocolVersion int
	LastSeen        time.Time
	Capabilities    []string
}

// SupportsCapability reports whether the peer advertised the given
// capability string during handshake.
func (p Peer) SupportsCapability(cap string) bool {
	for _, c := range p.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

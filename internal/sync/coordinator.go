package sync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/memoryfabric/agentic-memory/internal/clock"
	"github.com/memoryfabric/agentic-memory/internal/errs"
	"github.com/memoryfabric/agentic-memory/internal/model"
	"github.com/memoryfabric/agentic-memory/internal/obs"
	"github.com/memoryfabric/agentic-memory/internal/persistence/store"
)

func parseWireID(s string) (uuid.UUID, error) { return uuid.Parse(s) }

// Transport is the Peer-Sync port (spec §6): the RPC surface a Coordinator
// needs from a remote engine instance. A concrete transport (gRPC, HTTP)
// is out of scope (spec.md §1 excludes network surfaces); this interface
// is what such a transport would implement.
type Transport interface {
	Handshake(ctx context.Context, peerID string, localProtocolVersion int) (model.Peer, error)
	PushMemories(ctx context.Context, peerID string, env Envelope) error
	PullMemories(ctx context.Context, peerID, tenantID, agentID string) (Envelope, error)
	GetSyncStatus(ctx context.Context, peerID string) (Status, error)
}

// Status is the remote's reported sync state.
type Status struct {
	PeerID       string
	LastSyncedAt time.Time
	PendingCount int
}

// LogEntry records one applied or surfaced change from a sync pass.
type LogEntry struct {
	ID       string
	Kind     ChangeKind
	Conflict bool
	Resolved bool
}

// Log is the "sync log" spec §6's sync_with_peer operation returns.
type Log struct {
	PeerID  string
	Entries []LogEntry
}

// Coordinator runs sync passes against a peer for a (tenant, agent) pair.
type Coordinator struct {
	store       store.Store
	transport   Transport
	clock       clock.Clock
	log         obs.Logger
	protocol    int
	conflictGap time.Duration
	encKey      []byte
	strategy    Strategy
}

// New builds a Coordinator. encKey must be 16, 24, or 32 bytes (AES-128/
// 192/256) when non-nil; nil disables encryption for push/pull payloads.
func New(s store.Store, t Transport, clk clock.Clock, log obs.Logger, protocolVersion int, conflictGap time.Duration, encKey []byte, strategy Strategy) *Coordinator {
	return &Coordinator{
		store: s, transport: t, clock: clk, log: log,
		protocol: protocolVersion, conflictGap: conflictGap, encKey: encKey, strategy: strategy,
	}
}

// SyncWithPeer performs one handshake + diff + resolve + apply pass
// against peerID for (tenantID, agentID).
func (c *Coordinator) SyncWithPeer(ctx context.Context, peerID, tenantID, agentID string) (Log, error) {
	const op = "sync.Coordinator.SyncWithPeer"

	peer, err := c.transport.Handshake(ctx, peerID, c.protocol)
	if err != nil {
		return Log{}, err
	}
	if peer.ProtocolVersion != c.protocol {
		return Log{}, errs.InvalidArgumentf(op, "protocol version mismatch: local=%d peer=%d", c.protocol, peer.ProtocolVersion)
	}

	local, err := c.store.List(ctx, tenantID, store.Filters{AgentID: agentID})
	if err != nil {
		return Log{}, err
	}

	env, err := c.transport.PullMemories(ctx, peerID, tenantID, agentID)
	if err != nil {
		return Log{}, err
	}
	remote, err := c.decryptRemote(tenantID, agentID, env)
	if err != nil {
		return Log{}, err
	}

	diff := Compute(local, remote, c.conflictGap)

	result := Log{PeerID: peerID}
	var toPush []*model.Record

	for _, change := range diff.Changes {
		switch change.Kind {
		case Unchanged:
			continue
		case Created:
			if err := c.store.Store(ctx, change.Remote); err != nil {
				return result, err
			}
			result.Entries = append(result.Entries, LogEntry{ID: change.ID.String(), Kind: Created, Resolved: true})
		case Deleted:
			if err := c.store.Delete(ctx, tenantID, change.ID); err != nil {
				return result, err
			}
			result.Entries = append(result.Entries, LogEntry{ID: change.ID.String(), Kind: Deleted, Resolved: true})
		case Modified:
			if !change.Conflict {
				if change.Local.ModifiedAt.After(change.Remote.ModifiedAt) {
					toPush = append(toPush, change.Local)
				} else {
					if _, err := c.store.Update(ctx, tenantID, change.ID, applyRemote(change.Remote)); err != nil {
						return result, err
					}
				}
				result.Entries = append(result.Entries, LogEntry{ID: change.ID.String(), Kind: Modified, Resolved: true})
				continue
			}

			resolution, err := Resolve(change, c.strategy)
			if err != nil {
				return result, err
			}
			entry := LogEntry{ID: change.ID.String(), Kind: Modified, Conflict: true}
			if !resolution.Applied {
				result.Entries = append(result.Entries, entry)
				continue
			}
			if _, err := c.store.Update(ctx, tenantID, change.ID, applyRemote(resolution.Record)); err != nil {
				return result, err
			}
			if resolution.Record.ModifiedAt.After(change.Remote.ModifiedAt) || resolution.Record.Version > change.Remote.Version {
				toPush = append(toPush, resolution.Record)
			}
			entry.Resolved = true
			result.Entries = append(result.Entries, entry)
		}
	}

	if len(toPush) > 0 {
		pushEnv, err := c.encryptLocal(toPush)
		if err != nil {
			return result, err
		}
		if err := c.transport.PushMemories(ctx, peerID, pushEnv); err != nil {
			return result, err
		}
	}

	return result, nil
}

func (c *Coordinator) decryptRemote(tenantID, agentID string, env Envelope) ([]*model.Record, error) {
	if c.encKey == nil {
		return nil, nil
	}
	wire, err := Decrypt(c.encKey, env)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Record, 0, len(wire))
	for _, w := range wire {
		id, err := parseWireID(w.ID)
		if err != nil {
			continue
		}
		out = append(out, &model.Record{
			ID: id, TenantID: tenantID, AgentID: agentID, Layer: model.LayerWorking,
			Content: w.Content, Importance: w.Importance, Tags: w.Tags,
			Metadata: w.Metadata, Version: w.Version, ModifiedAt: w.ModifiedAt,
		})
	}
	return out, nil
}

func (c *Coordinator) encryptLocal(records []*model.Record) (Envelope, error) {
	if c.encKey == nil {
		return Envelope{}, nil
	}
	return Encrypt(c.encKey, records)
}

// applyRemote returns a patch closure that overwrites a record's
// sync-compared fields from src, preserving local-only bookkeeping
// (access_count, last_accessed_at, created_at). store.Store.Update bumps
// Version by 1 on every call, so the patch sets it to src.Version-1 to
// land exactly on src.Version, which diff/resolve already computed.
func applyRemote(src *model.Record) func(*model.Record) {
	return func(r *model.Record) {
		r.Content = src.Content
		r.Importance = src.Importance
		r.Tags = src.Tags
		r.Metadata = src.Metadata
		r.Version = src.Version - 1
		r.ModifiedAt = src.ModifiedAt
	}
}

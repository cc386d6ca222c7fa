package sync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/memoryfabric/agentic-memory/internal/clock"
	"github.com/memoryfabric/agentic-memory/internal/model"
	"github.com/memoryfabric/agentic-memory/internal/obs"
	"github.com/memoryfabric/agentic-memory/internal/persistence/store"
)

type fakeTransport struct {
	protocolVersion int
	pullEnv         Envelope
	pulled          []*model.Record
	pushed          []*model.Record
	encKey          []byte
}

func (f *fakeTransport) Handshake(_ context.Context, peerID string, _ int) (model.Peer, error) {
	return model.Peer{PeerID: peerID, ProtocolVersion: f.protocolVersion}, nil
}

func (f *fakeTransport) PushMemories(_ context.Context, _ string, env Envelope) error {
	wire, err := Decrypt(f.encKey, env)
	if err != nil {
		return err
	}
	for _, w := range wire {
		id, _ := uuid.Parse(w.ID)
		f.pushed = append(f.pushed, &model.Record{ID: id, Content: w.Content, Importance: w.Importance, Tags: w.Tags, Version: w.Version})
	}
	return nil
}

func (f *fakeTransport) PullMemories(_ context.Context, _, _, _ string) (Envelope, error) {
	return Encrypt(f.encKey, f.pulled)
}

func (f *fakeTransport) GetSyncStatus(_ context.Context, peerID string) (Status, error) {
	return Status{PeerID: peerID}, nil
}

func TestSyncWithPeer_RefusesOnProtocolMismatch(t *testing.T) {
	s := store.NewMemory()
	key := make([]byte, 32)
	transport := &fakeTransport{protocolVersion: 2, encKey: key}
	c := New(s, transport, clock.NewFake(time.Now()), obs.NoopLogger{}, 1, ConflictGap, key, LastWriteWins)

	_, err := c.SyncWithPeer(context.Background(), "peer1", "tenant_a", "agent_1")
	require.Error(t, err)
}

func TestSyncWithPeer_PullsRemoteCreated(t *testing.T) {
	s := store.NewMemory()
	key := make([]byte, 32)
	remoteID := uuid.New()
	transport := &fakeTransport{
		protocolVersion: 1, encKey: key,
		pulled: []*model.Record{{ID: remoteID, Content: "from remote", Version: 1}},
	}
	c := New(s, transport, clock.NewFake(time.Now()), obs.NoopLogger{}, 1, ConflictGap, key, LastWriteWins)

	log, err := c.SyncWithPeer(context.Background(), "peer1", "tenant_a", "agent_1")
	require.NoError(t, err)
	require.Len(t, log.Entries, 1)
	require.Equal(t, Created, log.Entries[0].Kind)

	fetched, err := s.FetchByID(context.Background(), "tenant_a", remoteID)
	require.NoError(t, err)
	require.Equal(t, "from remote", fetched.Content)
}

func TestSyncWithPeer_AppliesRemoteNewerAtExactRemoteVersion(t *testing.T) {
	s := store.NewMemory()
	key := make([]byte, 32)
	id := uuid.New()
	base := time.Now()

	// Same modified_at on both sides keeps this a non-conflicting MODIFIED
	// change (gap <= ConflictGap), so the remote side is applied directly
	// rather than going through Resolve's nextVersion arithmetic.
	local := &model.Record{ID: id, TenantID: "tenant_a", AgentID: "agent_1", Content: "local older", Layer: model.LayerWorking, Version: 1, ModifiedAt: base, CreatedAt: base}
	require.NoError(t, s.Store(context.Background(), local))

	transport := &fakeTransport{
		protocolVersion: 1, encKey: key,
		pulled: []*model.Record{{ID: id, Content: "remote newer", Version: 3, ModifiedAt: base}},
	}
	c := New(s, transport, clock.NewFake(base), obs.NoopLogger{}, 1, ConflictGap, key, LastWriteWins)

	_, err := c.SyncWithPeer(context.Background(), "peer1", "tenant_a", "agent_1")
	require.NoError(t, err)

	fetched, err := s.FetchByID(context.Background(), "tenant_a", id)
	require.NoError(t, err)
	require.Equal(t, "remote newer", fetched.Content)
	require.Equal(t, int64(3), fetched.Version)
}

func TestSyncWithPeer_PushesLocalNewerThanRemote(t *testing.T) {
	s := store.NewMemory()
	key := make([]byte, 32)
	id := uuid.New()
	base := time.Now()

	local := &model.Record{ID: id, TenantID: "tenant_a", AgentID: "agent_1", Content: "local newer", Layer: model.LayerWorking, Version: 2, ModifiedAt: base.Add(time.Hour), CreatedAt: base}
	require.NoError(t, s.Store(context.Background(), local))

	transport := &fakeTransport{
		protocolVersion: 1, encKey: key,
		pulled: []*model.Record{{ID: id, Content: "remote older", Version: 1, ModifiedAt: base}},
	}
	c := New(s, transport, clock.NewFake(base), obs.NoopLogger{}, 1, ConflictGap, key, LastWriteWins)

	_, err := c.SyncWithPeer(context.Background(), "peer1", "tenant_a", "agent_1")
	require.NoError(t, err)
	require.Len(t, transport.pushed, 1)
	require.Equal(t, "local newer", transport.pushed[0].Content)
}

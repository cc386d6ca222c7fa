package sync

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"io"
	"time"

	"github.com/memoryfabric/agentic-memory/internal/errs"
	"github.com/memoryfabric/agentic-memory/internal/model"
)

// Envelope is the encrypted wire payload for push_memories/pull_memories
// (spec §8's "encrypted-sync round trip" property; no encryption scheme
// is named in spec §4.7, so one is supplemented — see DESIGN.md).
type Envelope struct {
	Nonce      []byte
	Ciphertext []byte
}

// wireRecord carries the fields diff/merge need plus modified_at (which
// the round-trip property in spec §8 doesn't name but §4.7's diff and
// last-write-wins both depend on); access bookkeeping (access_count,
// last_accessed_at) is local-only and never crosses the wire.
type wireRecord struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Importance float64        `json:"importance"`
	Tags       []string       `json:"tags"`
	Metadata   model.Metadata `json:"metadata"`
	Version    int64          `json:"version"`
	ModifiedAt time.Time      `json:"modified_at"`
}

func toWire(r *model.Record) wireRecord {
	return wireRecord{
		ID: r.ID.String(), Content: r.Content, Importance: r.Importance,
		Tags: r.Tags, Metadata: r.Metadata, Version: r.Version, ModifiedAt: r.ModifiedAt,
	}
}

// Encrypt serializes the sync-relevant fields of records and seals them
// under AES-GCM with a random nonce (AES-128, -192 or -256, chosen by the
// key's length).
func Encrypt(key []byte, records []*model.Record) (Envelope, error) {
	const op = "sync.Encrypt"
	gcm, err := newGCM(key)
	if err != nil {
		return Envelope{}, errs.Wrap(op, errs.Internal, err)
	}

	wire := make([]wireRecord, len(records))
	for i, r := range records {
		wire[i] = toWire(r)
	}
	plaintext, err := json.Marshal(wire)
	if err != nil {
		return Envelope{}, errs.Wrap(op, errs.Internal, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Envelope{}, errs.Wrap(op, errs.Internal, err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	return Envelope{Nonce: nonce, Ciphertext: ciphertext}, nil
}

// Decrypt reverses Encrypt, returning the sync-relevant fields of each
// record in the envelope.
func Decrypt(key []byte, env Envelope) ([]wireRecord, error) {
	const op = "sync.Decrypt"
	gcm, err := newGCM(key)
	if err != nil {
		return nil, errs.Wrap(op, errs.Internal, err)
	}

	plaintext, err := gcm.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, errs.InvalidArgumentf(op, "envelope authentication failed: %w", err)
	}

	var wire []wireRecord
	if err := json.Unmarshal(plaintext, &wire); err != nil {
		return nil, errs.Wrap(op, errs.Internal, err)
	}
	return wire, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

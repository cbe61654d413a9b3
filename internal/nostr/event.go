// Package nostr aggregates federation ratings and announcement events
// from a set of Nostr relays: dial out with gorilla/websocket, subscribe
// to the rating (kind 38000) and announcement (kind 38173) kinds,
// verify each event's schnorr signature, and hand verified events to the
// store.
package nostr

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Kind numbers this aggregator subscribes to.
const (
	KindFederationRating       = 38000
	KindFederationAnnouncement = 38173
)

// Event is a Nostr event as received over a relay's subscription feed.
type Event struct {
	ID        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// serialization implements NIP-01's canonical event serialization: a JSON
// array of [0, pubkey, created_at, kind, tags, content], the exact bytes
// that are sha256-hashed to produce the event id and signed.
func (e Event) serialization() ([]byte, error) {
	arr := []interface{}{0, e.Pubkey, e.CreatedAt, e.Kind, e.Tags, e.Content}
	return json.Marshal(arr)
}

// computedID returns the event id as NIP-01 defines it: the hex-encoded
// sha256 of the canonical serialization.
func (e Event) computedID() (string, error) {
	ser, err := e.serialization()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(ser)
	return hex.EncodeToString(sum[:]), nil
}

// Verify checks that the event's id matches its content and that its
// signature is a valid BIP-340 schnorr signature over that id by the
// claimed pubkey. An event failing either check is never handed to the
// store.
func (e Event) Verify() error {
	wantID, err := e.computedID()
	if err != nil {
		return fmt.Errorf("nostr: serialize event: %w", err)
	}
	if wantID != e.ID {
		return fmt.Errorf("nostr: event id mismatch: got %s want %s", e.ID, wantID)
	}

	pubkeyBytes, err := hex.DecodeString(e.Pubkey)
	if err != nil || len(pubkeyBytes) != 32 {
		return fmt.Errorf("nostr: invalid pubkey %q", e.Pubkey)
	}
	pubkey, err := schnorr.ParsePubKey(pubkeyBytes)
	if err != nil {
		return fmt.Errorf("nostr: parse pubkey: %w", err)
	}

	sigBytes, err := hex.DecodeString(e.Sig)
	if err != nil || len(sigBytes) != 64 {
		return fmt.Errorf("nostr: invalid signature %q", e.Sig)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("nostr: parse signature: %w", err)
	}

	idBytes, err := hex.DecodeString(e.ID)
	if err != nil || len(idBytes) != 32 {
		return fmt.Errorf("nostr: invalid event id %q", e.ID)
	}

	if !sig.Verify(idBytes, pubkey) {
		return fmt.Errorf("nostr: signature verification failed for event %s", e.ID)
	}
	return nil
}

// Tag returns the first value of the named tag, if present.
func (e Event) Tag(name string) (string, bool) {
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == name {
			return t[1], true
		}
	}
	return "", false
}

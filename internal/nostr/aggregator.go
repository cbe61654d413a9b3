package nostr

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/fedimint-observer/observer/internal/store"
	"github.com/fedimint-observer/observer/pkg/models"
)

// Config configures the relay aggregator.
type Config struct {
	RelayURLs       []string
	RefreshInterval time.Duration
	QueueSize       int
}

// Aggregator dials every configured relay, verifies and dedups incoming
// rating/announcement events, and commits them to the store.
type Aggregator struct {
	cfg   Config
	store *store.Store
	events chan Event
}

// New builds an Aggregator.
func New(cfg Config, st *store.Store) *Aggregator {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Minute
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	return &Aggregator{
		cfg:    cfg,
		store:  st,
		events: make(chan Event, cfg.QueueSize),
	}
}

// Run dials every relay and processes events until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) error {
	for _, url := range a.cfg.RelayURLs {
		rc := &relayClient{url: url, events: a.events}
		go rc.run(ctx)
	}

	ticker := time.NewTicker(a.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-a.events:
			a.handle(ctx, ev)
		case <-ticker.C:
			if err := a.store.RefreshMaterialized(ctx, "nostr_vote_aggregates"); err != nil {
				log.Printf("nostr: refresh aggregates: %v", err)
			}
		}
	}
}

func (a *Aggregator) handle(ctx context.Context, ev Event) {
	if err := ev.Verify(); err != nil {
		log.Printf("nostr: rejecting event %s: %v", ev.ID, err)
		return
	}

	seen, err := a.store.NostrEventSeen(ctx, ev.ID)
	if err != nil {
		log.Printf("nostr: check event seen %s: %v", ev.ID, err)
		return
	}
	if seen {
		return
	}

	fedIdHex, ok := ev.Tag("d")
	if !ok {
		log.Printf("nostr: event %s missing federation tag, dropping", ev.ID)
		return
	}
	fedId, err := parseFedId(fedIdHex)
	if err != nil {
		log.Printf("nostr: event %s: %v", ev.ID, err)
		return
	}

	raw, _ := json.Marshal(ev)

	switch ev.Kind {
	case KindFederationRating:
		var content struct {
			Stars   int    `json:"stars"`
			Comment string `json:"comment"`
		}
		if err := json.Unmarshal([]byte(ev.Content), &content); err != nil {
			log.Printf("nostr: event %s: unmarshal rating content: %v", ev.ID, err)
			return
		}
		vote := models.NostrVote{
			EventID:   ev.ID,
			FedId:     fedId,
			Pubkey:    ev.Pubkey,
			Stars:     content.Stars,
			Comment:   content.Comment,
			CreatedAt: time.Unix(ev.CreatedAt, 0).UTC(),
			Raw:       raw,
		}
		if err := a.store.UpsertNostrVote(ctx, vote); err != nil {
			log.Printf("nostr: store vote %s: %v", ev.ID, err)
		}

	case KindFederationAnnouncement:
		// Addressable-event convention: invite code, network, and module
		// list ride in tags (u/n/modules) alongside the d=federation_id
		// tag already used above, not in a JSON content body.
		inviteCode, ok := ev.Tag("u")
		if !ok {
			log.Printf("nostr: event %s missing u (invite) tag, dropping", ev.ID)
			return
		}
		network, _ := ev.Tag("n")
		modules, _ := ev.Tag("modules")

		ann := models.NostrFederationAnnouncement{
			EventID:    ev.ID,
			FedId:      fedId,
			InviteCode: inviteCode,
			Network:    network,
			Modules:    modules,
			CreatedAt:  time.Unix(ev.CreatedAt, 0).UTC(),
			Raw:        raw,
		}
		if err := a.store.UpsertNostrAnnouncement(ctx, ann); err != nil {
			log.Printf("nostr: store announcement %s: %v", ev.ID, err)
		}
	}
}

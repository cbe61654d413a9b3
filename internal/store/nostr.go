package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fedimint-observer/observer/pkg/models"
)

// UpsertNostrVote records a verified rating event, deduped by its nostr
// event id (replaceable by the relay, so ON CONFLICT keeps whichever
// version arrived first rather than silently failing).
func (s *Store) UpsertNostrVote(ctx context.Context, v models.NostrVote) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO nostr_votes (event_id, fed_id, pubkey, stars, comment, created_at, raw)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING`,
		v.EventID, v.FedId[:], v.Pubkey, v.Stars, v.Comment, v.CreatedAt, v.Raw,
	)
	if err != nil {
		return fmt.Errorf("store: upsert nostr vote: %w", err)
	}
	return nil
}

// UpsertNostrAnnouncement records a verified federation-announcement event.
func (s *Store) UpsertNostrAnnouncement(ctx context.Context, a models.NostrFederationAnnouncement) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO nostr_federation_announcements (event_id, fed_id, invite_code, network, modules, created_at, raw)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING`,
		a.EventID, a.FedId[:], a.InviteCode, a.Network, a.Modules, a.CreatedAt, a.Raw,
	)
	if err != nil {
		return fmt.Errorf("store: upsert nostr announcement: %w", err)
	}
	return nil
}

// NostrEventSeen reports whether an event id has already been stored as
// either a vote or an announcement, letting the relay aggregator drop a
// verified event it has already stored.
func (s *Store) NostrEventSeen(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM nostr_votes WHERE event_id = $1)
		OR EXISTS(SELECT 1 FROM nostr_federation_announcements WHERE event_id = $1)`,
		eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: nostr event seen: %w", err)
	}
	return exists, nil
}

// NostrVoteAggregate is one row of the nostr_vote_aggregates materialized view.
type NostrVoteAggregate struct {
	FedId     models.FedId
	VoteCount int64
	AvgStars  float64
}

// NostrVoteAggregateFor returns the rating aggregate for one federation,
// or a zero-value aggregate if it has never been rated.
func (s *Store) NostrVoteAggregateFor(ctx context.Context, fedId models.FedId) (NostrVoteAggregate, error) {
	var agg NostrVoteAggregate
	agg.FedId = fedId
	err := s.pool.QueryRow(ctx,
		`SELECT vote_count, avg_stars FROM nostr_vote_aggregates WHERE fed_id = $1`, fedId[:],
	).Scan(&agg.VoteCount, &agg.AvgStars)
	if errors.Is(err, pgx.ErrNoRows) {
		return NostrVoteAggregate{FedId: fedId}, nil
	}
	if err != nil {
		return NostrVoteAggregate{}, fmt.Errorf("store: nostr vote aggregate: %w", err)
	}
	return agg, nil
}

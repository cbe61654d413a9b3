package store

import (
	"context"
	"fmt"

	"github.com/fedimint-observer/observer/pkg/models"
)

// InsertFederation registers a new federation. FedId and ClientConfig are
// immutable once created; callers must have already validated
// config_digest == FedId before calling this.
func (s *Store) InsertFederation(ctx context.Context, fed models.Federation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin insert federation: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO federations (fed_id, client_config) VALUES ($1, $2)`,
		fed.FedId[:], fed.ClientConfig,
	); err != nil {
		return fmt.Errorf("store: insert federation: %w", err)
	}

	for _, g := range fed.Guardians {
		if _, err := tx.Exec(ctx,
			`INSERT INTO guardians (fed_id, peer_index, base_url) VALUES ($1, $2, $3)`,
			fed.FedId[:], g.PeerIndex, g.BaseURL,
		); err != nil {
			return fmt.Errorf("store: insert guardian: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// RemoveFederation deletes a federation and cascades to every table that
// references it by fed_id via a foreign key.
func (s *Store) RemoveFederation(ctx context.Context, fedId models.FedId) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM federations WHERE fed_id = $1`, fedId[:])
	if err != nil {
		return fmt.Errorf("store: remove federation: %w", err)
	}
	return nil
}

// ListFederations returns every registered federation.
func (s *Store) ListFederations(ctx context.Context) ([]models.Federation, error) {
	rows, err := s.pool.Query(ctx, `SELECT fed_id, client_config, created_at FROM federations ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("store: list federations: %w", err)
	}
	defer rows.Close()

	var feds []models.Federation
	for rows.Next() {
		var fed models.Federation
		var fedIdBytes []byte
		if err := rows.Scan(&fedIdBytes, &fed.ClientConfig, &fed.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan federation: %w", err)
		}
		copy(fed.FedId[:], fedIdBytes)
		feds = append(feds, fed)
	}

	for i := range feds {
		guardians, err := s.guardiansFor(ctx, feds[i].FedId)
		if err != nil {
			return nil, err
		}
		feds[i].Guardians = guardians
	}

	return feds, nil
}

func (s *Store) guardiansFor(ctx context.Context, fedId models.FedId) (models.GuardianSet, error) {
	rows, err := s.pool.Query(ctx, `SELECT peer_index, base_url FROM guardians WHERE fed_id = $1 ORDER BY peer_index`, fedId[:])
	if err != nil {
		return nil, fmt.Errorf("store: list guardians: %w", err)
	}
	defer rows.Close()

	var guardians models.GuardianSet
	for rows.Next() {
		var g models.Guardian
		if err := rows.Scan(&g.PeerIndex, &g.BaseURL); err != nil {
			return nil, fmt.Errorf("store: scan guardian: %w", err)
		}
		guardians = append(guardians, g)
	}
	return guardians, nil
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/fedimint-observer/observer/pkg/models"
)

// InsertGuardianHealth records one liveness sample for one guardian.
func (s *Store) InsertGuardianHealth(ctx context.Context, h models.GuardianHealth) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO guardian_health (fed_id, guardian_id, time, status, block_height, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		h.FedId[:], h.GuardianID, h.Time, h.Status, h.BlockHeight, h.LatencyMs,
	)
	if err != nil {
		return fmt.Errorf("store: insert guardian health: %w", err)
	}
	return nil
}

// GuardianHealthReport is the latest sample per guardian for a federation.
type GuardianHealthReport struct {
	GuardianID  int
	Time        time.Time
	BlockHeight *int64
	LatencyMs   *int64
}

// LatestGuardianHealth returns the most recent health sample for each
// guardian of a federation.
func (s *Store) LatestGuardianHealth(ctx context.Context, fedId models.FedId) ([]GuardianHealthReport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (guardian_id) guardian_id, time, block_height, latency_ms
		FROM guardian_health
		WHERE fed_id = $1
		ORDER BY guardian_id, time DESC`, fedId[:])
	if err != nil {
		return nil, fmt.Errorf("store: latest guardian health: %w", err)
	}
	defer rows.Close()

	var reports []GuardianHealthReport
	for rows.Next() {
		var r GuardianHealthReport
		if err := rows.Scan(&r.GuardianID, &r.Time, &r.BlockHeight, &r.LatencyMs); err != nil {
			return nil, fmt.Errorf("store: scan guardian health: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

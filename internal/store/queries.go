package store

import (
	"context"
	"fmt"
	"time"

	"github.com/fedimint-observer/observer/pkg/models"
)

// FederationTotals summarizes a federation's current reserves and
// transaction volume for the overview endpoint.
type FederationTotals struct {
	FedId            models.FedId
	TotalUtxoSats    int64
	UtxoCount        int64
	TransactionCount int64
	SessionCount     int64
}

// Totals returns the summary row for every known federation.
func (s *Store) Totals(ctx context.Context) ([]FederationTotals, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT f.fed_id,
		       COALESCE(u.total_sats, 0), COALESCE(u.utxo_count, 0),
		       COALESCE(t.tx_count, 0), COALESCE(sess.session_count, 0)
		FROM federations f
		LEFT JOIN (
		    SELECT fed_id, SUM(amount_sats) AS total_sats, COUNT(*) AS utxo_count
		    FROM utxos GROUP BY fed_id
		) u ON u.fed_id = f.fed_id
		LEFT JOIN (
		    SELECT fed_id, COUNT(*) AS tx_count FROM transactions GROUP BY fed_id
		) t ON t.fed_id = f.fed_id
		LEFT JOIN (
		    SELECT fed_id, COUNT(*) AS session_count FROM sessions GROUP BY fed_id
		) sess ON sess.fed_id = f.fed_id
		ORDER BY f.created_at`)
	if err != nil {
		return nil, fmt.Errorf("store: totals: %w", err)
	}
	defer rows.Close()

	var out []FederationTotals
	for rows.Next() {
		var t FederationTotals
		var fedIdBytes []byte
		if err := rows.Scan(&fedIdBytes, &t.TotalUtxoSats, &t.UtxoCount, &t.TransactionCount, &t.SessionCount); err != nil {
			return nil, fmt.Errorf("store: scan totals: %w", err)
		}
		copy(t.FedId[:], fedIdBytes)
		out = append(out, t)
	}
	return out, nil
}

// ClientConfig returns the raw client configuration blob for a federation.
func (s *Store) ClientConfig(ctx context.Context, fedId models.FedId) ([]byte, error) {
	var cfg []byte
	err := s.pool.QueryRow(ctx, `SELECT client_config FROM federations WHERE fed_id = $1`, fedId[:]).Scan(&cfg)
	if err != nil {
		return nil, fmt.Errorf("store: client config: %w", err)
	}
	return cfg, nil
}

// Utxos returns a page of the federation's current reserves, ordered by
// outpoint for stable pagination.
func (s *Store) Utxos(ctx context.Context, fedId models.FedId, limit, offset int) ([]models.Utxo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT fed_id, out_point_tx, out_point_vout, address, amount_sats
		FROM utxos WHERE fed_id = $1
		ORDER BY out_point_tx, out_point_vout
		LIMIT $2 OFFSET $3`, fedId[:], limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: utxos: %w", err)
	}
	defer rows.Close()

	var out []models.Utxo
	for rows.Next() {
		var u models.Utxo
		var fedIdBytes []byte
		if err := rows.Scan(&fedIdBytes, &u.OutPointTx, &u.OutPointVout, &u.Address, &u.AmountSats); err != nil {
			return nil, fmt.Errorf("store: scan utxo: %w", err)
		}
		copy(u.FedId[:], fedIdBytes)
		out = append(out, u)
	}
	return out, nil
}

// TransactionHistogramBucket is one time bucket of transaction volume.
type TransactionHistogramBucket struct {
	BucketStart time.Time
	Count       int64
}

// TransactionHistogram buckets a federation's transaction count by
// estimated session time, using the session_times view to place each
// transaction's session on a wall-clock axis.
func (s *Store) TransactionHistogram(ctx context.Context, fedId models.FedId, bucket time.Duration) ([]TransactionHistogramBucket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date_trunc('hour', st.estimated_time) -
		       (extract(epoch from date_trunc('hour', st.estimated_time))::bigint % $2) * interval '1 second' AS bucket_start,
		       COUNT(t.txid)
		FROM transactions t
		JOIN session_times st ON st.fed_id = t.fed_id AND st.session_index = t.session_index
		WHERE t.fed_id = $1 AND st.estimated_time IS NOT NULL
		GROUP BY bucket_start
		ORDER BY bucket_start`, fedId[:], int64(bucket.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("store: transaction histogram: %w", err)
	}
	defer rows.Close()

	var out []TransactionHistogramBucket
	for rows.Next() {
		var b TransactionHistogramBucket
		if err := rows.Scan(&b.BucketStart, &b.Count); err != nil {
			return nil, fmt.Errorf("store: scan histogram bucket: %w", err)
		}
		out = append(out, b)
	}
	return out, nil
}

// CurrentGateways returns the materialized latest-per-gateway LN
// registrations for a federation.
func (s *Store) CurrentGateways(ctx context.Context, fedId models.FedId) ([]models.LNGatewayRegistration, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT fed_id, gateway_id, node_pubkey, api_endpoint, base_fee_msat,
		       proportional_fee_ppm, ttl_seconds, registered_at, expires_at, route_hints
		FROM ln_current_gateways WHERE fed_id = $1
		ORDER BY gateway_id`, fedId[:])
	if err != nil {
		return nil, fmt.Errorf("store: current gateways: %w", err)
	}
	defer rows.Close()

	var out []models.LNGatewayRegistration
	for rows.Next() {
		var g models.LNGatewayRegistration
		var fedIdBytes []byte
		if err := rows.Scan(&fedIdBytes, &g.GatewayID, &g.NodePubkey, &g.APIEndpoint, &g.BaseFeeMsat,
			&g.ProportionalFeePPM, &g.TTLSeconds, &g.RegisteredAt, &g.ExpiresAt, &g.RouteHints); err != nil {
			return nil, fmt.Errorf("store: scan gateway: %w", err)
		}
		copy(g.FedId[:], fedIdBytes)
		out = append(out, g)
	}
	return out, nil
}

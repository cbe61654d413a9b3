package ingest

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/fedimint-observer/observer/internal/backoff"
	"github.com/fedimint-observer/observer/internal/decode"
	"github.com/fedimint-observer/observer/internal/guardianrpc"
	"github.com/fedimint-observer/observer/internal/store"
	"github.com/fedimint-observer/observer/pkg/models"
)

// Config configures one federation's ingestion loop.
type Config struct {
	FedId           models.FedId
	ClientConfig    []byte
	RefreshEvery    int           // refresh materialized views after this many committed sessions
	RefreshInterval time.Duration // or after this much wall-clock time, whichever comes first
}

// Ingestor resumably drives one federation's session-by-session ingestion.
type Ingestor struct {
	cfg      Config
	fed      *guardianrpc.FederationClient
	registry *decode.Registry
	store    *store.Store
}

// New builds an Ingestor for one federation.
func New(cfg Config, fed *guardianrpc.FederationClient, registry *decode.Registry, st *store.Store) *Ingestor {
	if cfg.RefreshEvery <= 0 {
		cfg.RefreshEvery = 50
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Second
	}
	return &Ingestor{cfg: cfg, fed: fed, registry: registry, store: st}
}

// Run ingests sessions starting from max_stored_session+1 (or 0 if none
// stored yet) until ctx is cancelled. It never skips or advances past a
// session it failed to fetch, decode, or commit — every failure is
// retried, with jittered backoff, at the same index.
func (in *Ingestor) Run(ctx context.Context) error {
	next, found, err := in.store.MaxStoredSession(ctx, in.cfg.FedId)
	if err != nil {
		return err
	}
	idx := uint64(0)
	if found {
		idx = next + 1
	}

	attempt := 0
	sinceRefresh := 0
	lastRefresh := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// validate is passed down to FederationClient.FetchSession so a peer
		// that answers with an undecodable blob is skipped in favor of the
		// next peer, rather than accepted and retried against the same
		// Byzantine source forever.
		var decoded decode.DecodedSession
		raw, err := in.fed.FetchSession(ctx, idx, func(b []byte) error {
			d, derr := decode.DecodeSession(b, in.cfg.ClientConfig)
			if derr != nil {
				return derr
			}
			decoded = d
			return nil
		})
		if err != nil {
			if errors.Is(err, guardianrpc.ErrNotReady) {
				// The federation hasn't produced this session yet; this is
				// the steady state between sessions, not a failure.
				if sleepErr := backoff.Sleep(ctx, backoff.Default, 0); sleepErr != nil {
					return sleepErr
				}
				continue
			}
			log.Printf("ingest: federation %s: fetch/decode session %d: %v", in.cfg.FedId, idx, err)
			if sleepErr := backoff.Sleep(ctx, backoff.Default, attempt); sleepErr != nil {
				return sleepErr
			}
			attempt++
			continue
		}
		attempt = 0

		session, txs, gateways := convertSession(in.cfg.FedId, idx, raw, decoded, in.registry, in.cfg.ClientConfig)

		if err := in.store.InsertSession(ctx, session, txs, gateways); err != nil {
			log.Printf("ingest: federation %s: commit session %d: %v", in.cfg.FedId, idx, err)
			if sleepErr := backoff.Sleep(ctx, backoff.Default, attempt); sleepErr != nil {
				return sleepErr
			}
			attempt++
			continue
		}

		idx++
		sinceRefresh++
		if sinceRefresh >= in.cfg.RefreshEvery || time.Since(lastRefresh) >= in.cfg.RefreshInterval {
			if err := in.store.RefreshAll(ctx); err != nil {
				log.Printf("ingest: federation %s: refresh views: %v", in.cfg.FedId, err)
			}
			sinceRefresh = 0
			lastRefresh = time.Now()
		}
	}
}

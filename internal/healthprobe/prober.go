// Package healthprobe periodically polls a federation's guardians for
// liveness and records the result as a time series.
package healthprobe

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/fedimint-observer/observer/internal/guardianrpc"
	"github.com/fedimint-observer/observer/internal/store"
	"github.com/fedimint-observer/observer/pkg/models"
)

// Config configures one federation's health probe.
type Config struct {
	FedId        models.FedId
	PollInterval time.Duration
	// Timeout is recorded as the elevated latency sentinel when a probe
	// times out or otherwise fails to get a response.
	Timeout time.Duration
}

// Prober polls every guardian of a federation on a ticker and records a
// guardian_health row per peer per tick.
type Prober struct {
	cfg   Config
	fed   *guardianrpc.FederationClient
	store *store.Store
}

// New builds a Prober for one federation.
func New(cfg Config, fed *guardianrpc.FederationClient, st *store.Store) *Prober {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Prober{cfg: cfg, fed: fed, store: st}
}

// Run polls on a ticker until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Prober) pollOnce(ctx context.Context) {
	for _, peer := range p.fed.Peers() {
		start := time.Now()
		status, err := peer.Status(ctx)
		latency := time.Since(start).Milliseconds()

		if err != nil {
			log.Printf("healthprobe: federation %s: guardian %d: %v", p.cfg.FedId, peer.PeerIndex(), err)
		}
		health := buildHealthRecord(p.cfg, peer.PeerIndex(), status, err, latency)

		if err := p.store.InsertGuardianHealth(ctx, health); err != nil {
			log.Printf("healthprobe: federation %s: guardian %d: insert health: %v", p.cfg.FedId, peer.PeerIndex(), err)
		}
	}
}

// buildHealthRecord turns one guardian's status response (or error) into
// the row to persist. A missing/timeout response records a null status,
// null block height, and an elevated latency sentinel (the configured
// probe timeout) rather than a populated-but-fabricated status blob.
func buildHealthRecord(cfg Config, peerIndex int, status *guardianrpc.Status, err error, latencyMs int64) models.GuardianHealth {
	health := models.GuardianHealth{
		FedId:      cfg.FedId,
		GuardianID: peerIndex,
		Time:       time.Now(),
	}

	if err != nil {
		sentinel := cfg.Timeout.Milliseconds()
		health.LatencyMs = &sentinel
		return health
	}

	lat := latencyMs
	height := status.BlockHeightEstimate
	health.BlockHeight = &height
	health.LatencyMs = &lat

	liveness := classify(status, latencyMs)
	blob, _ := json.Marshal(map[string]interface{}{
		"liveness":            liveness,
		"peerVisibleLiveness": status.PeerVisibleLiveness,
		"uptimeSeconds":       status.UptimeSeconds,
	})
	health.Status = blob
	return health
}

// classify maps a status response and its round-trip latency to a
// liveness label: a guardian reporting itself not peer-visible, or one
// answering unusually slowly, is degraded rather than fully online.
func classify(status *guardianrpc.Status, latencyMs int64) string {
	if !status.PeerVisibleLiveness {
		return "degraded"
	}
	if latencyMs > 5000 {
		return "degraded"
	}
	return "online"
}

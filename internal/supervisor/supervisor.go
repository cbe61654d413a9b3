// Package supervisor boots and supervises the engine's per-federation
// task trio (ingestor, reconciler, health prober) plus the process-wide
// Nostr aggregator, restarting any task that returns an error with
// jittered backoff and tracking restart counts.
package supervisor

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fedimint-observer/observer/internal/backoff"
	"github.com/fedimint-observer/observer/internal/decode"
	"github.com/fedimint-observer/observer/internal/explorer"
	"github.com/fedimint-observer/observer/internal/guardianrpc"
	"github.com/fedimint-observer/observer/internal/healthprobe"
	"github.com/fedimint-observer/observer/internal/ingest"
	"github.com/fedimint-observer/observer/internal/nostr"
	"github.com/fedimint-observer/observer/internal/reconciler"
	"github.com/fedimint-observer/observer/internal/store"
	"github.com/fedimint-observer/observer/pkg/models"
)

// Config configures the supervisor.
type Config struct {
	GuardianTimeout time.Duration
	ExplorerBaseURL string
	NostrRelayURLs  []string
}

// federationTasks tracks one federation's running task trio so it can be
// torn down on removal.
type federationTasks struct {
	cancel context.CancelFunc
	fed    *guardianrpc.FederationClient
}

// Supervisor owns the lifecycle of every running subsystem.
type Supervisor struct {
	cfg      Config
	store    *store.Store
	registry *decode.Registry
	explorer *explorer.Client

	mu            sync.Mutex
	federations   map[models.FedId]*federationTasks
	restartCounts map[string]*atomic.Int64
}

// New builds a Supervisor.
func New(cfg Config, st *store.Store) *Supervisor {
	return &Supervisor{
		cfg:           cfg,
		store:         st,
		registry:      decode.NewRegistry(),
		explorer:      explorer.NewClient(explorer.Config{BaseURL: cfg.ExplorerBaseURL}),
		federations:   make(map[models.FedId]*federationTasks),
		restartCounts: make(map[string]*atomic.Int64),
	}
}

// Boot applies schema migrations, loads every registered federation, and
// starts its task trio plus the process-wide Nostr aggregator. It returns
// once everything is running; the caller keeps ctx alive for the
// supervised goroutines' lifetime.
func (s *Supervisor) Boot(ctx context.Context) error {
	if err := s.store.Migrate(ctx); err != nil {
		return fmt.Errorf("supervisor: migrate: %w", err)
	}

	feds, err := s.store.ListFederations(ctx)
	if err != nil {
		return fmt.Errorf("supervisor: list federations: %w", err)
	}
	for _, fed := range feds {
		s.startFederation(ctx, fed)
	}

	if len(s.cfg.NostrRelayURLs) > 0 {
		agg := nostr.New(nostr.Config{RelayURLs: s.cfg.NostrRelayURLs}, s.store)
		go s.supervise(ctx, "nostr-aggregator", agg.Run)
	} else {
		log.Println("supervisor: no nostr relay URLs configured, rating aggregation disabled")
	}

	return nil
}

// AddFederation validates a newly-announced federation (fetching its
// client config from the first of the given guardians and checking the config digest
// matches the claimed federation id), registers it, and starts its task
// trio.
func (s *Supervisor) AddFederation(ctx context.Context, fedId models.FedId, guardians models.GuardianSet) error {
	if len(guardians) == 0 {
		return fmt.Errorf("supervisor: federation %s has no guardians", fedId)
	}
	probe := guardianrpc.NewClient(guardianrpc.Config{BaseURL: guardians[0].BaseURL, PeerIndex: guardians[0].PeerIndex, Timeout: s.cfg.GuardianTimeout})

	cfg, err := probe.FetchClientConfig(ctx)
	if err != nil {
		return fmt.Errorf("supervisor: fetch client config: %w", err)
	}

	digest := sha256.Sum256(cfg)
	if digest != [32]byte(fedId) {
		return fmt.Errorf("supervisor: client config digest does not match claimed federation id %s", fedId)
	}

	fed := models.Federation{FedId: fedId, ClientConfig: cfg, Guardians: guardians}
	if err := s.store.InsertFederation(ctx, fed); err != nil {
		return fmt.Errorf("supervisor: insert federation: %w", err)
	}

	s.startFederation(ctx, fed)
	return nil
}

// RemoveFederation cancels a federation's task trio and cascades its
// removal from the store.
func (s *Supervisor) RemoveFederation(ctx context.Context, fedId models.FedId) error {
	s.mu.Lock()
	tasks, ok := s.federations[fedId]
	if ok {
		delete(s.federations, fedId)
	}
	s.mu.Unlock()

	if ok {
		tasks.cancel()
	}
	return s.store.RemoveFederation(ctx, fedId)
}

func (s *Supervisor) startFederation(ctx context.Context, fed models.Federation) {
	fedCtx, cancel := context.WithCancel(ctx)

	peers := make([]*guardianrpc.Client, len(fed.Guardians))
	for i, g := range fed.Guardians {
		peers[i] = guardianrpc.NewClient(guardianrpc.Config{BaseURL: g.BaseURL, PeerIndex: g.PeerIndex, Timeout: s.cfg.GuardianTimeout})
	}
	fc := guardianrpc.NewFederationClient(peers)

	s.mu.Lock()
	s.federations[fed.FedId] = &federationTasks{cancel: cancel, fed: fc}
	s.mu.Unlock()

	ingestor := ingest.New(ingest.Config{FedId: fed.FedId, ClientConfig: fed.ClientConfig}, fc, s.registry, s.store)
	recon := reconciler.New(reconciler.Config{FedId: fed.FedId}, s.explorer, s.store)
	prober := healthprobe.New(healthprobe.Config{FedId: fed.FedId}, fc, s.store)

	label := fed.FedId.String()
	go s.supervise(fedCtx, "ingest:"+label, ingestor.Run)
	go s.supervise(fedCtx, "reconciler:"+label, recon.Run)
	go s.supervise(fedCtx, "healthprobe:"+label, prober.Run)
}

// supervise runs fn and, if it returns a non-nil error other than context
// cancellation, restarts it after a jittered backoff keyed to this
// specific task's accumulated restart count.
func (s *Supervisor) supervise(ctx context.Context, name string, fn func(context.Context) error) {
	s.mu.Lock()
	counter, ok := s.restartCounts[name]
	if !ok {
		counter = &atomic.Int64{}
		s.restartCounts[name] = counter
	}
	s.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return
		}

		err := fn(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}

		attempt := counter.Add(1)
		log.Printf("supervisor: task %s exited (restart #%d): %v", name, attempt, err)
		if sleepErr := backoff.Sleep(ctx, backoff.Default, int(attempt)); sleepErr != nil {
			return
		}
	}
}

// RestartCount reports how many times a named task has been restarted,
// for diagnostics.
func (s *Supervisor) RestartCount(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.restartCounts[name]; ok {
		return c.Load()
	}
	return 0
}

package guardianrpc

import (
	"context"
	"errors"
	"log"
	"sync"
)

// FederationClient fans a call out across every guardian of a federation
// and reconciles the responses: majority vote for Status, first-success
// with fallback to the next peer for FetchSession.
type FederationClient struct {
	peers []*Client
}

// NewFederationClient builds a fan-out client from one Client per guardian.
func NewFederationClient(peers []*Client) *FederationClient {
	return &FederationClient{peers: peers}
}

// FetchSession tries each peer in order and returns the first blob that
// both arrives without a network-level error and passes validate. A peer
// that answers with a corrupted or undecodable blob is not accepted: the
// next peer is tried instead, so a single Byzantine guardian serving
// garbage for a given session can never stall ingestion on its own — it is
// simply skipped in favor of any other peer that serves a decodable
// result. validate may be nil, in which case the first network-successful
// response is accepted as before.
//
// If no peer succeeded and at least one failed with a network error or a
// validation error, the most recent such error is returned, so the
// caller's logs point at the actual failure rather than a misleading
// NotReady. Otherwise (every peer reported NotReady, or there are no peers)
// ErrNotReady is returned so the caller can back off without treating the
// round as fatal.
func (f *FederationClient) FetchSession(ctx context.Context, sessionIndex uint64, validate func([]byte) error) ([]byte, error) {
	sawNotReady := false
	var lastErr error

	for _, peer := range f.peers {
		raw, err := peer.FetchSession(ctx, sessionIndex)
		if err != nil {
			if errors.Is(err, ErrNotReady) {
				sawNotReady = true
				continue
			}
			log.Printf("[guardianrpc] peer %d (%s) fetch_session(%d) failed: %v", peer.PeerIndex(), peer.BaseURL(), sessionIndex, err)
			lastErr = err
			continue
		}

		if validate != nil {
			if verr := validate(raw); verr != nil {
				log.Printf("[guardianrpc] peer %d (%s) served undecodable session %d, trying next peer: %v", peer.PeerIndex(), peer.BaseURL(), sessionIndex, verr)
				lastErr = verr
				continue
			}
		}

		return raw, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	if sawNotReady {
		return nil, ErrNotReady
	}
	return nil, ErrNotReady
}

// AggregatedStatus is the majority-voted status across the federation.
type AggregatedStatus struct {
	BlockHeightEstimate int64
	SessionCount        int64
	RespondingPeers      int
	TotalPeers           int
}

// Status queries every peer concurrently and returns the majority-voted
// block height / session count along with how many peers answered.
func (f *FederationClient) Status(ctx context.Context) (*AggregatedStatus, map[int]*Status) {
	results := make(map[int]*Status, len(f.peers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, peer := range f.peers {
		wg.Add(1)
		go func(p *Client) {
			defer wg.Done()
			s, err := p.Status(ctx)
			if err != nil {
				log.Printf("[guardianrpc] peer %d (%s) status failed: %v", p.PeerIndex(), p.BaseURL(), err)
				return
			}
			mu.Lock()
			results[p.PeerIndex()] = s
			mu.Unlock()
		}(peer)
	}
	wg.Wait()

	if len(results) == 0 {
		return &AggregatedStatus{TotalPeers: len(f.peers)}, results
	}

	heightVotes := make(map[int64]int)
	sessionVotes := make(map[int64]int)
	for _, s := range results {
		heightVotes[s.BlockHeightEstimate]++
		sessionVotes[s.SessionCount]++
	}

	return &AggregatedStatus{
		BlockHeightEstimate: mode(heightVotes),
		SessionCount:        mode(sessionVotes),
		RespondingPeers:     len(results),
		TotalPeers:          len(f.peers),
	}, results
}

func mode(votes map[int64]int) int64 {
	var best int64
	bestCount := -1
	for v, count := range votes {
		if count > bestCount {
			best = v
			bestCount = count
		}
	}
	return best
}

// Peers returns the underlying per-peer clients.
func (f *FederationClient) Peers() []*Client { return f.peers }

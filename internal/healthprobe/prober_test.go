package healthprobe

import (
	"errors"
	"testing"
	"time"

	"github.com/fedimint-observer/observer/internal/guardianrpc"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		status  *guardianrpc.Status
		latency int64
		want    string
	}{
		{"healthy", &guardianrpc.Status{PeerVisibleLiveness: true}, 50, "online"},
		{"not peer visible", &guardianrpc.Status{PeerVisibleLiveness: false}, 50, "degraded"},
		{"slow", &guardianrpc.Status{PeerVisibleLiveness: true}, 6000, "degraded"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := classify(c.status, c.latency); got != c.want {
				t.Errorf("classify() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestBuildHealthRecordOnErrorRecordsNullStatusAndLatencySentinel(t *testing.T) {
	cfg := Config{Timeout: 10 * time.Second}

	health := buildHealthRecord(cfg, 3, nil, errors.New("dial timeout"), 0)

	if health.Status != nil {
		t.Errorf("expected null status on probe error, got %s", health.Status)
	}
	if health.BlockHeight != nil {
		t.Errorf("expected null block height on probe error, got %v", *health.BlockHeight)
	}
	if health.LatencyMs == nil || *health.LatencyMs != cfg.Timeout.Milliseconds() {
		t.Errorf("expected latency sentinel %d, got %v", cfg.Timeout.Milliseconds(), health.LatencyMs)
	}
}

func TestBuildHealthRecordOnSuccessPopulatesStatusAndLatency(t *testing.T) {
	cfg := Config{Timeout: 10 * time.Second}
	status := &guardianrpc.Status{BlockHeightEstimate: 900, PeerVisibleLiveness: true}

	health := buildHealthRecord(cfg, 1, status, nil, 42)

	if health.Status == nil {
		t.Fatal("expected a populated status blob on success")
	}
	if health.BlockHeight == nil || *health.BlockHeight != 900 {
		t.Errorf("expected block height 900, got %v", health.BlockHeight)
	}
	if health.LatencyMs == nil || *health.LatencyMs != 42 {
		t.Errorf("expected latency 42ms, got %v", health.LatencyMs)
	}
}

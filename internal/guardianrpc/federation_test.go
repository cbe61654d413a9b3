package guardianrpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func rpcServer(t *testing.T, result interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := json.Marshal(result)
		if err != nil {
			t.Fatalf("marshal fixture: %v", err)
		}
		resp := struct {
			Result json.RawMessage `json:"result"`
		}{Result: raw}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

// TestFetchSessionSkipsPeerServingUndecodableBlob reproduces a Byzantine
// guardian at peer index 0 that always answers with a blob that fails
// validate: FetchSession must fall through to the next peer instead of
// returning the garbage or retrying the same peer forever.
func TestFetchSessionSkipsPeerServingUndecodableBlob(t *testing.T) {
	byzantine := rpcServer(t, map[string]interface{}{"ready": true, "data": []byte("garbage")})
	defer byzantine.Close()
	honest := rpcServer(t, map[string]interface{}{"ready": true, "data": []byte("good")})
	defer honest.Close()

	fc := NewFederationClient([]*Client{
		NewClient(Config{BaseURL: byzantine.URL, PeerIndex: 0}),
		NewClient(Config{BaseURL: honest.URL, PeerIndex: 1}),
	})

	validate := func(b []byte) error {
		if string(b) != "good" {
			return errors.New("undecodable")
		}
		return nil
	}

	raw, err := fc.FetchSession(context.Background(), 1, validate)
	if err != nil {
		t.Fatalf("FetchSession returned error: %v", err)
	}
	if string(raw) != "good" {
		t.Fatalf("expected to fall through to the honest peer's blob, got %q", raw)
	}
}

// TestFetchSessionReturnsValidationErrorWhenNoPeerValidates ensures that
// when every responsive peer fails validate, the caller gets a real error
// back instead of a misleading ErrNotReady.
func TestFetchSessionReturnsValidationErrorWhenNoPeerValidates(t *testing.T) {
	s1 := rpcServer(t, map[string]interface{}{"ready": true, "data": []byte("bad1")})
	defer s1.Close()
	s2 := rpcServer(t, map[string]interface{}{"ready": true, "data": []byte("bad2")})
	defer s2.Close()

	fc := NewFederationClient([]*Client{
		NewClient(Config{BaseURL: s1.URL, PeerIndex: 0}),
		NewClient(Config{BaseURL: s2.URL, PeerIndex: 1}),
	})

	validate := func(b []byte) error { return errors.New("always invalid") }

	_, err := fc.FetchSession(context.Background(), 1, validate)
	if err == nil || errors.Is(err, ErrNotReady) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

// TestFetchSessionReturnsNotReadyWhenAllPeersNotReady preserves the
// steady-state behavior: every peer reporting NotReady means ErrNotReady,
// not a hard failure.
func TestFetchSessionReturnsNotReadyWhenAllPeersNotReady(t *testing.T) {
	s1 := rpcServer(t, map[string]interface{}{"ready": false})
	defer s1.Close()
	s2 := rpcServer(t, map[string]interface{}{"ready": false})
	defer s2.Close()

	fc := NewFederationClient([]*Client{
		NewClient(Config{BaseURL: s1.URL, PeerIndex: 0}),
		NewClient(Config{BaseURL: s2.URL, PeerIndex: 1}),
	})

	_, err := fc.FetchSession(context.Background(), 1, nil)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

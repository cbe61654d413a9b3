package ingest

import (
	"testing"

	"github.com/fedimint-observer/observer/internal/decode"
	"github.com/fedimint-observer/observer/pkg/models"
)

func TestConvertSessionDispatchesTransactionsAndGateways(t *testing.T) {
	registry := decode.NewRegistry()

	txData := []byte(`{"txid":"abc123","inputs":[{"kind":"wallet","data":{"variant":"pegin","outPointTx":"deadbeef","outPointVout":0,"address":"bc1qxyz","amountSats":50000}}],"outputs":[{"kind":"mint","data":{"amountMsat":50000000}}]}`)
	gatewayData := []byte(`{"gatewayId":"gw1","nodePubkey":"02ab","apiEndpoint":"https://gw.example","baseFeeMsat":1000,"proportionalFeePpm":10,"ttlSeconds":600,"registeredAt":1700000000}`)

	decoded := decode.DecodedSession{
		Items: []decode.ItemEnvelope{
			{Proposer: 0, Kind: models.KindTransaction, Data: txData},
			{Proposer: 1, Kind: "ln", Data: gatewayData},
		},
	}

	var fedId models.FedId
	fedId[0] = 7

	session, txs, gateways := convertSession(fedId, 42, []byte("raw-session-blob"), decoded, registry, nil)

	if len(session.Items) != 2 {
		t.Fatalf("expected 2 consensus items, got %d", len(session.Items))
	}
	if session.SessionIndex != 42 {
		t.Fatalf("expected session index 42, got %d", session.SessionIndex)
	}

	if len(txs) != 1 {
		t.Fatalf("expected 1 decoded transaction, got %d", len(txs))
	}
	tx := txs[0]
	if tx.Txid != "abc123" {
		t.Errorf("expected txid abc123, got %q", tx.Txid)
	}
	if len(tx.Inputs) != 1 || tx.Inputs[0].Wallet == nil || !tx.Inputs[0].Wallet.IsPegIn {
		t.Errorf("expected a single peg-in wallet input, got %+v", tx.Inputs)
	}
	if tx.Inputs[0].Wallet.AmountSats != 50000 {
		t.Errorf("expected amount 50000 sats, got %d", tx.Inputs[0].Wallet.AmountSats)
	}
	if len(tx.Outputs) != 1 || tx.Outputs[0].AmountMsat == nil || *tx.Outputs[0].AmountMsat != 50000000 {
		t.Errorf("expected mint output of 50000000 msat, got %+v", tx.Outputs)
	}

	if len(gateways) != 1 {
		t.Fatalf("expected 1 gateway registration, got %d", len(gateways))
	}
	if gateways[0].GatewayID != "gw1" {
		t.Errorf("expected gateway id gw1, got %q", gateways[0].GatewayID)
	}
	if gateways[0].ExpiresAt.Sub(gateways[0].RegisteredAt).Seconds() != 600 {
		t.Errorf("expected expiry 600s after registration, got %v", gateways[0].ExpiresAt.Sub(gateways[0].RegisteredAt))
	}
}

func TestConvertSessionDropsUnparsableTransactionWithoutAbortingSession(t *testing.T) {
	registry := decode.NewRegistry()

	decoded := decode.DecodedSession{
		Items: []decode.ItemEnvelope{
			{Proposer: 0, Kind: models.KindTransaction, Data: []byte(`not-json`)},
			{Proposer: 0, Kind: models.KindBlockHeightVote, Data: []byte(`{"heightVote":500}`)},
		},
	}

	var fedId models.FedId
	session, txs, _ := convertSession(fedId, 1, []byte("raw"), decoded, registry, nil)

	if len(session.Items) != 2 {
		t.Fatalf("expected both consensus items stored even though one tx failed to decode, got %d", len(session.Items))
	}
	if len(txs) != 0 {
		t.Fatalf("expected the malformed transaction to be dropped, got %d", len(txs))
	}
}

func TestDecodeTransactionsParallelHandlesManyItems(t *testing.T) {
	registry := decode.NewRegistry()

	const n = 200
	items := make([]decode.ItemEnvelope, n)
	indexes := make([]int, n)
	for i := 0; i < n; i++ {
		items[i] = decode.ItemEnvelope{
			Kind: models.KindTransaction,
			Data: []byte(`{"txid":"tx` + string(rune('a'+i%26)) + `","inputs":[],"outputs":[]}`),
		}
		indexes[i] = i
	}

	session := models.Session{SessionIndex: 9}
	decoded := decode.DecodedSession{Items: items}

	txs := decodeTransactionsParallel(session, decoded, indexes, registry, nil)
	if len(txs) != n {
		t.Fatalf("expected %d decoded transactions, got %d", n, len(txs))
	}
}

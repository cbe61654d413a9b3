package reconciler

import (
	"testing"

	"github.com/fedimint-observer/observer/internal/explorer"
)

func TestSpendsAddress(t *testing.T) {
	tx := &explorer.OnChainTx{
		Txid: "tx1",
		Outputs: []explorer.OnChainOutput{
			{Vout: 0, Address: "bc1qchange", AmountSats: 100},
			{Vout: 1, Address: "bc1qpayout", AmountSats: 900},
		},
	}

	if !spendsAddress(tx, "bc1qpayout") {
		t.Error("expected spendsAddress to find the payout output")
	}
	if spendsAddress(tx, "bc1qnotpresent") {
		t.Error("expected spendsAddress to be false for an absent address")
	}
}

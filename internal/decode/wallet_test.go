package decode

import "testing"

const mainnetP2WPKH = "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
const testnetP2WPKH = "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx"

func TestResolveNetworkPrefersValueTagOverConfig(t *testing.T) {
	cfg := []byte(`{"modules":{"wallet":{"network":"testnet3"}}}`)
	params, name := resolveNetwork("mainnet", cfg)
	if params == nil || name != "mainnet" {
		t.Fatalf("expected value.network (mainnet) to win over config.network, got %q", name)
	}
}

func TestResolveNetworkFallsBackToClientConfig(t *testing.T) {
	cfg := []byte(`{"modules":{"wallet":{"network":"signet"}}}`)
	params, name := resolveNetwork("", cfg)
	if params == nil || name != "signet" {
		t.Fatalf("expected fallback to config.network (signet), got %q", name)
	}
}

func TestResolveNetworkUnknownTagPassesThroughUnresolved(t *testing.T) {
	params, name := resolveNetwork("", nil)
	if params != nil {
		t.Fatalf("expected nil params for an unresolvable tag, got %+v", params)
	}
	if name != "" {
		t.Fatalf("expected empty name, got %q", name)
	}
}

func TestWalletDecodeInputAcceptsAddressMatchingResolvedNetwork(t *testing.T) {
	raw := []byte(`{"variant":"pegin","outPointTx":"deadbeef","outPointVout":0,"address":"` + mainnetP2WPKH + `","amountSats":50000,"network":"mainnet"}`)
	res, err := walletDecoder{}.DecodeInput(raw, nil)
	if err != nil {
		t.Fatalf("expected matching mainnet address to decode cleanly, got %v", err)
	}
	if res.Wallet == nil || res.Wallet.Network != "mainnet" {
		t.Fatalf("expected resolved network mainnet, got %+v", res.Wallet)
	}
}

func TestWalletDecodeInputRejectsAddressNetworkMismatch(t *testing.T) {
	// value.network claims mainnet but the address is a testnet address.
	raw := []byte(`{"variant":"pegin","outPointTx":"deadbeef","outPointVout":0,"address":"` + testnetP2WPKH + `","amountSats":50000,"network":"mainnet"}`)
	_, err := walletDecoder{}.DecodeInput(raw, nil)
	if err == nil {
		t.Fatal("expected a network-mismatch error, got nil")
	}
}

func TestWalletDecodeOutputUsesClientConfigNetwork(t *testing.T) {
	cfg := []byte(`{"modules":{"wallet":{"network":"testnet3"}}}`)
	raw := []byte(`{"variant":"pegout","payoutAddress":"` + testnetP2WPKH + `","amountSats":25000}`)
	res, err := walletDecoder{}.DecodeOutput(raw, cfg)
	if err != nil {
		t.Fatalf("expected matching testnet address to decode cleanly, got %v", err)
	}
	if res.Wallet == nil || res.Wallet.Network != "testnet3" {
		t.Fatalf("expected resolved network testnet3, got %+v", res.Wallet)
	}
}

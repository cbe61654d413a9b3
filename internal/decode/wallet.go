package decode

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// WalletInput is the decoded payload of a kind=wallet transaction input.
// PegIn inputs spend a previously-observed on-chain deposit.
type WalletInput struct {
	IsPegIn      bool
	OutPointTx   string
	OutPointVout uint32
	Address      string
	AmountSats   int64
	Network      string // resolved chaincfg network name, e.g. "mainnet"
}

// WalletOutput is the decoded payload of a kind=wallet transaction output.
// PegOut outputs request an on-chain payout to an external address.
type WalletOutput struct {
	IsPegOut   bool
	PayoutAddr string
	AmountSats int64
	Network    string
}

// networkParams maps the wallet module's network tag vocabulary onto the
// corresponding chaincfg network parameters.
var networkParams = map[string]*chaincfg.Params{
	"mainnet":  &chaincfg.MainNetParams,
	"bitcoin":  &chaincfg.MainNetParams,
	"testnet":  &chaincfg.TestNet3Params,
	"testnet3": &chaincfg.TestNet3Params,
	"signet":   &chaincfg.SigNetParams,
	"regtest":  &chaincfg.RegressionNetParams,
}

// walletModuleConfigWire is the slice of a federation's client config this
// decoder cares about: the wallet module's own network tag.
type walletModuleConfigWire struct {
	Modules struct {
		Wallet struct {
			Network string `json:"network"`
		} `json:"wallet"`
	} `json:"modules"`
}

func clientConfigNetwork(clientConfig []byte) string {
	var cfg walletModuleConfigWire
	if err := json.Unmarshal(clientConfig, &cfg); err != nil {
		return ""
	}
	return cfg.Modules.Wallet.Network
}

// resolveNetwork prefers the item's own network tag (value.network) and
// falls back to the federation's client config (config.network), since
// historical payloads only ever populate one or the other. It returns the
// matching chaincfg.Params alongside the canonical network name; for an
// unrecognized tag it returns nil params and the tag as given.
func resolveNetwork(valueNetwork string, clientConfig []byte) (*chaincfg.Params, string) {
	tag := valueNetwork
	if tag == "" {
		tag = clientConfigNetwork(clientConfig)
	}
	params, ok := networkParams[strings.ToLower(tag)]
	if !ok {
		return nil, tag
	}
	return params, params.Name
}

// walletInputWire is the JSON-shaped envelope for a wallet-module input,
// as the decoder registry receives it from the session/transaction decode
// pass (see session.go / transaction.go for the outer envelope).
type walletInputWire struct {
	Variant      string `json:"variant"` // "pegin" | "change" | "peg_in_proof"
	OutPointTx   string `json:"outPointTx"`
	OutPointVout uint32 `json:"outPointVout"`
	Address      string `json:"address"`
	AmountSats   int64  `json:"amountSats"`
	// Network carries the submodule's own notion of the chain it observed
	// the deposit on. Some historical payloads only set this on the value
	// envelope (value.network); others only set it on the client config
	// (config.network). resolveNetwork prefers value.network and falls
	// back to config.network — see DESIGN.md's Open Question resolution.
	Network string `json:"network,omitempty"`
}

type walletOutputWire struct {
	Variant    string `json:"variant"` // "pegout" | "change"
	PayoutAddr string `json:"payoutAddress"`
	AmountSats int64  `json:"amountSats"`
}

type walletDecoder struct{}

func (walletDecoder) DecodeInput(raw []byte, clientConfig []byte) (DecodedInput, error) {
	var w walletInputWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return DecodedInput{Kind: "wallet"}, err
	}

	params, network := resolveNetwork(w.Network, clientConfig)
	if params != nil && w.Address != "" {
		if _, err := btcutil.DecodeAddress(w.Address, params); err != nil {
			return DecodedInput{Kind: "wallet"}, fmt.Errorf("wallet peg-in address %q does not match resolved network %s: %w", w.Address, network, err)
		}
	}

	amount := w.AmountSats * 1000 // msat
	in := WalletInput{
		IsPegIn:      w.Variant == "pegin" || w.Variant == "peg_in_proof",
		OutPointTx:   w.OutPointTx,
		OutPointVout: w.OutPointVout,
		Address:      w.Address,
		AmountSats:   w.AmountSats,
		Network:      network,
	}
	return DecodedInput{Kind: "wallet", AmountMsat: &amount, Wallet: &in}, nil
}

func (walletDecoder) DecodeOutput(raw []byte, clientConfig []byte) (DecodedOutput, error) {
	var w walletOutputWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return DecodedOutput{Kind: "wallet"}, err
	}

	params, network := resolveNetwork("", clientConfig)
	if params != nil && w.PayoutAddr != "" {
		if _, err := btcutil.DecodeAddress(w.PayoutAddr, params); err != nil {
			return DecodedOutput{Kind: "wallet"}, fmt.Errorf("wallet peg-out address %q does not match resolved network %s: %w", w.PayoutAddr, network, err)
		}
	}

	amount := w.AmountSats * 1000
	out := WalletOutput{
		IsPegOut:   w.Variant == "pegout",
		PayoutAddr: w.PayoutAddr,
		AmountSats: w.AmountSats,
		Network:    network,
	}
	return DecodedOutput{Kind: "wallet", AmountMsat: &amount, Wallet: &out}, nil
}

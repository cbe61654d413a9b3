package decode

import (
	"encoding/json"
	"time"
)

// LNInteraction is the decoded payload of a kind=ln transaction input/output:
// a fund, cancel, or offer interaction against a lightning contract.
type LNInteraction struct {
	ContractId string
	Kind       string // "fund" | "cancel" | "offer"
}

// LNGatewayRegistration is the decoded payload of a ModuleConsensusItem{kind=ln}
// gateway-registration event.
type LNGatewayRegistration struct {
	GatewayID          string
	NodePubkey         string
	APIEndpoint        string
	BaseFeeMsat        int64
	ProportionalFeePPM int64
	TTLSeconds         int64
	RegisteredAt       time.Time
	RouteHints         []byte
}

type lnInOutWire struct {
	ContractId string `json:"contractId"`
	Kind       string `json:"kind"` // "fund" | "cancel" | "offer"
	AmountMsat int64  `json:"amountMsat"`
}

type lnGatewayWire struct {
	GatewayID          string          `json:"gatewayId"`
	NodePubkey         string          `json:"nodePubkey"`
	APIEndpoint        string          `json:"apiEndpoint"`
	BaseFeeMsat        int64           `json:"baseFeeMsat"`
	ProportionalFeePPM int64           `json:"proportionalFeePpm"`
	TTLSeconds         int64           `json:"ttlSeconds"`
	RegisteredAtUnix   int64           `json:"registeredAt"`
	RouteHints         json.RawMessage `json:"routeHints"`
}

type lnDecoder struct{}

func (lnDecoder) DecodeInput(raw []byte, clientConfig []byte) (DecodedInput, error) {
	var w lnInOutWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return DecodedInput{Kind: "ln"}, err
	}
	amount := w.AmountMsat
	return DecodedInput{
		Kind:       "ln",
		AmountMsat: &amount,
		LN:         &LNInteraction{ContractId: w.ContractId, Kind: w.Kind},
	}, nil
}

func (lnDecoder) DecodeOutput(raw []byte, clientConfig []byte) (DecodedOutput, error) {
	var w lnInOutWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return DecodedOutput{Kind: "ln"}, err
	}
	amount := w.AmountMsat
	return DecodedOutput{
		Kind:       "ln",
		AmountMsat: &amount,
		LN:         &LNInteraction{ContractId: w.ContractId, Kind: w.Kind},
	}, nil
}

func (lnDecoder) DecodeItem(raw []byte, clientConfig []byte) (DecodedItem, error) {
	var w lnGatewayWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return DecodedItem{Kind: "ln"}, err
	}
	return DecodedItem{
		Kind: "ln",
		LN: &LNGatewayRegistration{
			GatewayID:          w.GatewayID,
			NodePubkey:         w.NodePubkey,
			APIEndpoint:        w.APIEndpoint,
			BaseFeeMsat:        w.BaseFeeMsat,
			ProportionalFeePPM: w.ProportionalFeePPM,
			TTLSeconds:         w.TTLSeconds,
			RegisteredAt:       time.Unix(w.RegisteredAtUnix, 0).UTC(),
			RouteHints:         w.RouteHints,
		},
	}, nil
}

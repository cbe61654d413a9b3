package decode

import "encoding/json"

// mintWire is the JSON-shaped envelope for a mint-module input/output: a
// blinded/unblinded ecash note at a given denomination.
type mintWire struct {
	AmountMsat int64 `json:"amountMsat"`
}

type mintDecoder struct{}

func (mintDecoder) DecodeInput(raw []byte, clientConfig []byte) (DecodedInput, error) {
	var w mintWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return DecodedInput{Kind: "mint"}, err
	}
	amount := w.AmountMsat
	return DecodedInput{Kind: "mint", AmountMsat: &amount}, nil
}

func (mintDecoder) DecodeOutput(raw []byte, clientConfig []byte) (DecodedOutput, error) {
	var w mintWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return DecodedOutput{Kind: "mint"}, err
	}
	amount := w.AmountMsat
	return DecodedOutput{Kind: "mint", AmountMsat: &amount}, nil
}

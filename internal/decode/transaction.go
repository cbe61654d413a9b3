package decode

import "encoding/json"

// DecodedTxInput is one decoded transaction input.
type DecodedTxInput struct {
	Kind   string
	Raw    []byte
	Result DecodedInput
}

// DecodedTxOutput is one decoded transaction output.
type DecodedTxOutput struct {
	Kind   string
	Raw    []byte
	Result DecodedOutput
}

// DecodedTransaction is the ordered inputs and outputs of a committed
// mint transaction.
type DecodedTransaction struct {
	Txid    string
	Inputs  []DecodedTxInput
	Outputs []DecodedTxOutput
}

type txIOWire struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type transactionWire struct {
	Txid    string     `json:"txid"`
	Inputs  []txIOWire `json:"inputs"`
	Outputs []txIOWire `json:"outputs"`
}

// DecodeTransaction decodes a transaction's raw bytes into ordered,
// module-dispatched inputs and outputs. Unknown module kinds decode to an
// opaque result and never abort the decode.
func (r *Registry) DecodeTransaction(raw []byte, clientConfig []byte) (DecodedTransaction, error) {
	var w transactionWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return DecodedTransaction{}, err
	}

	tx := DecodedTransaction{
		Txid:    w.Txid,
		Inputs:  make([]DecodedTxInput, len(w.Inputs)),
		Outputs: make([]DecodedTxOutput, len(w.Outputs)),
	}

	for i, in := range w.Inputs {
		res, err := r.DecodeInput(in.Kind, in.Data, clientConfig)
		if err != nil {
			// A single input failing to parse its module-specific payload
			// does not abort the whole transaction decode; store it opaquely.
			res = DecodedInput{Kind: in.Kind}
		}
		tx.Inputs[i] = DecodedTxInput{Kind: in.Kind, Raw: in.Data, Result: res}
	}

	for i, out := range w.Outputs {
		res, err := r.DecodeOutput(out.Kind, out.Data, clientConfig)
		if err != nil {
			res = DecodedOutput{Kind: out.Kind}
		}
		tx.Outputs[i] = DecodedTxOutput{Kind: out.Kind, Raw: out.Data, Result: res}
	}

	return tx, nil
}

// Package decode maps module-kind strings to typed decoders for consensus
// items and transaction inputs/outputs. Decoding is pure (no I/O) and
// deterministic; an item whose kind has no registered decoder is stored
// opaquely and never aborts ingestion.
package decode

import "sync"

// InputDecoder decodes a module's raw transaction-input payload.
type InputDecoder interface {
	DecodeInput(raw []byte, clientConfig []byte) (DecodedInput, error)
}

// OutputDecoder decodes a module's raw transaction-output payload.
type OutputDecoder interface {
	DecodeOutput(raw []byte, clientConfig []byte) (DecodedOutput, error)
}

// ItemDecoder decodes a module's raw consensus-item payload that is not a Transaction.
type ItemDecoder interface {
	DecodeItem(raw []byte, clientConfig []byte) (DecodedItem, error)
}

// ModuleDecoder bundles the three decode surfaces a module kind may implement.
// A module need not implement every surface (e.g. mint has no ModuleConsensusItem payload).
type ModuleDecoder struct {
	Input  InputDecoder
	Output OutputDecoder
	Item   ItemDecoder
}

// DecodedInput is the module-specific typed result of decoding one input.
type DecodedInput struct {
	Kind       string
	AmountMsat *int64
	Wallet     *WalletInput
	LN         *LNInteraction
}

// DecodedOutput is the module-specific typed result of decoding one output.
type DecodedOutput struct {
	Kind       string
	AmountMsat *int64
	Wallet     *WalletOutput
	LN         *LNInteraction
}

// DecodedItem is the module-specific typed result of decoding a module consensus item.
type DecodedItem struct {
	Kind string
	LN   *LNGatewayRegistration
}

// Registry is the process-wide mapping from module kind to decoder.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]ModuleDecoder
}

// NewRegistry returns a registry pre-populated with the wallet, mint and ln
// builtin decoders.
func NewRegistry() *Registry {
	r := &Registry{modules: make(map[string]ModuleDecoder)}
	r.Register("wallet", ModuleDecoder{Input: walletDecoder{}, Output: walletDecoder{}})
	r.Register("mint", ModuleDecoder{Input: mintDecoder{}, Output: mintDecoder{}})
	r.Register("ln", ModuleDecoder{Input: lnDecoder{}, Output: lnDecoder{}, Item: lnDecoder{}})
	return r
}

// Register installs (or replaces) the decoder for a module kind.
func (r *Registry) Register(kind string, d ModuleDecoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[kind] = d
}

func (r *Registry) lookup(kind string) (ModuleDecoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.modules[kind]
	return d, ok
}

// DecodeInput decodes one transaction input. Unknown kinds decode to an
// opaque result carrying only the kind string — this is not an error.
func (r *Registry) DecodeInput(kind string, raw []byte, clientConfig []byte) (DecodedInput, error) {
	if d, ok := r.lookup(kind); ok && d.Input != nil {
		return d.Input.DecodeInput(raw, clientConfig)
	}
	return DecodedInput{Kind: kind}, nil
}

// DecodeOutput decodes one transaction output. Unknown kinds decode to an
// opaque result carrying only the kind string — this is not an error.
func (r *Registry) DecodeOutput(kind string, raw []byte, clientConfig []byte) (DecodedOutput, error) {
	if d, ok := r.lookup(kind); ok && d.Output != nil {
		return d.Output.DecodeOutput(raw, clientConfig)
	}
	return DecodedOutput{Kind: kind}, nil
}

// DecodeItem decodes one module consensus item. Unknown kinds decode to an
// opaque result carrying only the kind string — this is not an error.
func (r *Registry) DecodeItem(kind string, raw []byte, clientConfig []byte) (DecodedItem, error) {
	if d, ok := r.lookup(kind); ok && d.Item != nil {
		return d.Item.DecodeItem(raw, clientConfig)
	}
	return DecodedItem{Kind: kind}, nil
}

package decode

import "encoding/json"

// ItemEnvelope is one raw consensus item as it appears in a decoded
// session, before module-specific dispatch. Kind "Transaction" carries a
// nested transaction wire blob in Data; kind "BlockHeightVote" carries a
// {"heightVote": n} payload; everything else is a module consensus item
// dispatched through the registry's Item decoder (or stored opaquely).
type ItemEnvelope struct {
	Proposer int
	Kind     string
	Data     []byte
}

// DecodedSession is the ordered list of consensus items produced by
// decoding one session blob.
type DecodedSession struct {
	Items []ItemEnvelope
}

type sessionItemWire struct {
	Proposer int             `json:"proposer"`
	Kind     string          `json:"kind"`
	Data     json.RawMessage `json:"data"`
}

type sessionWire struct {
	Items []sessionItemWire `json:"items"`
}

// DecodeSession decodes a session's raw bytes into its ordered consensus
// items. This is pure (no I/O) and deterministic: the same bytes and
// client config always produce the same result.
func DecodeSession(raw []byte, clientConfig []byte) (DecodedSession, error) {
	var w sessionWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return DecodedSession{}, err
	}

	items := make([]ItemEnvelope, len(w.Items))
	for i, it := range w.Items {
		items[i] = ItemEnvelope{Proposer: it.Proposer, Kind: it.Kind, Data: it.Data}
	}
	return DecodedSession{Items: items}, nil
}

// BlockHeightVoteData is the decoded payload of a BlockHeightVote consensus item.
type BlockHeightVoteData struct {
	HeightVote int64
}

// DecodeBlockHeightVote decodes a BlockHeightVote item's data payload.
func DecodeBlockHeightVote(data []byte) (BlockHeightVoteData, error) {
	var w struct {
		HeightVote int64 `json:"heightVote"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return BlockHeightVoteData{}, err
	}
	return BlockHeightVoteData{HeightVote: w.HeightVote}, nil
}

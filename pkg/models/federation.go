// Package models holds the shared wire and domain structs passed between
// the decoder, store, ingestor, reconciler and query layers.
package models

import "time"

// FedId is the 32-byte digest identity of a federation.
type FedId [32]byte

func (f FedId) String() string {
	const hex = "0123456789abcdef"
	buf := make([]byte, len(f)*2)
	for i, b := range f {
		buf[i*2] = hex[b>>4]
		buf[i*2+1] = hex[b&0xf]
	}
	return string(buf)
}

// Guardian is one peer of a federation, reachable at a public URL.
type Guardian struct {
	PeerIndex int
	BaseURL   string
}

// GuardianSet is the ordered list of a federation's guardians.
type GuardianSet []Guardian

// Federation is the registered target of observation.
type Federation struct {
	FedId        FedId
	ClientConfig []byte
	Guardians    GuardianSet
	CreatedAt    time.Time
}

// Session is one consensus epoch.
type Session struct {
	FedId        FedId
	SessionIndex uint64
	Raw          []byte
	Items        []ConsensusItem
}

// ConsensusItem is one entry inside a session.
type ConsensusItem struct {
	FedId        FedId
	SessionIndex uint64
	ItemIndex    int
	Proposer     int
	Kind         string
	Data         []byte // kind-dependent JSON-shaped value
}

// Known consensus item kinds.
const (
	KindTransaction     = "Transaction"
	KindBlockHeightVote = "BlockHeightVote"
	KindModuleLN        = "ln"
)

// Transaction is a committed mint transaction.
type Transaction struct {
	FedId        FedId
	Txid         string
	SessionIndex uint64
	ItemIndex    int
	Raw          []byte
	Inputs       []TransactionInput
	Outputs      []TransactionOutput
}

// TransactionInput is one input of a mint transaction.
type TransactionInput struct {
	Index      int
	Kind       string
	AmountMsat *int64
	Raw        []byte
	Wallet     *WalletInputDetail
	LN         *LNInteractionDetail
}

// TransactionOutput is one output of a mint transaction.
type TransactionOutput struct {
	Index      int
	Kind       string
	AmountMsat *int64
	Raw        []byte
	Wallet     *WalletOutputDetail
	LN         *LNInteractionDetail
}

// WalletInputDetail denormalizes a kind=wallet peg-in input.
type WalletInputDetail struct {
	IsPegIn     bool
	OutPointTx  string
	OutPointVout uint32
	Address     string
	AmountSats  int64
}

// WalletOutputDetail denormalizes a kind=wallet peg-out output.
type WalletOutputDetail struct {
	IsPegOut     bool
	PayoutAddr   string
	AmountSats   int64
}

// LNInteractionKind enumerates the ways an ln input/output interacts with a contract.
type LNInteractionKind string

const (
	LNFund   LNInteractionKind = "fund"
	LNCancel LNInteractionKind = "cancel"
	LNOffer  LNInteractionKind = "offer"
)

// LNInteractionDetail denormalizes an ln input/output.
type LNInteractionDetail struct {
	ContractId string
	Kind       LNInteractionKind
}

// WalletPegIn is a user deposit observed on-chain and paired with a mint tx input.
type WalletPegIn struct {
	FedId       FedId
	Txid        string
	InputIndex  int
	OutPointTx  string
	OutPointVout uint32
	Address     string
	AmountSats  int64
}

// WalletWithdrawalAddress links a federation-side peg-out output to its external payout address.
type WalletWithdrawalAddress struct {
	FedId       FedId
	Txid        string
	OutputIndex int
	Address     string
	AmountSats  int64
}

// WalletWithdrawalTransaction is a reconstructed on-chain withdrawal settling one or more peg-outs.
type WalletWithdrawalTransaction struct {
	OnChainTxid string
	FedId       FedId
	FedTxid     *string
	Inputs      []WithdrawalInput
	Outputs     []WithdrawalOutput
	Signatures  []WithdrawalSignature
}

// WithdrawalInput references a previously-created outpoint spent by a withdrawal tx.
type WithdrawalInput struct {
	PrevOutPointTx   string
	PrevOutPointVout uint32
}

// WithdrawalOutput is an on-chain output of a withdrawal transaction.
type WithdrawalOutput struct {
	Vout       uint32
	Address    string
	AmountSats int64
	IsPayout   bool
}

// WithdrawalSignature is a per-guardian signature over a withdrawal transaction.
type WithdrawalSignature struct {
	GuardianPeerIndex int
	Signature         []byte
}

// GuardianHealth is a time-series liveness sample.
type GuardianHealth struct {
	FedId       FedId
	GuardianID  int
	Time        time.Time
	Status      []byte
	BlockHeight *int64
	LatencyMs   *int64
}

// BlockHeightVote is a proposer's block-height estimate carried in a consensus item.
type BlockHeightVote struct {
	FedId        FedId
	SessionIndex uint64
	ItemIndex    int
	Proposer     int
	HeightVote   int64
}

// LNGatewayRegistration is a denormalized extraction of a ModuleConsensusItem{kind=ln} payload.
type LNGatewayRegistration struct {
	FedId              FedId
	GatewayID          string
	NodePubkey         string
	APIEndpoint        string
	BaseFeeMsat        int64
	ProportionalFeePPM int64
	TTLSeconds         int64
	RegisteredAt       time.Time
	ExpiresAt          time.Time
	RouteHints         []byte
	SessionIndex       uint64
	ItemIndex          int
}

// Utxo is a row of the materialized utxos view: the federation's current on-chain reserves.
type Utxo struct {
	FedId        FedId
	OutPointTx   string
	OutPointVout uint32
	Address      string
	AmountSats   int64
}

// NostrVote is a verified rating event for a federation.
type NostrVote struct {
	EventID   string
	FedId     FedId
	Pubkey    string
	Stars     int
	Comment   string
	CreatedAt time.Time
	Raw       []byte
}

// NostrFederationAnnouncement is a verified invite-code announcement event.
type NostrFederationAnnouncement struct {
	EventID    string
	FedId      FedId
	InviteCode string
	Network    string
	Modules    string
	CreatedAt  time.Time
	Raw        []byte
}

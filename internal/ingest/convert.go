// Package ingest drives the per-federation session ingestion loop: fetch
// the next session from the guardians, decode it, and commit everything
// it carries in one transaction.
package ingest

import (
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/fedimint-observer/observer/internal/decode"
	"github.com/fedimint-observer/observer/pkg/models"
)

// convertSession turns one decoded session into the store's domain types:
// the session and its consensus items, any Transactions it carries (fully
// decoded and denormalized), and any ln gateway registrations. Transaction
// decode is always fanned out across min(transactions, NumCPU) worker
// goroutines, so busy sessions spread the JSON unmarshal/dispatch work
// across cores.
func convertSession(fedId models.FedId, sessionIndex uint64, raw []byte, decoded decode.DecodedSession, registry *decode.Registry, clientConfig []byte) (models.Session, []models.Transaction, []models.LNGatewayRegistration) {
	session := models.Session{
		FedId:        fedId,
		SessionIndex: sessionIndex,
		Raw:          raw,
		Items:        make([]models.ConsensusItem, len(decoded.Items)),
	}

	txIndexes := make([]int, 0, len(decoded.Items))
	var gateways []models.LNGatewayRegistration

	for i, item := range decoded.Items {
		session.Items[i] = models.ConsensusItem{
			FedId:        fedId,
			SessionIndex: sessionIndex,
			ItemIndex:    i,
			Proposer:     item.Proposer,
			Kind:         item.Kind,
			Data:         item.Data,
		}

		switch item.Kind {
		case models.KindTransaction:
			txIndexes = append(txIndexes, i)
		default:
			if d, err := registry.DecodeItem(item.Kind, item.Data, clientConfig); err == nil && d.LN != nil {
				gateways = append(gateways, models.LNGatewayRegistration{
					FedId:              fedId,
					GatewayID:          d.LN.GatewayID,
					NodePubkey:         d.LN.NodePubkey,
					APIEndpoint:        d.LN.APIEndpoint,
					BaseFeeMsat:        d.LN.BaseFeeMsat,
					ProportionalFeePPM: d.LN.ProportionalFeePPM,
					TTLSeconds:         d.LN.TTLSeconds,
					RegisteredAt:       d.LN.RegisteredAt,
					ExpiresAt:          d.LN.RegisteredAt.Add(time.Duration(d.LN.TTLSeconds) * time.Second),
					RouteHints:         d.LN.RouteHints,
					SessionIndex:       sessionIndex,
					ItemIndex:          i,
				})
			}
		}
	}

	txs := decodeTransactionsParallel(session, decoded, txIndexes, registry, clientConfig)
	return session, txs, gateways
}

// decodeTransactionsParallel fans the per-item transaction decode out
// across min(len(txIndexes), NumCPU) workers. Each worker owns a disjoint
// slice of indexes and writes only to its own output slots, so no locking
// is needed beyond the WaitGroup; a decode failure is logged and the
// transaction is dropped from this session's denormalized set rather than
// aborting the rest of the session.
func decodeTransactionsParallel(session models.Session, decoded decode.DecodedSession, txIndexes []int, registry *decode.Registry, clientConfig []byte) []models.Transaction {
	if len(txIndexes) == 0 {
		return nil
	}

	results := make([]*models.Transaction, len(txIndexes))
	workers := runtime.NumCPU()
	if workers > len(txIndexes) {
		workers = len(txIndexes)
	}
	if workers < 1 {
		workers = 1
	}

	chunk := (len(txIndexes) + workers - 1) / workers
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if start >= len(txIndexes) {
			break
		}
		if end > len(txIndexes) {
			end = len(txIndexes)
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for slot := start; slot < end; slot++ {
				itemIdx := txIndexes[slot]
				item := decoded.Items[itemIdx]

				decodedTx, err := registry.DecodeTransaction(item.Data, clientConfig)
				if err != nil {
					log.Printf("ingest: session %d item %d: decode transaction: %v (tx dropped from denormalized set, consensus item still stored)", session.SessionIndex, itemIdx, err)
					continue
				}

				results[slot] = toModelTransaction(session.FedId, session.SessionIndex, itemIdx, item.Data, decodedTx)
			}
		}(start, end)
	}
	wg.Wait()

	txs := make([]models.Transaction, 0, len(results))
	for _, t := range results {
		if t != nil {
			txs = append(txs, *t)
		}
	}
	return txs
}

func toModelTransaction(fedId models.FedId, sessionIndex uint64, itemIndex int, raw []byte, d decode.DecodedTransaction) *models.Transaction {
	t := &models.Transaction{
		FedId:        fedId,
		Txid:         d.Txid,
		SessionIndex: sessionIndex,
		ItemIndex:    itemIndex,
		Raw:          raw,
		Inputs:       make([]models.TransactionInput, len(d.Inputs)),
		Outputs:      make([]models.TransactionOutput, len(d.Outputs)),
	}

	for i, in := range d.Inputs {
		t.Inputs[i] = models.TransactionInput{
			Index:      i,
			Kind:       in.Kind,
			AmountMsat: in.Result.AmountMsat,
			Raw:        in.Raw,
		}
		if in.Result.Wallet != nil {
			t.Inputs[i].Wallet = &models.WalletInputDetail{
				IsPegIn:      in.Result.Wallet.IsPegIn,
				OutPointTx:   in.Result.Wallet.OutPointTx,
				OutPointVout: in.Result.Wallet.OutPointVout,
				Address:      in.Result.Wallet.Address,
				AmountSats:   in.Result.Wallet.AmountSats,
			}
		}
		if in.Result.LN != nil {
			t.Inputs[i].LN = &models.LNInteractionDetail{
				ContractId: in.Result.LN.ContractId,
				Kind:       models.LNInteractionKind(in.Result.LN.Kind),
			}
		}
	}

	for i, out := range d.Outputs {
		t.Outputs[i] = models.TransactionOutput{
			Index:      i,
			Kind:       out.Kind,
			AmountMsat: out.Result.AmountMsat,
			Raw:        out.Raw,
		}
		if out.Result.Wallet != nil {
			t.Outputs[i].Wallet = &models.WalletOutputDetail{
				IsPegOut:   out.Result.Wallet.IsPegOut,
				PayoutAddr: out.Result.Wallet.PayoutAddr,
				AmountSats: out.Result.Wallet.AmountSats,
			}
		}
		if out.Result.LN != nil {
			t.Outputs[i].LN = &models.LNInteractionDetail{
				ContractId: out.Result.LN.ContractId,
				Kind:       models.LNInteractionKind(out.Result.LN.Kind),
			}
		}
	}

	return t
}

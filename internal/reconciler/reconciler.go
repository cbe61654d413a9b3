// Package reconciler matches a federation's pending peg-out withdrawal
// addresses against on-chain spends, reconstructing the settling
// transaction and classifying its outputs as payouts or change.
package reconciler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fedimint-observer/observer/internal/explorer"
	"github.com/fedimint-observer/observer/internal/store"
	"github.com/fedimint-observer/observer/pkg/models"
)

// Config configures one federation's reconciliation loop.
type Config struct {
	FedId        models.FedId
	PollInterval time.Duration
}

// Reconciler periodically looks up on-chain spends for outstanding
// withdrawal addresses and commits the settling transaction once found.
type Reconciler struct {
	cfg      Config
	explorer *explorer.Client
	store    *store.Store
}

// New builds a Reconciler for one federation.
func New(cfg Config, exp *explorer.Client, st *store.Store) *Reconciler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	return &Reconciler{cfg: cfg, explorer: exp, store: st}
}

// Run polls on a ticker until ctx is cancelled, reconciling every
// outstanding withdrawal address on each tick.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	if err := r.reconcileOnce(ctx); err != nil {
		log.Printf("reconciler: federation %s: %v", r.cfg.FedId, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.reconcileOnce(ctx); err != nil {
				log.Printf("reconciler: federation %s: %v", r.cfg.FedId, err)
			}
		}
	}
}

func (r *Reconciler) reconcileOnce(ctx context.Context) error {
	pending, err := r.store.PendingWithdrawalAddresses(ctx, r.cfg.FedId)
	if err != nil {
		return fmt.Errorf("reconciler: list pending addresses: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	reconciledAny := false
	for _, addr := range pending {
		if err := r.reconcileAddress(ctx, addr); err != nil {
			log.Printf("reconciler: federation %s: address %s: %v", r.cfg.FedId, addr.Address, err)
			continue
		}
		reconciledAny = true
	}

	if reconciledAny {
		if err := r.store.RefreshMaterialized(ctx, "utxos"); err != nil {
			return fmt.Errorf("reconciler: refresh utxos: %w", err)
		}
	}
	return nil
}

// reconcileAddress walks the federation's current reserve UTXO set (up to
// 10000 rows) and asks the explorer for each outpoint's spending
// transaction; the first spend with an output paying this address is
// committed as the settling withdrawal. Fedimint settles peg-outs by
// spending federation-controlled reserve UTXOs directly to the payout
// address, so the address is looked up as a spending destination via the
// reserve UTXO set.
func (r *Reconciler) reconcileAddress(ctx context.Context, addr models.WalletWithdrawalAddress) error {
	reserves, err := r.store.Utxos(ctx, r.cfg.FedId, 10000, 0)
	if err != nil {
		return fmt.Errorf("load reserve utxos: %w", err)
	}

	for _, u := range reserves {
		spend, err := r.explorer.GetSpendingTx(ctx, explorer.OutPoint{Txid: u.OutPointTx, Vout: u.OutPointVout})
		if err != nil {
			return fmt.Errorf("check spend of %s:%d: %w", u.OutPointTx, u.OutPointVout, err)
		}
		if spend == nil || !spendsAddress(spend, addr.Address) {
			continue
		}
		return r.commitWithdrawal(ctx, spend, u, addr)
	}
	return nil
}

func spendsAddress(tx *explorer.OnChainTx, address string) bool {
	for _, out := range tx.Outputs {
		if out.Address == address {
			return true
		}
	}
	return false
}

func (r *Reconciler) commitWithdrawal(ctx context.Context, spend *explorer.OnChainTx, spentReserve models.Utxo, addr models.WalletWithdrawalAddress) error {
	w := models.WalletWithdrawalTransaction{
		OnChainTxid: spend.Txid,
		FedId:       r.cfg.FedId,
		FedTxid:     &addr.Txid,
	}

	for _, in := range spend.Inputs {
		w.Inputs = append(w.Inputs, models.WithdrawalInput{
			PrevOutPointTx:   in.PrevTxid,
			PrevOutPointVout: in.PrevVout,
		})
	}
	for i, out := range spend.Outputs {
		w.Outputs = append(w.Outputs, models.WithdrawalOutput{
			Vout:       uint32(i),
			Address:    out.Address,
			AmountSats: out.AmountSats,
			IsPayout:   out.Address == addr.Address,
		})
	}

	log.Printf("reconciler: federation %s: withdrawal %s settled, total value %s", r.cfg.FedId, w.OnChainTxid, spend.TotalOutputValue())
	return r.store.ReconcileWithdrawal(ctx, w)
}

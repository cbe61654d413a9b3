package store

import (
	"context"
	"fmt"

	"github.com/fedimint-observer/observer/pkg/models"
)

// ReconcileWithdrawal records an on-chain withdrawal transaction that
// settles one or more of a federation's peg-out outputs, along with its
// inputs, outputs and guardian signatures. It is idempotent: a second
// call with the same OnChainTxid is a unique-violation on the primary
// key and is treated as already-reconciled.
func (s *Store) ReconcileWithdrawal(ctx context.Context, w models.WalletWithdrawalTransaction) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin reconcile withdrawal: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO wallet_withdrawal_transactions (on_chain_txid, fed_id, fed_txid) VALUES ($1, $2, $3)`,
		w.OnChainTxid, w.FedId[:], w.FedTxid,
	)
	if isUniqueViolation(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: insert withdrawal tx: %w", err)
	}

	for idx, in := range w.Inputs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO wallet_withdrawal_transaction_inputs (on_chain_txid, input_index, prev_out_point_tx, prev_out_point_vout)
			 VALUES ($1, $2, $3, $4)`,
			w.OnChainTxid, idx, in.PrevOutPointTx, in.PrevOutPointVout,
		); err != nil {
			return fmt.Errorf("store: insert withdrawal input: %w", err)
		}
	}

	for _, out := range w.Outputs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO wallet_withdrawal_transaction_outputs (on_chain_txid, vout, address, amount_sats, is_payout)
			 VALUES ($1, $2, $3, $4, $5)`,
			w.OnChainTxid, out.Vout, out.Address, out.AmountSats, out.IsPayout,
		); err != nil {
			return fmt.Errorf("store: insert withdrawal output: %w", err)
		}
	}

	for _, sig := range w.Signatures {
		if _, err := tx.Exec(ctx,
			`INSERT INTO wallet_withdrawal_signatures (on_chain_txid, guardian_peer_index, signature)
			 VALUES ($1, $2, $3)`,
			w.OnChainTxid, sig.GuardianPeerIndex, sig.Signature,
		); err != nil {
			return fmt.Errorf("store: insert withdrawal signature: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// PendingWithdrawalAddresses returns withdrawal addresses that have not
// yet been matched to an on-chain spending transaction, for the
// reconciler to poll the block explorer for.
func (s *Store) PendingWithdrawalAddresses(ctx context.Context, fedId models.FedId) ([]models.WalletWithdrawalAddress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT wa.fed_id, wa.txid, wa.output_index, wa.address, wa.amount_sats
		FROM wallet_withdrawal_addresses wa
		LEFT JOIN wallet_withdrawal_transaction_outputs o
			ON o.address = wa.address AND o.is_payout = true
		WHERE wa.fed_id = $1 AND o.on_chain_txid IS NULL`, fedId[:])
	if err != nil {
		return nil, fmt.Errorf("store: pending withdrawal addresses: %w", err)
	}
	defer rows.Close()

	var out []models.WalletWithdrawalAddress
	for rows.Next() {
		var a models.WalletWithdrawalAddress
		var fedIdBytes []byte
		if err := rows.Scan(&fedIdBytes, &a.Txid, &a.OutputIndex, &a.Address, &a.AmountSats); err != nil {
			return nil, fmt.Errorf("store: scan pending withdrawal address: %w", err)
		}
		copy(a.FedId[:], fedIdBytes)
		out = append(out, a)
	}
	return out, nil
}

// PegInByOutPoint looks up the peg-in (and its owning address) for a
// given on-chain outpoint. The reconciler does not call it.
func (s *Store) PegInByOutPoint(ctx context.Context, fedId models.FedId, txid string, vout uint32) (*models.WalletPegIn, error) {
	var p models.WalletPegIn
	var fedIdBytes []byte
	err := s.pool.QueryRow(ctx, `
		SELECT fed_id, txid, input_index, out_point_tx, out_point_vout, address, amount_sats
		FROM wallet_peg_ins WHERE fed_id = $1 AND out_point_tx = $2 AND out_point_vout = $3`,
		fedId[:], txid, vout,
	).Scan(&fedIdBytes, &p.Txid, &p.InputIndex, &p.OutPointTx, &p.OutPointVout, &p.Address, &p.AmountSats)
	if err != nil {
		return nil, err
	}
	copy(p.FedId[:], fedIdBytes)
	return &p, nil
}

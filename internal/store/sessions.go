package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fedimint-observer/observer/internal/decode"
	"github.com/fedimint-observer/observer/pkg/models"
)

// MaxStoredSession returns the highest session_index stored for a
// federation and whether any session has been stored yet. The ingestor
// resumes from this value + 1.
func (s *Store) MaxStoredSession(ctx context.Context, fedId models.FedId) (uint64, bool, error) {
	var max *int64
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(session_index) FROM sessions WHERE fed_id = $1`, fedId[:],
	).Scan(&max)
	if err != nil {
		return 0, false, fmt.Errorf("store: max stored session: %w", err)
	}
	if max == nil {
		return 0, false, nil
	}
	return uint64(*max), true, nil
}

// SessionExists reports whether a session has already been committed.
// The ingestor does not call it: duplicate sessions are handled by
// InsertSession's unique-violation check.
func (s *Store) SessionExists(ctx context.Context, fedId models.FedId, sessionIndex uint64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE fed_id = $1 AND session_index = $2)`,
		fedId[:], sessionIndex,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: session exists: %w", err)
	}
	return exists, nil
}

// InsertSession commits one fully-decoded session and every row derived
// from it in a single transaction: the session itself, its consensus
// items, any transactions they carry plus their input/output
// denormalizations, peg-ins, withdrawal addresses, ln contracts and
// gateway registrations, and block-height votes. A unique-violation on
// the session's primary key is treated as already-ingested, not an
// error, so a crash-and-resume never double-applies a session it
// already committed.
func (s *Store) InsertSession(ctx context.Context, session models.Session, txs []models.Transaction, gateways []models.LNGatewayRegistration) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin insert session: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO sessions (fed_id, session_index, session_blob) VALUES ($1, $2, $3)`,
		session.FedId[:], session.SessionIndex, session.Raw,
	)
	if isUniqueViolation(err) {
		// Another process already committed this session; nothing left to do.
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: insert session: %w", err)
	}

	for _, item := range session.Items {
		if _, err := tx.Exec(ctx,
			`INSERT INTO consensus_items (fed_id, session_index, item_index, proposer, kind, data)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			item.FedId[:], item.SessionIndex, item.ItemIndex, item.Proposer, item.Kind, item.Data,
		); err != nil {
			return fmt.Errorf("store: insert consensus item: %w", err)
		}

		if item.Kind == models.KindBlockHeightVote {
			if vote, err := decode.DecodeBlockHeightVote(item.Data); err == nil {
				if _, err := tx.Exec(ctx,
					`INSERT INTO block_height_votes (fed_id, session_index, item_index, proposer, height_vote)
					 VALUES ($1, $2, $3, $4, $5)`,
					item.FedId[:], item.SessionIndex, item.ItemIndex, item.Proposer, vote.HeightVote,
				); err != nil {
					return fmt.Errorf("store: insert block height vote: %w", err)
				}
			}
		}
	}

	for _, t := range txs {
		if err := insertTransaction(ctx, tx, t); err != nil {
			return err
		}
	}

	for _, g := range gateways {
		if _, err := tx.Exec(ctx,
			`INSERT INTO ln_gateway_registrations
			 (fed_id, gateway_id, session_index, item_index, node_pubkey, api_endpoint,
			  base_fee_msat, proportional_fee_ppm, ttl_seconds, registered_at, expires_at, route_hints)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 ON CONFLICT DO NOTHING`,
			g.FedId[:], g.GatewayID, g.SessionIndex, g.ItemIndex, g.NodePubkey, g.APIEndpoint,
			g.BaseFeeMsat, g.ProportionalFeePPM, g.TTLSeconds, g.RegisteredAt, g.ExpiresAt, g.RouteHints,
		); err != nil {
			return fmt.Errorf("store: insert ln gateway registration: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t models.Transaction) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO transactions (fed_id, txid, session_index, item_index, raw) VALUES ($1, $2, $3, $4, $5)`,
		t.FedId[:], t.Txid, t.SessionIndex, t.ItemIndex, t.Raw,
	); err != nil {
		return fmt.Errorf("store: insert transaction %s: %w", t.Txid, err)
	}

	for _, in := range t.Inputs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO transaction_input_details (fed_id, txid, input_index, kind, raw) VALUES ($1, $2, $3, $4, $5)`,
			t.FedId[:], t.Txid, in.Index, in.Kind, in.Raw,
		); err != nil {
			return fmt.Errorf("store: insert input detail %s/%d: %w", t.Txid, in.Index, err)
		}

		var contractId, interaction *string
		if in.LN != nil {
			contractId = &in.LN.ContractId
			k := string(in.LN.Kind)
			interaction = &k
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO transaction_inputs (fed_id, txid, input_index, kind, amount_msat, ln_contract_id, ln_interaction)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.FedId[:], t.Txid, in.Index, in.Kind, in.AmountMsat, contractId, interaction,
		); err != nil {
			return fmt.Errorf("store: insert input %s/%d: %w", t.Txid, in.Index, err)
		}

		if in.Wallet != nil && in.Wallet.IsPegIn {
			if _, err := tx.Exec(ctx,
				`INSERT INTO wallet_peg_ins (fed_id, txid, input_index, out_point_tx, out_point_vout, address, amount_sats)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				t.FedId[:], t.Txid, in.Index, in.Wallet.OutPointTx, in.Wallet.OutPointVout, in.Wallet.Address, in.Wallet.AmountSats,
			); err != nil {
				return fmt.Errorf("store: insert peg-in %s/%d: %w", t.Txid, in.Index, err)
			}
		}

		if in.LN != nil {
			if err := insertLNContractIfNew(ctx, tx, t.FedId, in.LN.ContractId, t.Txid, in.Index, in.AmountMsat); err != nil {
				return err
			}
		}
	}

	for _, out := range t.Outputs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO transaction_output_details (fed_id, txid, output_index, kind, raw) VALUES ($1, $2, $3, $4, $5)`,
			t.FedId[:], t.Txid, out.Index, out.Kind, out.Raw,
		); err != nil {
			return fmt.Errorf("store: insert output detail %s/%d: %w", t.Txid, out.Index, err)
		}

		var contractId, interaction *string
		if out.LN != nil {
			contractId = &out.LN.ContractId
			k := string(out.LN.Kind)
			interaction = &k
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO transaction_outputs (fed_id, txid, output_index, kind, amount_msat, ln_contract_id, ln_interaction)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.FedId[:], t.Txid, out.Index, out.Kind, out.AmountMsat, contractId, interaction,
		); err != nil {
			return fmt.Errorf("store: insert output %s/%d: %w", t.Txid, out.Index, err)
		}

		if out.Wallet != nil && out.Wallet.IsPegOut {
			if _, err := tx.Exec(ctx,
				`INSERT INTO wallet_withdrawal_addresses (fed_id, txid, output_index, address, amount_sats)
				 VALUES ($1, $2, $3, $4, $5)`,
				t.FedId[:], t.Txid, out.Index, out.Wallet.PayoutAddr, out.Wallet.AmountSats,
			); err != nil {
				return fmt.Errorf("store: insert withdrawal address %s/%d: %w", t.Txid, out.Index, err)
			}
		}

		if out.LN != nil {
			if err := insertLNContractIfNew(ctx, tx, t.FedId, out.LN.ContractId, t.Txid, out.Index, out.AmountMsat); err != nil {
				return err
			}
		}
	}

	return nil
}

func insertLNContractIfNew(ctx context.Context, tx pgx.Tx, fedId models.FedId, contractId, txid string, index int, amountMsat *int64) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO ln_contracts (fed_id, contract_id, created_txid, created_index, amount_msat)
		 VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING`,
		fedId[:], contractId, txid, index, amountMsat,
	)
	if err != nil {
		return fmt.Errorf("store: insert ln contract %s: %w", contractId, err)
	}
	return nil
}

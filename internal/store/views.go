package store

import (
	"context"
	"fmt"
)

// refreshableViews allow-lists the materialized view names that may be
// refreshed, the same guard the teacher used for its window-column
// allow-list: view names are never interpolated from free-form input.
var refreshableViews = map[string]bool{
	"session_times":          true,
	"utxos":                  true,
	"ln_current_gateways":    true,
	"nostr_vote_aggregates":  true,
}

// RefreshMaterialized refreshes one materialized view concurrently
// (requires the view's unique index, present on every view this engine
// defines) so readers never see a blocked or empty table mid-refresh.
func (s *Store) RefreshMaterialized(ctx context.Context, view string) error {
	if !refreshableViews[view] {
		return fmt.Errorf("store: %q is not a refreshable view", view)
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf("REFRESH MATERIALIZED VIEW CONCURRENTLY %s", view))
	if err != nil {
		return fmt.Errorf("store: refresh %s: %w", view, err)
	}
	return nil
}

// RefreshAll refreshes every materialized view, used on a debounced
// schedule after a batch of sessions and after a withdrawal reconciles.
func (s *Store) RefreshAll(ctx context.Context) error {
	for view := range refreshableViews {
		if err := s.RefreshMaterialized(ctx, view); err != nil {
			return err
		}
	}
	return nil
}

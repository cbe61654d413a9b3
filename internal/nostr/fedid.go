package nostr

import (
	"encoding/hex"
	"fmt"

	"github.com/fedimint-observer/observer/pkg/models"
)

func parseFedId(s string) (models.FedId, error) {
	var fedId models.FedId
	b, err := hex.DecodeString(s)
	if err != nil {
		return fedId, fmt.Errorf("invalid federation id %q: %w", s, err)
	}
	if len(b) != len(fedId) {
		return fedId, fmt.Errorf("federation id %q has wrong length %d", s, len(b))
	}
	copy(fedId[:], b)
	return fedId, nil
}

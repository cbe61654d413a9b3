package nostr

import "testing"

func TestEventVerifyRejectsMismatchedID(t *testing.T) {
	ev := Event{
		ID:        "0000000000000000000000000000000000000000000000000000000000000",
		Pubkey:    "abcd",
		CreatedAt: 1700000000,
		Kind:      KindFederationRating,
		Tags:      nil,
		Content:   "{}",
		Sig:       "deadbeef",
	}
	if err := ev.Verify(); err == nil {
		t.Error("expected verification to fail for a bogus id/pubkey pair")
	}
}

func TestEventTag(t *testing.T) {
	ev := Event{Tags: [][]string{{"d", "fedabc123"}, {"other", "x"}}}
	v, ok := ev.Tag("d")
	if !ok || v != "fedabc123" {
		t.Errorf("Tag(\"d\") = %q, %v; want \"fedabc123\", true", v, ok)
	}
	if _, ok := ev.Tag("missing"); ok {
		t.Error("expected Tag(\"missing\") to report not found")
	}
}

func TestParseFedId(t *testing.T) {
	hex64 := "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"
	fedId, err := parseFedId(hex64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fedId[0] != 0x01 || fedId[31] != 0x20 {
		t.Errorf("unexpected decoded fed id: %x", fedId)
	}

	if _, err := parseFedId("nothex"); err == nil {
		t.Error("expected error for non-hex input")
	}
	if _, err := parseFedId("aabb"); err == nil {
		t.Error("expected error for wrong-length input")
	}
}

package solverclient

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

// parseOrderUid decodes a "0x"-prefixed 112-hex-digit OrderUid.
func parseOrderUid(s string, out *types.OrderUid) error {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("parse order uid %q: %w", s, err)
	}
	if len(b) != len(out) {
		return fmt.Errorf("parse order uid %q: expected %d bytes, got %d", s, len(out), len(b))
	}
	copy(out[:], b)
	return nil
}

package recorder

import (
	"encoding/json"
	"fmt"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

// priceEntry/clearingPriceEntry give map[Token]Amount a stable JSON shape —
// Go's map iteration order is random and Token/Amount aren't valid JSON
// object keys on their own, so both are flattened to an array of pairs
// before marshaling.
type priceEntry struct {
	Token string `json:"token"`
	Price string `json:"price"`
}

func marshalPrices(prices map[types.Token]types.Amount) (string, error) {
	entries := make([]priceEntry, 0, len(prices))
	for tok, price := range prices {
		entries = append(entries, priceEntry{Token: tokenHex(tok), Price: price.String()})
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshal price vector: %w", err)
	}
	return string(b), nil
}

func unmarshalPrices(s string) (map[types.Token]types.Amount, error) {
	if s == "" {
		return map[types.Token]types.Amount{}, nil
	}
	var entries []priceEntry
	if err := json.Unmarshal([]byte(s), &entries); err != nil {
		return nil, fmt.Errorf("unmarshal price vector: %w", err)
	}
	out := make(map[types.Token]types.Amount, len(entries))
	for _, e := range entries {
		tok, err := tokenFromHex(e.Token)
		if err != nil {
			return nil, fmt.Errorf("unmarshal price vector token %q: %w", e.Token, err)
		}
		amt, err := types.ParseAmount(e.Price)
		if err != nil {
			return nil, fmt.Errorf("unmarshal price vector amount %q: %w", e.Price, err)
		}
		out[tok] = amt
	}
	return out, nil
}

func marshalOrderUIDs(uids []types.OrderUid) (string, error) {
	hexes := make([]string, len(uids))
	for i, u := range uids {
		hexes[i] = orderUidHex(u)
	}
	b, err := json.Marshal(hexes)
	if err != nil {
		return "", fmt.Errorf("marshal order uids: %w", err)
	}
	return string(b), nil
}

func unmarshalOrderUIDs(s string) ([]types.OrderUid, error) {
	if s == "" {
		return nil, nil
	}
	var hexes []string
	if err := json.Unmarshal([]byte(s), &hexes); err != nil {
		return nil, fmt.Errorf("unmarshal order uids: %w", err)
	}
	out := make([]types.OrderUid, len(hexes))
	for i, h := range hexes {
		uid, err := orderUidFromHex(h)
		if err != nil {
			return nil, fmt.Errorf("unmarshal order uid %q: %w", h, err)
		}
		out[i] = uid
	}
	return out, nil
}

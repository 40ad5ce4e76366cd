// Package types defines the shared data model of the coordination core: the
// vocabulary used by the order-filter pipeline, the arbitrator, the
// settlement builder, the verifier, and the recorder. It has no dependency
// on any other internal package, so it can be imported by every layer.
package types

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Token is a 20-byte contract address, compared and hashed as bytes.
type Token [20]byte

// NativeToken is the sentinel the protocol uses to mean "the chain's native
// asset" in an order's buy_token field, distinct from the wrapped-native
// ERC-20 contract.
var NativeToken = Token{0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE}

// TokenFromAddress converts a go-ethereum address into a Token.
func TokenFromAddress(addr common.Address) Token {
	var t Token
	copy(t[:], addr[:])
	return t
}

// Address converts a Token back into a go-ethereum address for RPC calls.
func (t Token) Address() common.Address {
	return common.Address(t)
}

// Cmp compares two tokens byte-for-byte. Used to give the token vector
// (§4.4) and fairness pair keys a total, deterministic order.
func (t Token) Cmp(other Token) int {
	for i := range t {
		if t[i] != other[i] {
			if t[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (t Token) String() string {
	return "0x" + hex.EncodeToString(t[:])
}

// ParseToken parses a "0x..."-prefixed 40-hex-digit address.
func ParseToken(s string) (Token, error) {
	addr, err := parseAddress(s)
	if err != nil {
		return Token{}, fmt.Errorf("parse token %q: %w", s, err)
	}
	return TokenFromAddress(addr), nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("not a valid hex address")
	}
	return common.HexToAddress(s), nil
}

// TokenPair identifies a directional exchange: sell this token for that one.
// Used as the fairness/compatibility key in the arbitrator (§4.3, §9).
type TokenPair struct {
	Sell Token
	Buy  Token
}

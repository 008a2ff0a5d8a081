package wallet

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/silentcashu/swallet/crypto"
)

// Address is a parsed Cashu silent-payment address:
// mintUrl:scanPubHex:spendPubHex, with 66-char compressed keys.
type Address struct {
	MintURL  string
	ScanPub  *secp256k1.PublicKey
	SpendPub *secp256k1.PublicKey
}

// ParseAddress parses a CashuAddress, splitting on the last two colons so a
// mint URL containing colons (scheme, port) still parses correctly.
func ParseAddress(s string) (*Address, error) {
	lastColon := strings.LastIndex(s, ":")
	if lastColon < 0 {
		return nil, fmt.Errorf("%w: missing separator", ErrAddressParse)
	}
	spendHex := s[lastColon+1:]
	rest := s[:lastColon]

	secondColon := strings.LastIndex(rest, ":")
	if secondColon < 0 {
		return nil, fmt.Errorf("%w: missing separator", ErrAddressParse)
	}
	scanHex := rest[secondColon+1:]
	mintURL := rest[:secondColon]

	scanPub, err := parseCompressedHex(scanHex)
	if err != nil {
		return nil, fmt.Errorf("%w: scan key: %v", ErrAddressParse, err)
	}
	spendPub, err := parseCompressedHex(spendHex)
	if err != nil {
		return nil, fmt.Errorf("%w: spend key: %v", ErrAddressParse, err)
	}

	return &Address{MintURL: mintURL, ScanPub: scanPub, SpendPub: spendPub}, nil
}

func parseCompressedHex(s string) (*secp256k1.PublicKey, error) {
	if len(s) != 66 {
		return nil, fmt.Errorf("expected 66 hex characters, got %d", len(s))
	}
	if s[:2] != "02" && s[:2] != "03" {
		return nil, fmt.Errorf("invalid prefix %q", s[:2])
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return crypto.Decompress(b)
}

// Format renders mintURL and the two keys as a CashuAddress string.
func Format(mintURL string, scanPub, spendPub *secp256k1.PublicKey) string {
	return fmt.Sprintf("%s:%s:%s", mintURL,
		hex.EncodeToString(scanPub.SerializeCompressed()),
		hex.EncodeToString(spendPub.SerializeCompressed()))
}

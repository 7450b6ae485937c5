package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/xdr"
)

// FormatAsset renders a Horizon balance line the way asset keys are logged: XLM or CODE:ISSUER.
func FormatAsset(b horizon.Balance) string {
	if b.Asset.Type == "native" {
		return "XLM"
	}
	if b.Asset.Issuer == "" {
		return b.Asset.Code
	}
	return fmt.Sprintf("%s:%s", b.Asset.Code, b.Asset.Issuer)
}

// IsCreditLine reports whether a balance line is a classic trust-line (not native, not a pool share).
func IsCreditLine(b horizon.Balance) bool {
	return b.Asset.Type == "credit_alphanum4" || b.Asset.Type == "credit_alphanum12"
}

// ParseAmount parses a Horizon decimal string. Empty or malformed values read as zero.
func ParseAmount(val string) decimal.Decimal {
	val = strings.TrimSpace(val)
	if val == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Int128ToDecimal scales a contract i128 amount by the token's decimals without going through float64.
func Int128ToDecimal(parts xdr.Int128Parts, decimals uint32) decimal.Decimal {
	return decimal.NewFromBigInt(int128PartsToBigInt(parts), -int32(decimals))
}

func int128PartsToBigInt(parts xdr.Int128Parts) *big.Int {
	hi := big.NewInt(int64(parts.Hi))
	lo := new(big.Int)
	lo.SetUint64(uint64(parts.Lo))
	hi.Lsh(hi, 64)
	hi.Add(hi, lo)
	return hi
}

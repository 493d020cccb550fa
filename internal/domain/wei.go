package domain

import (
	"fmt"
	"math/big"
	"strings"
)

const etherDecimals = 18

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(etherDecimals), nil)

// ParseEther converts a decimal ETH string ("0.05", "1", ".5") to wei
// exactly. No floating point is involved, so the wei value round-trips
// through FormatEther without drift.
func ParseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("parse ether: empty string")
	}
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > etherDecimals {
		return nil, fmt.Errorf("parse ether: %q has more than %d fractional digits", s, etherDecimals)
	}
	frac += strings.Repeat("0", etherDecimals-len(frac))

	w, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return nil, fmt.Errorf("parse ether: invalid integer part %q", whole)
	}
	f, ok := new(big.Int).SetString(frac, 10)
	if !ok {
		return nil, fmt.Errorf("parse ether: invalid fractional part %q", frac)
	}
	wei := new(big.Int).Add(new(big.Int).Mul(w, weiPerEther), f)
	if neg {
		wei.Neg(wei)
	}
	return wei, nil
}

// FormatEther converts wei to a decimal ETH string with trailing zeros
// trimmed. The output parses back to the identical wei value.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	sign := ""
	v := new(big.Int).Set(wei)
	if v.Sign() < 0 {
		sign = "-"
		v.Neg(v)
	}
	q, r := new(big.Int).QuoRem(v, weiPerEther, new(big.Int))
	if r.Sign() == 0 {
		return sign + q.String()
	}
	frac := fmt.Sprintf("%018s", r.String())
	frac = strings.TrimRight(frac, "0")
	return sign + q.String() + "." + frac
}

// RepairPriceWei returns a canonical integer wei string for a listing whose
// priceWei field may be missing or corrupt (older records stored objects or
// empty strings there). It falls back to deriving wei from the decimal
// price field.
func RepairPriceWei(priceWei, price string) (string, error) {
	pw := strings.TrimSpace(priceWei)
	if pw != "" {
		if v, ok := new(big.Int).SetString(pw, 10); ok {
			return v.String(), nil
		}
	}
	v, err := ParseEther(price)
	if err != nil {
		return "", fmt.Errorf("repair priceWei: %w", ErrCorruptLedgerRecord)
	}
	return v.String(), nil
}

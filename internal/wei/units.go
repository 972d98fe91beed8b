// Package wei converts between decimal amounts and base-unit integers.
// All arithmetic is exact: amounts are parsed as decimal strings and scaled by
// powers of ten, so no floating point rounding is ever involved.
package wei

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
	"github.com/thep2p/go-eth-devkit/internal/model"
)

// Unit is a named denomination of the native currency.
type Unit string

const (
	Wei    Unit = "wei"
	Kwei   Unit = "kwei"
	Mwei   Unit = "mwei"
	Gwei   Unit = "gwei"
	Szabo  Unit = "szabo"
	Finney Unit = "finney"
	Ether  Unit = "ether"
)

// decimals maps every unit to its power of ten relative to wei.
var decimals = map[Unit]int{
	Wei:    0,
	Kwei:   3,
	Mwei:   6,
	Gwei:   9,
	Szabo:  12,
	Finney: 15,
	Ether:  18,
}

// Decimals returns the number of decimal places of the unit.
func Decimals(u Unit) (int, error) {
	d, ok := decimals[Unit(strings.ToLower(string(u)))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", model.ErrInvalidUnit, u)
	}
	return d, nil
}

// Multiplier returns 10^decimals for the unit.
func Multiplier(u Unit) (*big.Int, error) {
	d, err := Decimals(u)
	if err != nil {
		return nil, err
	}
	return pow10(d), nil
}

// ToWei converts a decimal amount expressed in unit into wei.
// The amount may carry a fractional part no longer than the unit's decimals;
// anything that would need rounding is rejected with ErrInvalidAmount.
func ToWei(amount string, unit Unit) (*big.Int, error) {
	d, err := Decimals(unit)
	if err != nil {
		return nil, err
	}

	s := strings.TrimSpace(amount)
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidAmount, amount)
	}
	if !digitsOnly(intPart) || !digitsOnly(fracPart) {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidAmount, amount)
	}

	fracPart = strings.TrimRight(fracPart, "0")
	if len(fracPart) > d {
		return nil, fmt.Errorf("%w: %q has more than %d decimals for %s", model.ErrInvalidAmount, amount, d, unit)
	}

	digits := intPart + fracPart + strings.Repeat("0", d-len(fracPart))
	if digits == "" {
		digits = "0"
	}
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidAmount, amount)
	}
	if neg {
		v.Neg(v)
	}
	return v, nil
}

// FromWei renders a wei amount in unit as a decimal string without trailing zeros.
func FromWei(v *big.Int, unit Unit) (string, error) {
	if v == nil {
		return "", fmt.Errorf("%w: nil value", model.ErrInvalidAmount)
	}
	d, err := Decimals(unit)
	if err != nil {
		return "", err
	}

	abs := new(big.Int).Abs(v)
	q, r := new(big.Int).QuoRem(abs, pow10(d), new(big.Int))

	out := q.String()
	if r.Sign() != 0 {
		frac := r.String()
		frac = strings.Repeat("0", d-len(frac)) + frac
		out += "." + strings.TrimRight(frac, "0")
	}
	if v.Sign() < 0 {
		out = "-" + out
	}
	return out, nil
}

// MustEther converts whole ether into wei. Intended for constants and fixtures.
func MustEther(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(params.Ether))
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func digitsOnly(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

package cmn

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var ErrBadAmount = errors.New("invalid amount")

var printer = message.NewPrinter(language.English)

// ParseUnits converts a human decimal string ("12.5") into base units.
func ParseUnits(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil, ErrBadAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadAmount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: negative", ErrBadAmount)
	}

	d = d.Shift(int32(decimals))
	if !d.IsInteger() {
		return nil, fmt.Errorf("%w: more than %d decimals", ErrBadAmount, decimals)
	}
	return d.BigInt(), nil
}

// FormatUnits renders base units as a plain decimal string without grouping.
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// FormatAmount renders base units grouped, with at most two fraction digits.
func FormatAmount(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	f := decimal.NewFromBigInt(amount, -int32(decimals)).InexactFloat64()
	return FormatNumber(f)
}

func FormatNumber(f float64) string {
	return printer.Sprint(number.Decimal(f, number.MaxFractionDigits(2)))
}

func FormatPercent(f float64) string {
	return fmt.Sprintf("%.2f%%", f)
}

// ShortHash keeps the "0x" prefix plus six leading and six trailing hex digits.
func ShortHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:8] + "..." + h[len(h)-6:]
}

// HashPrefix is the ten character prefix used in status lines.
func HashPrefix(h string) string {
	if len(h) <= 10 {
		return h
	}
	return h[:10]
}

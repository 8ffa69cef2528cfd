// Package finance holds the money rules of a purchase: final cost, points
// value, profit and the sale month label. All arithmetic runs on decimals and
// results are rounded to cents before they leave the package.
package finance

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"resaleledger/backend/internal/domain"
)

var (
	hundred   = decimal.NewFromInt(100)
	maxPoints = decimal.NewFromInt(math.MaxInt64)
)

type CostInputs struct {
	PaidValue       float64
	Shipping        float64
	AdvanceDiscount float64
	Cashback        float64
	Points          int64
	Thousand        float64
}

func CostInputsOf(p domain.Purchase) CostInputs {
	return CostInputs{
		PaidValue:       p.PaidValue,
		Shipping:        p.Shipping,
		AdvanceDiscount: p.AdvanceDiscount,
		Cashback:        p.Cashback,
		Points:          p.Points,
		Thousand:        p.Thousand,
	}
}

func (c CostInputs) Validate() error {
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"paid_value", c.PaidValue},
		{"shipping", c.Shipping},
		{"advance_discount", c.AdvanceDiscount},
		{"cashback", c.Cashback},
	} {
		if err := ValidateAmount(field.name, field.value); err != nil {
			return err
		}
	}
	if err := ValidateRate("thousand", c.Thousand); err != nil {
		return err
	}
	if c.Points < 0 {
		return fmt.Errorf("points must not be negative")
	}
	return nil
}

const (
	moneyPlaces = 2
	ratePlaces  = 4
)

// ValidateAmount rejects NaN, infinities, negative values and fractions of
// a cent. Stored amounts have two decimal places.
func ValidateAmount(name string, value float64) error {
	return validateScaled(name, value, moneyPlaces)
}

// ValidateRate is ValidateAmount for conversion rates, which keep four
// decimal places.
func ValidateRate(name string, value float64) error {
	return validateScaled(name, value, ratePlaces)
}

func validateScaled(name string, value float64, places int32) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%s must be a finite number", name)
	}
	if value < 0 {
		return fmt.Errorf("%s must not be negative", name)
	}
	if d := decimal.NewFromFloat(value); !d.Equal(d.Round(places)) {
		return fmt.Errorf("%s must have at most %d decimal places", name, places)
	}
	return nil
}

// PointsValue converts points to money using the points-per-unit rate.
// A zero rate yields zero.
func PointsValue(points int64, thousand float64) decimal.Decimal {
	rate := Decimal(thousand)
	if rate.Sign() <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(points).Div(rate)
}

// FinalCost is paid + shipping - advance discount - cashback - points value.
// The result may be negative.
func FinalCost(in CostInputs) float64 {
	cost := Decimal(in.PaidValue).
		Add(Decimal(in.Shipping)).
		Sub(Decimal(in.AdvanceDiscount)).
		Sub(Decimal(in.Cashback)).
		Sub(PointsValue(in.Points, in.Thousand))
	return Round(cost)
}

// Profit is sold value minus final cost, losses included.
func Profit(soldValue float64, finalCost float64) float64 {
	return Round(Decimal(soldValue).Sub(Decimal(finalCost)))
}

// EarnedPoints derives points from the program's points-per-currency rate.
func EarnedPoints(paidValue float64, pointsPerReal float64) (int64, error) {
	if pointsPerReal <= 0 || paidValue <= 0 {
		return 0, nil
	}
	earned := Decimal(paidValue).Mul(Decimal(pointsPerReal)).Floor()
	if earned.GreaterThan(maxPoints) {
		return 0, fmt.Errorf("earned points exceed %s", maxPoints)
	}
	return earned.IntPart(), nil
}

// Percent returns part/whole*100, or zero when whole is zero.
func Percent(part decimal.Decimal, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

// Mean returns sum/count, or zero for an empty group.
func Mean(sum decimal.Decimal, count int) decimal.Decimal {
	if count <= 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(count)))
}

func Decimal(value float64) decimal.Decimal {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(value)
}

func Round(value decimal.Decimal) float64 {
	return value.Round(2).InexactFloat64()
}

var monthNames = map[string][12]string{
	"pt-BR": {"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"},
	"en":    {"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
}

// MonthLabel renders a short month/year label such as "out/2026".
// Unknown locales fall back to pt-BR.
func MonthLabel(t time.Time, locale string) string {
	names, ok := monthNames[normalizeLocale(locale)]
	if !ok {
		names = monthNames["pt-BR"]
	}
	return fmt.Sprintf("%s/%d", names[t.Month()-1], t.Year())
}

func normalizeLocale(locale string) string {
	locale = strings.TrimSpace(locale)
	switch strings.ToLower(locale) {
	case "", "pt", "pt-br", "pt_br":
		return "pt-BR"
	case "en", "en-us", "en_us", "en-gb":
		return "en"
	}
	return locale
}

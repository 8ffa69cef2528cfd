package analytics

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"resaleledger/backend/internal/domain"
	"resaleledger/backend/internal/finance"
)

const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"
	PeriodCustom  = "custom"

	DefaultTopN = 5
	dateLayout  = "2006-01-02"
)

var ErrInvalidPeriod = errors.New("invalid report period")

// Period is a half-open [Start, End) range.
type Period struct {
	Name  string
	Start time.Time
	End   time.Time
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// ResolvePeriod turns a named period or explicit YYYY-MM-DD bounds into a
// concrete range in now's location. Explicit bounds win over the name and the
// end date is inclusive.
func ResolvePeriod(name string, start string, end string, now time.Time) (Period, error) {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start != "" || end != "" {
		if start == "" {
			return Period{}, fmt.Errorf("%w: start is required with end", ErrInvalidPeriod)
		}
		from, err := time.ParseInLocation(dateLayout, start, loc)
		if err != nil {
			return Period{}, fmt.Errorf("%w: start must be YYYY-MM-DD", ErrInvalidPeriod)
		}
		to := today
		if end != "" {
			to, err = time.ParseInLocation(dateLayout, end, loc)
			if err != nil {
				return Period{}, fmt.Errorf("%w: end must be YYYY-MM-DD", ErrInvalidPeriod)
			}
		}
		if to.Before(from) {
			return Period{}, fmt.Errorf("%w: start is after end", ErrInvalidPeriod)
		}
		return Period{Name: PeriodCustom, Start: from, End: to.AddDate(0, 0, 1)}, nil
	}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case PeriodDaily:
		return Period{Name: PeriodDaily, Start: today, End: today.AddDate(0, 0, 1)}, nil
	case PeriodWeekly:
		return Period{Name: PeriodWeekly, Start: today.AddDate(0, 0, -6), End: today.AddDate(0, 0, 1)}, nil
	case "", PeriodMonthly:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return Period{Name: PeriodMonthly, Start: first, End: first.AddDate(0, 1, 0)}, nil
	case PeriodYearly:
		first := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)
		return Period{Name: PeriodYearly, Start: first, End: first.AddDate(1, 0, 0)}, nil
	}
	return Period{}, fmt.Errorf("%w: unknown period %q", ErrInvalidPeriod, name)
}

type productTally struct {
	sales   int
	revenue decimal.Decimal
	profit  decimal.Decimal
}

type customerTally struct {
	sales   int
	revenue decimal.Decimal
}

type clubTally struct {
	purchases  int
	points     int64
	investment decimal.Decimal
}

// BuildReport rolls purchases up over the period. Stock value and the points
// backlog always cover every purchase regardless of the period.
func BuildReport(purchases []domain.Purchase, productNames map[string]string, period Period, now time.Time, top int) domain.Report {
	if top < 1 {
		top = DefaultTopN
	}

	report := domain.Report{
		Period: period.Name,
		Start:  period.Start,
		End:    period.End,
	}

	investment, cashback, discounts, discountPct := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	revenue, profit := decimal.Zero, decimal.Zero
	products := make(map[string]*productTally)
	customers := make(map[string]*customerTally)
	clubs := make(map[string]*clubTally)

	for _, p := range purchases {
		if !p.PointsReceived {
			report.PointsToReceive += p.Points
		}

		if period.Contains(p.PurchaseDate) {
			report.TotalPurchases++
			paid := finance.Decimal(p.PaidValue)
			investment = investment.Add(paid)
			cashback = cashback.Add(finance.Decimal(p.Cashback))
			discounts = discounts.Add(finance.Decimal(p.AdvanceDiscount))
			discountPct = discountPct.Add(finance.Percent(finance.Decimal(p.AdvanceDiscount), paid))
			report.PointsEarned += p.Points

			if club := strings.TrimSpace(p.ClubAndStore); club != "" {
				tally, ok := clubs[club]
				if !ok {
					tally = &clubTally{}
					clubs[club] = tally
				}
				tally.purchases++
				tally.points += p.Points
				tally.investment = tally.investment.Add(paid)
			}
		}

		if p.Status != domain.PurchaseStatusSold || p.SaleDate == nil || !period.Contains(*p.SaleDate) {
			continue
		}
		report.TotalSales++
		sold := decimal.Zero
		if p.SoldValue != nil {
			sold = finance.Decimal(*p.SoldValue)
		}
		gain := decimal.Zero
		if p.Profit != nil {
			gain = finance.Decimal(*p.Profit)
		}
		revenue = revenue.Add(sold)
		profit = profit.Add(gain)

		tally, ok := products[p.ProductID]
		if !ok {
			tally = &productTally{}
			products[p.ProductID] = tally
		}
		tally.sales++
		tally.revenue = tally.revenue.Add(sold)
		tally.profit = tally.profit.Add(gain)

		if customer := strings.TrimSpace(p.Customer); customer != "" {
			ct, ok := customers[customer]
			if !ok {
				ct = &customerTally{}
				customers[customer] = ct
			}
			ct.sales++
			ct.revenue = ct.revenue.Add(sold)
		}
	}

	report.TotalInvestment = finance.Round(investment)
	report.TotalCashback = finance.Round(cashback)
	report.TotalDiscounts = finance.Round(discounts)
	report.AverageDiscount = finance.Round(finance.Mean(discountPct, report.TotalPurchases))
	report.TotalRevenue = finance.Round(revenue)
	report.TotalProfit = finance.Round(profit)
	report.ProfitMargin = finance.Round(finance.Percent(profit, revenue))
	report.StockValue = finance.Round(StockValue(ComputeStock(purchases, now)))

	report.TopProducts = topProducts(products, productNames, top)
	report.TopCustomers = topCustomers(customers, top)
	report.TopClubs = topClubs(clubs, top)
	return report
}

func topProducts(tallies map[string]*productTally, names map[string]string, top int) []domain.ProductBreakdown {
	out := make([]domain.ProductBreakdown, 0, len(tallies))
	for id, tally := range tallies {
		out = append(out, domain.ProductBreakdown{
			ProductID:   id,
			ProductName: names[id],
			Sales:       tally.sales,
			Revenue:     finance.Round(tally.revenue),
			Profit:      finance.Round(tally.profit),
		})
	}
	slices.SortFunc(out, func(a, b domain.ProductBreakdown) int {
		if a.Sales != b.Sales {
			return b.Sales - a.Sales
		}
		if a.Revenue != b.Revenue {
			return compareDesc(a.Revenue, b.Revenue)
		}
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return truncate(out, top)
}

func topCustomers(tallies map[string]*customerTally, top int) []domain.CustomerBreakdown {
	out := make([]domain.CustomerBreakdown, 0, len(tallies))
	for name, tally := range tallies {
		out = append(out, domain.CustomerBreakdown{
			Customer: name,
			Sales:    tally.sales,
			Revenue:  finance.Round(tally.revenue),
		})
	}
	slices.SortFunc(out, func(a, b domain.CustomerBreakdown) int {
		if a.Revenue != b.Revenue {
			return compareDesc(a.Revenue, b.Revenue)
		}
		if a.Sales != b.Sales {
			return b.Sales - a.Sales
		}
		return strings.Compare(a.Customer, b.Customer)
	})
	return truncate(out, top)
}

func topClubs(tallies map[string]*clubTally, top int) []domain.ClubBreakdown {
	out := make([]domain.ClubBreakdown, 0, len(tallies))
	for name, tally := range tallies {
		out = append(out, domain.ClubBreakdown{
			ClubAndStore: name,
			Purchases:    tally.purchases,
			Points:       tally.points,
			Investment:   finance.Round(tally.investment),
		})
	}
	slices.SortFunc(out, func(a, b domain.ClubBreakdown) int {
		if a.Purchases != b.Purchases {
			return b.Purchases - a.Purchases
		}
		if a.Points != b.Points {
			if a.Points > b.Points {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ClubAndStore, b.ClubAndStore)
	})
	return truncate(out, top)
}

func compareDesc(a float64, b float64) int {
	if a > b {
		return -1
	}
	if a < b {
		return 1
	}
	return 0
}

func truncate[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

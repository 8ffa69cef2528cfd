package httpapi

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"resaleledger/backend/internal/domain"
)

func (a *API) handleStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	stock, err := a.service.Stock(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stock)
}

func (a *API) handlePoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	summary, err := a.service.Points(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleReference(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, a.service.Reference())
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	date := r.URL.Query().Get("date")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	logs, err := a.service.ListAuditLogs(r.Context(), date, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	top, _ := strconv.Atoi(strings.TrimSpace(query.Get("top")))
	report, err := a.service.Report(r.Context(), domain.ReportRequest{
		Period: query.Get("period"),
		Start:  query.Get("start"),
		End:    query.Get("end"),
		Top:    top,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("report-%s-%s", report.Period, report.Start.Format("2006-01-02"))
	switch strings.ToLower(strings.TrimSpace(query.Get("format"))) {
	case "csv":
		body, err := reportToCSV(report)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".csv"))
		_, _ = w.Write(body)
	case "html", "pdf":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(reportToPrintableHTML(report)))
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func reportToCSV(report domain.Report) ([]byte, error) {
	money := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	rows := [][]string{
		{"section", "key", "value"},
		{"summary", "period", report.Period},
		{"summary", "start", report.Start.Format("2006-01-02")},
		{"summary", "end", report.End.AddDate(0, 0, -1).Format("2006-01-02")},
		{"summary", "total_purchases", strconv.Itoa(report.TotalPurchases)},
		{"summary", "total_investment", money(report.TotalInvestment)},
		{"summary", "total_sales", strconv.Itoa(report.TotalSales)},
		{"summary", "total_revenue", money(report.TotalRevenue)},
		{"summary", "total_profit", money(report.TotalProfit)},
		{"summary", "profit_margin", money(report.ProfitMargin)},
		{"summary", "stock_value", money(report.StockValue)},
		{"summary", "points_earned", strconv.FormatInt(report.PointsEarned, 10)},
		{"summary", "points_to_receive", strconv.FormatInt(report.PointsToReceive, 10)},
		{"summary", "total_cashback", money(report.TotalCashback)},
		{"summary", "total_discounts", money(report.TotalDiscounts)},
		{"summary", "average_discount", money(report.AverageDiscount)},
	}
	for _, product := range report.TopProducts {
		name := product.ProductName
		if name == "" {
			name = product.ProductID
		}
		rows = append(rows,
			[]string{"product", name + "_sales", strconv.Itoa(product.Sales)},
			[]string{"product", name + "_revenue", money(product.Revenue)},
			[]string{"product", name + "_profit", money(product.Profit)},
		)
	}
	for _, customer := range report.TopCustomers {
		rows = append(rows,
			[]string{"customer", customer.Customer + "_sales", strconv.Itoa(customer.Sales)},
			[]string{"customer", customer.Customer + "_revenue", money(customer.Revenue)},
		)
	}
	for _, club := range report.TopClubs {
		rows = append(rows,
			[]string{"club", club.ClubAndStore + "_purchases", strconv.Itoa(club.Purchases)},
			[]string{"club", club.ClubAndStore + "_points", strconv.FormatInt(club.Points, 10)},
			[]string{"club", club.ClubAndStore + "_investment", money(club.Investment)},
		)
	}

	for _, row := range rows {
		row[1] = neutralizeFormula(row[1])
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// neutralizeFormula keeps spreadsheet apps from evaluating user-supplied
// labels such as customer names as formulas.
func neutralizeFormula(cell string) string {
	if cell != "" && strings.ContainsRune("=+-@\t\r", rune(cell[0])) {
		return "'" + cell
	}
	return cell
}

// reportHTMLTmpl renders the printable report. html/template escapes
// customer and product names.
var reportHTMLTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"money": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
	"day":   func(r domain.Report) string { return r.Start.Format("2006-01-02") },
	"until": func(r domain.Report) string { return r.End.AddDate(0, 0, -1).Format("2006-01-02") },
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Report {{day .}} to {{until .}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    h2, h3 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Report {{.Period}}: {{day .}} to {{until .}}</h2>
  <p>Purchases: {{.TotalPurchases}} | Investment: {{money .TotalInvestment}} | Cashback: {{money .TotalCashback}} | Discounts: {{money .TotalDiscounts}} ({{money .AverageDiscount}}% avg)</p>
  <p>Sales: {{.TotalSales}} | Revenue: {{money .TotalRevenue}} | Profit: {{money .TotalProfit}} | Margin: {{money .ProfitMargin}}%</p>
  <p>Stock value: {{money .StockValue}} | Points earned: {{.PointsEarned}} | Points to receive: {{.PointsToReceive}}</p>

  <h3>Top Products</h3>
  <table>
    <thead><tr><th>Product</th><th>Sales</th><th>Revenue</th><th>Profit</th></tr></thead>
    <tbody>{{range .TopProducts}}<tr><td>{{if .ProductName}}{{.ProductName}}{{else}}{{.ProductID}}{{end}}</td><td style="text-align:right;">{{.Sales}}</td><td style="text-align:right;">{{money .Revenue}}</td><td style="text-align:right;">{{money .Profit}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Top Customers</h3>
  <table>
    <thead><tr><th>Customer</th><th>Sales</th><th>Revenue</th></tr></thead>
    <tbody>{{range .TopCustomers}}<tr><td>{{.Customer}}</td><td style="text-align:right;">{{.Sales}}</td><td style="text-align:right;">{{money .Revenue}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Top Clubs and Stores</h3>
  <table>
    <thead><tr><th>Club / Store</th><th>Purchases</th><th>Points</th><th>Investment</th></tr></thead>
    <tbody>{{range .TopClubs}}<tr><td>{{.ClubAndStore}}</td><td style="text-align:right;">{{.Purchases}}</td><td style="text-align:right;">{{.Points}}</td><td style="text-align:right;">{{money .Investment}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

func reportToPrintableHTML(report domain.Report) string {
	var buf bytes.Buffer
	if err := reportHTMLTmpl.Execute(&buf, report); err != nil {
		return "<!doctype html><html><body><p>Report rendering error.</p></body></html>"
	}
	return buf.String()
}

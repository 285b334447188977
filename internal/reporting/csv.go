// Package reporting renders backtest results and order lists for export.
package reporting

import (
	"fmt"
	"math"
	"strings"

	"github.com/w1r2p1/moonshot/internal/backtest"
	"github.com/w1r2p1/moonshot/internal/domain"
)

const dateLayout = "2006-01-02"

// RenderResultsCSV renders backtest results in long form, one row per
// (field, date, instrument). NaN cells render as empty values.
func RenderResultsCSV(r *backtest.Results) string {
	var sb strings.Builder

	sb.WriteString("Field,Date,Instrument,Value\n")

	fields := r.Fields()
	for _, name := range r.FieldNames() {
		f, ok := fields[name]
		if !ok || f == nil {
			continue
		}
		dates := f.Dates()
		instruments := f.Instruments()
		for t, date := range dates {
			for i, instrumentID := range instruments {
				sb.WriteString(fmt.Sprintf("%s,%s,%s,%s\n",
					name,
					date.Format(dateLayout),
					instrumentID,
					formatValue(f.At(t, i)),
				))
			}
		}
	}

	return sb.String()
}

// RenderOrdersCSV renders an order list, one row per order.
func RenderOrdersCSV(orders []*domain.Order) string {
	var sb strings.Builder

	sb.WriteString("Instrument,Account,Action,OrderRef,TotalQuantity,Exchange,OrderType,Tif,LmtPrice\n")

	for _, o := range orders {
		limitPrice := ""
		if o.LimitPrice != nil {
			limitPrice = formatValue(*o.LimitPrice)
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%d,%s,%s,%s,%s\n",
			o.InstrumentID,
			o.Account,
			o.Action,
			o.OrderRef,
			o.TotalQuantity,
			o.Exchange,
			o.OrderType,
			o.Tif,
			limitPrice,
		))
	}

	return sb.String()
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return formatFloat(v)
}

// formatFloat trims trailing zeros so round quantities render without a
// decimal tail.
func formatFloat(v float64) string {
	s := fmt.Sprintf("%.6f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

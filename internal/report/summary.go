package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PrintScore writes the total score line:
//
//	Total Score: 3.000 / 5.000 (60.000%)
func (r *Report) PrintScore(w io.Writer) {
	percent := decimal.Zero
	if !r.Possible.IsZero() {
		percent = r.Score.Mul(hundred).Div(r.Possible)
	}
	fmt.Fprintf(w, "Total Score: %s / %s (%s%%)\n",
		r.Score.StringFixed(3), r.Possible.StringFixed(3), percent.StringFixed(3))
}

// PrintSummary writes one row per report entry with its score.
func (r *Report) PrintSummary(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"name", "score", "max_score"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, t := range r.Tests {
		table.Append([]string{t.Name, formatPoints(t.Score), formatPoints(t.MaxScore)})
	}
	table.Render()
}

func formatPoints(p *Points) string {
	if p == nil {
		return ""
	}
	return p.String()
}

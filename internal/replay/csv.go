package replay

import (
	"encoding/csv"
	"os"
	"strconv"

	"bidding-arena/internal/model"
)

// WriteResultsCSV writes one row per (impression, strategy) pair. This is the
// flat artifact for spreadsheet-style inspection of a replay.
func WriteResultsCSV(path string, results []model.RunResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"sequence",
		"timestamp",
		"floor_price",
		"winner",
		"clearing_price",
		"strategy",
		"bid",
		"no_bid",
		"fault",
		"won",
		"budget_remaining",
		"total_spend",
		"impressions_won",
		"status",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		states := map[string]model.StrategyState{}
		for _, st := range r.Strategies {
			states[st.Name] = st
		}
		for _, b := range r.Bids {
			st := states[b.Strategy]
			row := []string{
				strconv.Itoa(r.Sequence),
				strconv.FormatInt(r.Timestamp, 10),
				fmtFloat(r.FloorPrice),
				r.Outcome.Winner,
				fmtFloat(r.Outcome.ClearingPrice),
				b.Strategy,
				fmtFloat(b.Amount),
				strconv.FormatBool(b.NoBid),
				b.Fault,
				strconv.FormatBool(b.Won),
				fmtFloat(st.BudgetRemaining),
				fmtFloat(st.TotalSpend),
				strconv.Itoa(st.ImpressionsWon),
				string(st.Status),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}

	return w.Error()
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

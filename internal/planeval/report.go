package planeval

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
)

// Rank orders results by score desc, then name asc. Failed candidates sort last.
func Rank(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Name < b.Name
	})
}

// WriteReport prints the ranked table. top limits the scored rows; 0 prints all.
func WriteReport(w io.Writer, r *Report, top int) error {
	t := r.Targets
	mode := "local"
	if r.Remote {
		mode = "remote"
	}
	if _, err := fmt.Fprintf(w, "Targets (%s): %d kcal, protein %dg, carbs %dg, fat %dg, budget %.2f\n\n",
		mode, t.Calories, t.ProteinG, t.CarbsG, t.FatG, t.MaxBudget); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPLAN\tSCORE\tKCAL\tPROTEIN\tPRICE\tBUDGET\tNOTE")
	rank := 0
	for _, res := range r.Results {
		if res.Err != nil {
			fmt.Fprintf(tw, "-\t%s\t-\t-\t-\t-\t-\terror: %v\n", res.Name, res.Err)
			continue
		}
		rank++
		if top > 0 && rank > top {
			continue
		}
		note := ""
		switch {
		case res.Duplicate:
			note = "duplicate"
		case res.Summary.OverBudget():
			note = "over budget"
		}
		fmt.Fprintf(tw, "%d\t%s\t%.1f\t%.0f\t%.0f\t%.2f\t%.0f%%\t%s\n",
			rank, res.Name, res.Score, res.Summary.TotalCalories, res.Summary.TotalProtein,
			res.Summary.TotalPrice, res.Summary.BudgetUsage*percent, note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%d plans, %d failed, %s\n", len(r.Results), r.Failed, r.Duration.Round(durationPrecision))
	return err
}

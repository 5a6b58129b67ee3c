package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cognicore/kwmine/pkg/kwmine/classify"
	"github.com/cognicore/kwmine/pkg/kwmine/store/sqlite"
)

var (
	runsDB       string
	runsLimit    int
	showDB       string
	showCategory string
	showJSON     bool
	showTop      int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored mining runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := sqlite.OpenExisting(ctx, runsDB)
		if err != nil {
			return fmt.Errorf("open store %s: %w", runsDB, err)
		}
		defer st.Close()

		runs, err := st.ListRuns(ctx, runsLimit)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tCREATED\tRECORDS\tSIZES\tOPPORTUNITIES\tNEGATIVES")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%v\t%d\t%d\n",
				r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Records, r.Sizes, r.Opportunities, r.Negatives)
		}
		return tw.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show RUN_ID",
	Short: "Print the recommendations of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := sqlite.OpenExisting(ctx, showDB)
		if err != nil {
			return fmt.Errorf("open store %s: %w", showDB, err)
		}
		defer st.Close()

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get run %s: %w", args[0], err)
		}

		var cats []classify.Category
		switch strings.ToLower(showCategory) {
		case "opportunities":
			cats = []classify.Category{classify.KeywordOpportunity}
		case "negatives":
			cats = []classify.Category{classify.NegativeCandidate}
		case "all", "":
			cats = []classify.Category{classify.KeywordOpportunity, classify.NegativeCandidate}
		default:
			return fmt.Errorf("unknown list %q (want opportunities, negatives or all)", showCategory)
		}

		out := cmd.OutOrStdout()
		lists := make(map[string][]recommendationJSON, len(cats))
		if !showJSON {
			fmt.Fprintf(out, "run %s: %d records, sizes %v\n", run.ID, run.Records, run.Sizes)
		}
		for _, cat := range cats {
			stored, err := st.Recommendations(ctx, run.ID, cat)
			if err != nil {
				return fmt.Errorf("load %s: %w", cat, err)
			}
			recs := make([]classify.Recommendation, len(stored))
			for i, s := range stored {
				recs[i] = s.Recommendation
			}
			if showJSON {
				lists[string(cat)] = toJSON(recs)
				continue
			}
			writeList(out, string(cat), recs, showTop)
		}
		if showJSON {
			return writeJSON(out, lists)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsDB, "db", "", "SQLite database written by analyze --db")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list (0 for all)")

	showCmd.Flags().StringVar(&showDB, "db", "", "SQLite database written by analyze --db")
	showCmd.Flags().StringVar(&showCategory, "category", "all", "opportunities, negatives or all")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print JSON")
	showCmd.Flags().IntVar(&showTop, "top", 0, "rows per list (0 for all)")

	_ = runsCmd.MarkFlagRequired("db")
	_ = showCmd.MarkFlagRequired("db")
}

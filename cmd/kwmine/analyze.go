package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/kwmine/internal/feed"
	"github.com/cognicore/kwmine/pkg/kwmine"
	"github.com/cognicore/kwmine/pkg/kwmine/classify"
	"github.com/cognicore/kwmine/pkg/kwmine/config"
	"github.com/cognicore/kwmine/pkg/kwmine/export"
	"github.com/cognicore/kwmine/pkg/kwmine/store"
	"github.com/cognicore/kwmine/pkg/kwmine/store/sqlite"
)

type analyzeFlags struct {
	input     string
	format    string
	config    string
	stoplist  string
	db        string
	xlsx      string
	campaigns []string
	limit     int
	jsonOut   bool
	top       int
}

var af analyzeFlags

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run n-gram mining over a search-query report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd, af)
	},
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&af.input, "input", "", "search-query report (.jsonl, .csv or .xlsx)")
	f.StringVar(&af.format, "format", "", "input format override (jsonl, csv, xlsx)")
	f.StringVar(&af.config, "config", "", "YAML config file (defaults when empty)")
	f.StringVar(&af.stoplist, "stoplist", "", "YAML stoplist file with a terms list")
	f.StringVar(&af.db, "db", "", "SQLite database to store the run in")
	f.StringVar(&af.xlsx, "xlsx", "", "write the run to this workbook")
	f.StringSliceVar(&af.campaigns, "campaign", nil, "only use records of these campaigns")
	f.IntVar(&af.limit, "limit", 0, "stop reading the report after this many records")
	f.BoolVar(&af.jsonOut, "json", false, "print the recommendations as JSON")
	f.IntVar(&af.top, "top", 20, "rows per list in the text summary")
	_ = analyzeCmd.MarkFlagRequired("input")
}

func runAnalyze(cmd *cobra.Command, fl analyzeFlags) error {
	ctx := cmd.Context()
	log := zap.L()

	loader := config.Loader{ConfigPath: fl.config, StoplistPath: fl.stoplist}
	comp, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load configs: %w", err)
	}
	log.Debug("config loaded",
		zap.Ints("ngram_sizes", comp.Config.Sizes()),
		zap.Int("stop_words", comp.Stoplist.Len()),
	)

	src := &feed.Source{
		Path:      fl.input,
		Format:    feed.Format(fl.format),
		Campaigns: fl.campaigns,
		Limit:     fl.limit,
		Logger:    log,
	}

	var sinks []kwmine.Sink
	if fl.db != "" {
		st, err := sqlite.OpenSQLite(ctx, fl.db)
		if err != nil {
			return fmt.Errorf("open store %s: %w", fl.db, err)
		}
		defer st.Close()
		sinks = append(sinks, store.AsSink(st))
	}
	if fl.xlsx != "" {
		sinks = append(sinks, export.XLSXSink{Path: fl.xlsx})
	}

	miner := kwmine.New(kwmine.Options{Config: *comp.Config, Logger: log})
	res, err := miner.Process(ctx, src, sinks...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if fl.jsonOut {
		return writeJSON(out, newReport(res))
	}
	writeSummary(out, res, fl.top)
	return nil
}

type report struct {
	RunID         string               `json:"run_id"`
	Records       int                  `json:"records"`
	Sizes         []int                `json:"ngram_sizes"`
	Distinct      map[int]int          `json:"distinct_ngrams"`
	Opportunities []recommendationJSON `json:"opportunities"`
	Negatives     []recommendationJSON `json:"negatives"`
}

type recommendationJSON struct {
	NGram           string  `json:"ngram"`
	Size            int     `json:"size"`
	Reason          string  `json:"reason"`
	QueryCount      int64   `json:"query_count"`
	Impressions     int64   `json:"impressions"`
	Clicks          int64   `json:"clicks"`
	Cost            string  `json:"cost"`
	Conversions     string  `json:"conversions"`
	ConversionValue string  `json:"conversion_value"`
	CTR             float64 `json:"ctr"`
	CPC             float64 `json:"cpc"`
	ConvRate        float64 `json:"conv_rate"`
	CPA             float64 `json:"cpa"`
	ROAS            float64 `json:"roas"`
}

func newReport(res kwmine.Result) report {
	rep := report{
		RunID:         res.RunID,
		Records:       res.Records,
		Sizes:         res.Sizes,
		Distinct:      make(map[int]int, len(res.Tables)),
		Opportunities: toJSON(res.Opportunities),
		Negatives:     toJSON(res.Negatives),
	}
	for n, table := range res.Tables {
		rep.Distinct[n] = len(table)
	}
	return rep
}

func toJSON(recs []classify.Recommendation) []recommendationJSON {
	out := make([]recommendationJSON, 0, len(recs))
	for _, r := range recs {
		out = append(out, recommendationJSON{
			NGram:           r.Text,
			Size:            r.Size,
			Reason:          r.Reason,
			QueryCount:      r.QueryCount,
			Impressions:     r.Impressions,
			Clicks:          r.Clicks,
			Cost:            r.Cost.String(),
			Conversions:     r.Conversions.String(),
			ConversionValue: r.ConversionValue.String(),
			CTR:             r.CTR,
			CPC:             r.CPC,
			ConvRate:        r.ConvRate,
			CPA:             r.CPA,
			ROAS:            r.ROAS,
		})
	}
	return out
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSummary(w io.Writer, res kwmine.Result, top int) {
	fmt.Fprintf(w, "run %s: %d records, sizes %v\n", res.RunID, res.Records, res.Sizes)
	writeList(w, "Keyword opportunities (by conversions)", res.Opportunities, top)
	writeList(w, "Negative candidates (by cost)", res.Negatives, top)
}

func writeList(w io.Writer, title string, recs []classify.Recommendation, top int) {
	fmt.Fprintf(w, "\n%s: %d\n", title, len(recs))
	if len(recs) == 0 {
		return
	}
	if top > 0 && len(recs) > top {
		recs = recs[:top]
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNGRAM\tN\tREASON\tIMPR\tCLICKS\tCOST\tCONV\tCTR\tCPA")
	for i, r := range recs {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%d\t%d\t%s\t%s\t%.4f\t%.2f\n",
			i+1, r.Text, r.Size, r.Reason, r.Impressions, r.Clicks,
			r.Cost.StringFixed(2), r.Conversions.String(), r.CTR, r.CPA)
	}
	tw.Flush()
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/serp-scraper/internal/display"
	"github.com/sells-group/serp-scraper/internal/export"
	"github.com/sells-group/serp-scraper/internal/job"
	"github.com/sells-group/serp-scraper/internal/model"
)

const defaultDescription = "I'm looking for websites focused on fantasy gaming specifically for PC players. " +
	"These sites should cover a range of topics, including in-depth game reviews, strategy guides, " +
	"character builds, and tips for popular fantasy games like The Witcher, Skyrim, and Final Fantasy. " +
	"I'm also interested in websites that feature news updates on upcoming fantasy game releases, new mods, " +
	"and expansion packs. Ideally, the sites would include forums or community sections where players can discuss " +
	"game tactics, share gameplay experiences, and connect with other fans. Additionally, any websites that offer " +
	"downloadable content or mods for fantasy games on PC would be useful. I'd prefer English-language websites " +
	"that are frequently updated with the latest information."

var (
	scrapeKeywords        int
	scrapeResults         int
	scrapeDescription     string
	scrapeDescriptionFile string
	scrapeCSV             string
	scrapeXLSX            string
	scrapeCopyURLs        bool
	scrapeSelect          string
)

// exportOptions says where a finished job's rows go.
type exportOptions struct {
	CSV      string
	XLSX     string
	CopyURLs bool
	// Selection is nil when every row is exported.
	Selection []int
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Generate queries and scrape search results in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, err := readDescription(scrapeDescription, scrapeDescriptionFile)
		if err != nil {
			return err
		}

		opts := exportOptions{CSV: scrapeCSV, XLSX: scrapeXLSX, CopyURLs: scrapeCopyURLs}
		if cmd.Flags().Changed("select") {
			sel, err := parseSelection(scrapeSelect)
			if err != nil {
				return err
			}
			opts.Selection = sel
		}

		host, err := initHost(cfg, "scrape")
		if err != nil {
			return err
		}

		req := model.ScrapeRequest{
			KeywordCount:      scrapeKeywords,
			ResultsPerKeyword: scrapeResults,
			Description:       desc,
		}

		sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		state, rows, err := runScrape(cmd.Context(), sigCtx, host, req, display.New(cmd.OutOrStdout()))
		if err != nil {
			return err
		}

		if err := exportRows(cmd.OutOrStdout(), rows, opts); err != nil {
			return err
		}

		if state == model.JobStateFailed {
			return eris.New("scrape: job failed")
		}
		return nil
	},
}

// runScrape submits req and renders its events until the job finishes.
// When interrupt ends the job is cancelled cooperatively; in-flight requests
// still run under ctx.
func runScrape(ctx, interrupt context.Context, host *job.Host, req model.ScrapeRequest, r *display.Renderer) (model.JobState, []model.ResultRow, error) {
	h, err := host.Submit(ctx, req)
	if err != nil {
		return "", nil, err
	}

	go func() {
		select {
		case <-interrupt.Done():
			zap.L().Info("scrape: interrupt received, cancelling", zap.String("job_id", h.ID()))
			h.Cancel()
		case <-ctx.Done():
		}
	}()

	var (
		rows  []model.ResultRow
		state model.JobState
	)
	for ev := range h.Events() {
		r.Event(ev)
		switch ev.Kind {
		case model.EventResult:
			rows = ev.Rows
		case model.EventFinished:
			state = ev.State
		}
	}

	r.Table(rows)
	return state, rows, nil
}

// exportRows writes the selected rows to every requested destination. An
// empty selection exports nothing.
func exportRows(w io.Writer, rows []model.ResultRow, opts exportOptions) error {
	selected := rows
	if opts.Selection != nil {
		var err error
		selected, err = export.Select(rows, opts.Selection)
		if err != nil {
			return err
		}
	}
	if len(selected) == 0 {
		if opts.CSV != "" || opts.XLSX != "" || opts.CopyURLs {
			fmt.Fprintln(w, "Nothing to export.")
		}
		return nil
	}

	if opts.CSV != "" {
		path, err := export.SaveCSV(opts.CSV, selected)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Saved %d rows to %s\n", len(selected), path)
	}

	if opts.XLSX != "" {
		path, err := export.SaveXLSX(opts.XLSX, selected)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Saved %d rows to %s\n", len(selected), path)
	}

	if opts.CopyURLs {
		if err := clipboard.WriteAll(export.URLList(selected)); err != nil {
			return eris.Wrap(err, "scrape: copy urls")
		}
		fmt.Fprintf(w, "Copied %d URLs to clipboard\n", len(selected))
	}

	return nil
}

// readDescription prefers the file when one is given.
func readDescription(text, file string) (string, error) {
	if file == "" {
		return text, nil
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return "", eris.Wrapf(err, "read description file %s", file)
	}
	return strings.TrimSpace(string(b)), nil
}

// parseSelection parses a comma-separated list of row indexes. Blank input
// selects nothing.
func parseSelection(s string) ([]int, error) {
	out := []int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, eris.Errorf("invalid row index %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

func init() {
	scrapeCmd.Flags().IntVar(&scrapeKeywords, "keywords", 1, "number of queries to generate (1-100)")
	scrapeCmd.Flags().IntVar(&scrapeResults, "results", 10, "search results to keep per query (1-100)")
	scrapeCmd.Flags().StringVar(&scrapeDescription, "description", defaultDescription, "what kind of websites to look for")
	scrapeCmd.Flags().StringVar(&scrapeDescriptionFile, "description-file", "", "read the description from a file")
	scrapeCmd.Flags().StringVar(&scrapeCSV, "csv", "", "save results as CSV")
	scrapeCmd.Flags().StringVar(&scrapeXLSX, "xlsx", "", "save results as an Excel workbook")
	scrapeCmd.Flags().BoolVar(&scrapeCopyURLs, "copy-urls", false, "copy result URLs to the clipboard")
	scrapeCmd.Flags().StringVar(&scrapeSelect, "select", "", "export only these row indexes, e.g. 0,2,5")
	rootCmd.AddCommand(scrapeCmd)
}

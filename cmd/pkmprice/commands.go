package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/guarzo/pkmprice/internal/metrics"
	"github.com/guarzo/pkmprice/internal/model"
	"github.com/guarzo/pkmprice/internal/pipeline"
	"github.com/guarzo/pkmprice/internal/pricelist"
	"github.com/guarzo/pkmprice/internal/prices"
	"github.com/guarzo/pkmprice/internal/report"
	"github.com/guarzo/pkmprice/internal/schedule"
	"github.com/guarzo/pkmprice/internal/sets"
	"github.com/guarzo/pkmprice/internal/sink"
	"github.com/guarzo/pkmprice/internal/store"
)

var errNoDatabase = errors.New("no database configured: pass --db or set PKMPRICE_DATABASE_DSN")

func setsFlags(fs *pflag.FlagSet) {
	fs.String("write-mappings", "", "also write the sets as a mappings file")
}

func watchFlags(fs *pflag.FlagSet) {
	fs.String("schedule", "", `cron spec, e.g. "0 9 * * *" or "@hourly"`)
	fs.Bool("run-now", false, "price once at startup as well")
}

func historyFlags(fs *pflag.FlagSet) {
	fs.IntP("limit", "n", 20, "rows to show (0 = all)")
}

func exportFlags(fs *pflag.FlagSet) {
	fs.StringP("format", "f", "csv", "csv or xlsx")
	fs.String("out", "", "output path (default prices.<format>)")
}

// pricingFile picks the file argument, falling back to cards_to_price.
func (a *app) pricingFile(args []string) (string, error) {
	switch {
	case len(args) == 1:
		return args[0], nil
	case len(args) == 0 && a.cfg.CardsToPrice != "":
		return a.cfg.CardsToPrice, nil
	}
	return "", fmt.Errorf("%w: expected one pricing file", errUsage)
}

func (a *app) parse(path string) ([]model.PricingRequest, error) {
	extra, err := sets.LoadDir(a.cfg.MappingsDir)
	if err != nil {
		return nil, err
	}
	return pricelist.NewParser(sets.Default(extra)).Parse(path)
}

// recorder builds the sinks: the price log always, the database when a DSN
// is configured. The returned func closes them.
func (a *app) recorder() (sink.Recorder, func(), error) {
	file, err := sink.OpenFile(a.cfg.OutputPath)
	if err != nil {
		return nil, nil, err
	}
	closers := []func() error{file.Close}
	recorders := sink.Multi{file}

	if a.cfg.DatabaseDSN != "" {
		db, err := store.Open(a.cfg.DatabaseDSN, a.log)
		if err != nil {
			_ = file.Close()
			return nil, nil, err
		}
		closers = append(closers, db.Close)
		recorders = append(recorders, sink.NewStore(db))
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				a.log.Warn().Err(err).Msg("close sink")
			}
		}
	}
	return recorders, closeAll, nil
}

func (a *app) processor(rec sink.Recorder, m *metrics.Metrics) *pipeline.Processor {
	cfg := pipeline.Config{
		Workers:   a.cfg.Workers,
		RateLimit: rate.Limit(a.cfg.RateLimit),
		Timeout:   a.cfg.Timeout,
	}
	if !a.cfg.Quiet {
		cfg.Progress = a.stderr
	}
	return pipeline.NewProcessor(a.client(), rec, cfg, m, a.log)
}

func (a *app) serveMetrics(ctx context.Context, m *metrics.Metrics) {
	if a.cfg.MetricsAddr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, a.cfg.MetricsAddr, m, a.log); err != nil {
			a.log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func (a *app) priceOnce(ctx context.Context, reqs []model.PricingRequest, rec sink.Recorder, m *metrics.Metrics) error {
	summary, err := a.processor(rec, m).Run(ctx, reqs)
	a.printSummary(summary)
	return err
}

func (a *app) printSummary(s pipeline.Summary) {
	fmt.Fprintf(a.stdout, "priced %d of %d cards (%d without price data, %d not found, %d failed) in %s\n",
		s.Priced, s.Total, s.Unpriced, s.NotFound, s.Failed, s.Duration.Round(time.Millisecond))
	for _, f := range s.Failures {
		fmt.Fprintf(a.stdout, "  %v\n", f)
	}
}

func runPrice(ctx context.Context, a *app, args []string) error {
	path, err := a.pricingFile(args)
	if err != nil {
		return err
	}
	// A bad file must fail before any sink is created.
	reqs, err := a.parse(path)
	if err != nil {
		return err
	}
	rec, closeSinks, err := a.recorder()
	if err != nil {
		return err
	}
	defer closeSinks()

	m := metrics.New()
	a.serveMetrics(ctx, m)
	return a.priceOnce(ctx, reqs, rec, m)
}

func runCard(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: card takes one id", errUsage)
	}
	card, err := a.client().Card(ctx, args[0])
	if err != nil {
		return err
	}

	price, source := prices.ExtractWithSource(card)
	rec := model.PriceRecord{CardName: card.Name, CardID: card.ID, Number: card.Number, Price: price}
	fmt.Fprintln(a.stdout, rec.Line())
	fmt.Fprintf(a.stdout, "source: %s\n", source)
	return nil
}

func runSets(ctx context.Context, a *app, _ []string) error {
	list, err := a.client().Sets(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tID\tNAME\tRELEASED")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.PtcgoCode, s.ID, s.Name, s.ReleaseDate)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if path, _ := a.flags.GetString("write-mappings"); path != "" {
		if err := sets.WriteMappings(path, list); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "wrote %d mappings to %s\n", len(sets.FromSets(list)), path)
	}
	return nil
}

func runConfig(_ context.Context, a *app, _ []string) error {
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, kv := range a.cfg.Redacted().Settings() {
		fmt.Fprintf(tw, "%s\t%s\n", kv[0], kv[1])
	}
	return tw.Flush()
}

func runWatch(ctx context.Context, a *app, args []string) error {
	path, err := a.pricingFile(args)
	if err != nil {
		return err
	}
	// Parse up front so a bad file fails now rather than at the first tick.
	if _, err := a.parse(path); err != nil {
		return err
	}

	sched, err := schedule.New(a.cfg.Schedule, time.Local, a.log)
	if err != nil {
		return err
	}
	rec, closeSinks, err := a.recorder()
	if err != nil {
		return err
	}
	defer closeSinks()

	m := metrics.New()
	a.serveMetrics(ctx, m)

	runNow, _ := a.flags.GetBool("run-now")
	return sched.Run(ctx, func(ctx context.Context) error {
		// Re-read each tick so edits to the file are picked up.
		reqs, err := a.parse(path)
		if err != nil {
			return err
		}
		return a.priceOnce(ctx, reqs, rec, m)
	}, runNow)
}

func (a *app) openStore() (*store.Store, error) {
	if a.cfg.DatabaseDSN == "" {
		return nil, errNoDatabase
	}
	return store.Open(a.cfg.DatabaseDSN, a.log)
}

func runHistory(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: history takes one card id", errUsage)
	}
	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	limit, _ := a.flags.GetInt("limit")
	rows, err := db.History(ctx, args[0], limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintf(a.stdout, "no prices stored for %s\n", args[0])
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tNAME\tPRICE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%v\n", time.Unix(r.Date, 0).Format(time.DateTime), r.Name, r.LastPrice)
	}
	return tw.Flush()
}

func runExport(ctx context.Context, a *app, _ []string) error {
	name, _ := a.flags.GetString("format")
	format, err := report.ParseFormat(name)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	out, _ := a.flags.GetString("out")
	if out == "" {
		out = "prices." + string(format)
	}

	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.All(ctx)
	if err != nil {
		return err
	}
	records := make([]model.PriceRecord, len(rows))
	for i, r := range rows {
		records[i] = r.Record()
	}

	if err := report.Export(out, format, records); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "exported %d prices to %s\n", len(records), strings.TrimPrefix(out, "./"))
	return nil
}

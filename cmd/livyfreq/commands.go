package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/japaniel/livyfreq/pkg/corpus"
	"github.com/japaniel/livyfreq/pkg/ingest"
	"github.com/japaniel/livyfreq/pkg/query"
)

// errUsage is returned after a flag set has already printed its own message.
var errUsage = errors.New("usage")

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

// parseInterleaved parses flags that may appear before, between or after positional arguments
// and returns the positionals in order.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := parse(fs, args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

// books returns the configured manifest, optionally restricted to a comma separated id list.
func (a *app) books(only string) ([]corpus.Book, error) {
	books, err := corpus.ResolveManifest(a.cfg.Paths.Manifest)
	if err != nil {
		return nil, err
	}
	if only == "" {
		return books, nil
	}
	want := map[string]bool{}
	for _, id := range strings.Split(only, ",") {
		if id = strings.TrimSpace(id); id != "" {
			want[id] = true
		}
	}
	var out []corpus.Book
	for _, b := range books {
		if want[b.BookID] {
			out = append(out, b)
			delete(want, b.BookID)
		}
	}
	if len(want) > 0 {
		var unknown []string
		for id := range want {
			unknown = append(unknown, id)
		}
		return nil, fmt.Errorf("unknown book ids: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

func (a *app) cmdDownload(ctx context.Context, args []string) error {
	fs := a.flagSet("download")
	only := fs.String("books", "", "Comma separated book ids (default: all)")
	out := fs.String("out", a.cfg.Paths.RawDir, "Directory for raw pages")
	delay := fs.Duration("delay", a.cfg.Fetch.Delay, "Delay between requests")
	if err := parse(fs, args); err != nil {
		return err
	}
	books, err := a.books(*only)
	if err != nil {
		return err
	}

	fetchCfg := a.cfg.Fetch
	fetchCfg.Delay = *delay
	d := corpus.NewDownloader(fetchCfg, a.log.WithField("component", "downloader"))
	fmt.Fprintf(a.stdout, "%s downloading %d books into %s\n", infoColor("info"), len(books), *out)
	report, err := d.DownloadAll(ctx, books, *out)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	fmt.Fprintf(a.stdout, "%s %d books available\n", successColor("done"), len(report.Succeeded))
	if len(report.Failed) > 0 {
		fmt.Fprintf(a.stdout, "%s failed: %s\n", warnColor("warn"), strings.Join(report.Failed, ", "))
	}
	return nil
}

func (a *app) cmdExtract(ctx context.Context, args []string) error {
	fs := a.flagSet("extract")
	only := fs.String("books", "", "Comma separated book ids (default: all)")
	if err := parse(fs, args); err != nil {
		return err
	}
	books, err := a.books(*only)
	if err != nil {
		return err
	}
	ex := corpus.NewExtractor(a.log.WithField("component", "extractor"))
	store := corpus.NewTextStore(a.cfg.Paths.TextsDir)
	report, err := ex.ExtractAll(books, a.cfg.Paths.RawDir, store)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	total := 0
	for _, n := range report.Words {
		total += n
	}
	fmt.Fprintf(a.stdout, "%s extracted %d books (%d words) into %s\n", successColor("done"), len(report.Words), total, store.Dir)
	if len(report.Missing) > 0 {
		fmt.Fprintf(a.stdout, "%s no raw page for: %s\n", warnColor("warn"), strings.Join(report.Missing, ", "))
	}
	return nil
}

func (a *app) cmdAnalyze(ctx context.Context, args []string) error {
	fs := a.flagSet("analyze")
	only := fs.String("books", "", "Comma separated book ids (default: all)")
	dbPath := fs.String("db", a.cfg.Paths.DBPath, "Index file to build")
	workers := fs.Int("workers", a.cfg.Analysis.Workers, "Parallel book workers")
	minFreq := fs.Int("min-freq", a.cfg.Analysis.MinWordFreq, "Corpus count a word needs to get snippets")
	if err := parse(fs, args); err != nil {
		return err
	}
	books, err := a.books(*only)
	if err != nil {
		return err
	}

	opts := ingest.Options{
		MinWordFreq:  *minFreq,
		MaxSnippets:  a.cfg.Analysis.MaxSnippets,
		ContextChars: a.cfg.Analysis.ContextChars,
		Workers:      *workers,
		BatchSize:    a.cfg.Analysis.BatchSize,
	}
	p := ingest.NewPipeline(opts, a.log.WithField("component", "ingest"))
	report, err := p.RunBooks(ctx, books, corpus.NewTextStore(a.cfg.Paths.TextsDir), *dbPath)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	fmt.Fprintf(a.stdout, "%s indexed %d books, %d words, %d distinct, %d snippets in %v\n",
		successColor("done"), report.Books, report.TotalWords, report.DistinctWords, report.Snippets,
		report.Duration.Round(time.Millisecond))
	if len(report.Skipped) > 0 {
		fmt.Fprintf(a.stdout, "%s no text for: %s\n", warnColor("warn"), strings.Join(report.Skipped, ", "))
	}
	fmt.Fprintf(a.stdout, "%s index written to %s\n", infoColor("info"), *dbPath)
	return nil
}

func (a *app) cmdAll(ctx context.Context, args []string) error {
	fs := a.flagSet("all")
	only := fs.String("books", "", "Comma separated book ids (default: all)")
	dbPath := fs.String("db", a.cfg.Paths.DBPath, "Index file to build")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.cmdDownload(ctx, []string{"-books", *only}); err != nil {
		return err
	}
	if err := a.cmdExtract(ctx, []string{"-books", *only}); err != nil {
		return err
	}
	return a.cmdAnalyze(ctx, []string{"-books", *only, "-db", *dbPath})
}

func (a *app) openIndex(path string) (*query.Index, error) {
	idx, err := query.OpenWithLogger(path, a.log.WithField("component", "query"))
	if err != nil {
		if errors.Is(err, query.ErrIndexNotReady) {
			return nil, fmt.Errorf("%w (run 'livyfreq analyze' first)", err)
		}
		return nil, err
	}
	return idx, nil
}

func (a *app) cmdQuery(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.stderr, "Usage: livyfreq query freq|snippets|compare|position|search|stats [flags] [args]")
		return errUsage
	}
	op, rest := args[0], args[1:]

	fs := a.flagSet("query " + op)
	dbPath := fs.String("db", a.cfg.Paths.DBPath, "Index file")
	limit := fs.Int("limit", 0, "Maximum results (0: default)")
	minCount := fs.Int("min", query.DefaultMinCount, "Minimum corpus count (position)")
	late := fs.Bool("late", false, "Latest words first (position)")
	positional, err := parseInterleaved(fs, rest)
	if err != nil {
		return err
	}

	var arg string
	var words []string
	switch op {
	case "freq", "frequency", "snippets", "snip", "search":
		if len(positional) < 1 {
			fmt.Fprintf(a.stderr, "Usage: livyfreq query %s <word>\n", op)
			return errUsage
		}
		arg = positional[0]
	case "compare":
		words = query.ParseWordList(strings.Join(positional, ","))
		if len(words) == 0 {
			fmt.Fprintf(a.stderr, "Usage: livyfreq query compare <word1,word2,...> (at most %d)\n", query.MaxCompareWords)
			return errUsage
		}
	case "position", "stats":
	default:
		fmt.Fprintf(a.stderr, "unknown query %q\n", op)
		return errUsage
	}

	idx, err := a.openIndex(*dbPath)
	if err != nil {
		return err
	}
	defer idx.Close()
	v := &view{idx: idx, w: a.stdout}

	switch op {
	case "freq", "frequency":
		return v.frequencies(ctx, arg)
	case "snippets", "snip":
		return v.snippets(ctx, arg)
	case "compare":
		return v.compare(ctx, words)
	case "search":
		return v.search(ctx, arg, *limit)
	case "position":
		return v.positions(ctx, !*late, *minCount, *limit)
	default:
		return v.stats(ctx)
	}
}

package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/japaniel/livyfreq/pkg/corpus"
	"github.com/japaniel/livyfreq/pkg/db"
	"github.com/japaniel/livyfreq/pkg/livy"
	"github.com/sirupsen/logrus"
)

// TextSource loads the extracted plain text of a book. Missing books are reported with an
// error wrapping corpus.ErrTextNotFound.
type TextSource interface {
	Load(bookID string) (string, error)
}

// Options are the fixed settings of an index build.
type Options struct {
	// MinWordFreq is the corpus total a word needs before snippets are stored for it.
	MinWordFreq  int
	MaxSnippets  int
	ContextChars int
	Workers      int
	// BatchSize is the number of row writes per transaction.
	BatchSize int
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		MinWordFreq:  2,
		MaxSnippets:  livy.DefaultMaxSnippets,
		ContextChars: livy.DefaultContextChars,
		Workers:      runtime.NumCPU(),
		BatchSize:    500,
	}
}

// Pipeline builds a word index from book texts: it counts every book on a worker pool,
// aggregates the counts, samples snippets and writes the result into a fresh index file that
// replaces the live one only when everything succeeded.
type Pipeline struct {
	Options
	// Logger is used for per-book and per-phase messages. nil means the standard logrus logger.
	Logger *logrus.Entry
	// OnProgress is called with the phase name, the number of finished books and the total.
	OnProgress func(phase string, current, total int)

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// NewPipeline creates a Pipeline with the given options.
func NewPipeline(opts Options, logger *logrus.Entry) *Pipeline {
	return &Pipeline{Options: opts, Logger: logger}
}

// RunReport summarizes a finished build.
type RunReport struct {
	BuildID       string
	Books         int
	Skipped       []string
	TotalWords    int
	DistinctWords int
	Frequencies   int
	Snippets      int
	Duration      time.Duration
}

func (p *Pipeline) log() *logrus.Entry {
	if p.Logger != nil {
		return p.Logger
	}
	return logrus.WithField("component", "ingest")
}

func (p *Pipeline) workers() int {
	if p.Workers <= 0 {
		return 1
	}
	return p.Workers
}

func (p *Pipeline) newPool() WorkerPoolInterface {
	w := p.workers()
	if p.PoolFactory != nil {
		return p.PoolFactory(w, w*2)
	}
	return NewWorkerPool(w, w*2)
}

func (p *Pipeline) progress(phase string, current, total int) {
	if p.OnProgress != nil {
		p.OnProgress(phase, current, total)
	}
}

// LoadDocuments reads the text of every book from src. Books without text are skipped and their
// ids returned; any other read error stops the load.
func (p *Pipeline) LoadDocuments(books []corpus.Book, src TextSource) ([]Document, []string, error) {
	docs := make([]Document, 0, len(books))
	var skipped []string
	for _, b := range books {
		text, err := src.Load(b.BookID)
		if err != nil {
			if errors.Is(err, corpus.ErrTextNotFound) {
				p.log().WithField("book_id", b.BookID).Warn("no text for book, skipping")
				skipped = append(skipped, b.BookID)
				continue
			}
			return nil, skipped, fmt.Errorf("load text of book %s: %w", b.BookID, err)
		}
		docs = append(docs, Document{
			BookID:        b.BookID,
			Title:         b.Title,
			SequenceIndex: b.SequenceIndex,
			Text:          text,
		})
	}
	return docs, skipped, nil
}

// RunBooks loads the books from src and runs the pipeline on the ones that have text.
// It fails with ErrNoBooks when none of them do.
func (p *Pipeline) RunBooks(ctx context.Context, books []corpus.Book, src TextSource, dbPath string) (RunReport, error) {
	docs, skipped, err := p.LoadDocuments(books, src)
	if err != nil {
		return RunReport{Skipped: skipped}, err
	}
	if len(docs) == 0 {
		return RunReport{Skipped: skipped}, fmt.Errorf("%w: %d of %d books have no text", ErrNoBooks, len(skipped), len(books))
	}
	report, err := p.Run(ctx, docs, dbPath)
	report.Skipped = skipped
	return report, err
}

// Run builds the index at dbPath from docs. On any error, including cancellation, the build file
// is discarded and the index previously at dbPath is left as it was.
func (p *Pipeline) Run(ctx context.Context, docs []Document, dbPath string) (RunReport, error) {
	start := time.Now()
	if len(docs) == 0 {
		return RunReport{}, ErrNoBooks
	}
	if err := ValidateDocuments(docs); err != nil {
		return RunReport{}, err
	}
	logger := p.log()

	// 1. Count every book.
	counts, err := fanOut(ctx, p, "count", len(docs), func(i int) BookCounts {
		bc := CountBook(docs[i])
		logger.WithFields(logrus.Fields{
			"book_id": bc.BookID,
			"words":   bc.TotalWords,
			"unique":  bc.UniqueWords(),
		}).Info("counted book")
		return bc
	})
	if err != nil {
		return RunReport{}, fmt.Errorf("count books: %w", err)
	}

	// 2. Merge.
	res := Aggregate(counts)
	if err := ctx.Err(); err != nil {
		return RunReport{}, err
	}

	// 3. Sample snippets for the words common enough to be worth it.
	eligible := res.Eligible(p.MinWordFreq)
	opts := livy.SnippetOptions{ContextChars: p.ContextChars, MaxSnippets: p.MaxSnippets}
	perBook, err := fanOut(ctx, p, "snippets", len(docs), func(i int) []db.Snippet {
		return bookSnippets(docs[i], eligible, opts)
	})
	if err != nil {
		return RunReport{}, fmt.Errorf("extract snippets: %w", err)
	}
	snippets := flattenSnippets(docs, perBook)
	logger.WithFields(logrus.Fields{"words": len(eligible), "snippets": len(snippets)}).Info("extracted snippets")

	// 4. Write a fresh index file and swap it in.
	build, err := db.NewBuild(dbPath)
	if err != nil {
		return RunReport{}, err
	}
	committed := false
	defer func() {
		if !committed {
			build.Abort()
		}
	}()
	logger.WithFields(logrus.Fields{"path": build.Path(), "build_id": build.ID}).Debug("writing build file")

	if err := p.write(ctx, build.DB, res, snippets); err != nil {
		return RunReport{}, fmt.Errorf("write index: %w", err)
	}
	if err := p.writeMeta(build.DB); err != nil {
		return RunReport{}, fmt.Errorf("write index metadata: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return RunReport{}, err
	}
	if err := build.Commit(); err != nil {
		return RunReport{}, err
	}
	committed = true

	report := RunReport{
		BuildID:       build.ID,
		Books:         len(res.Books),
		TotalWords:    res.TotalWords,
		DistinctWords: len(res.Stats),
		Frequencies:   len(res.Frequencies),
		Snippets:      len(snippets),
		Duration:      time.Since(start),
	}
	logger.WithFields(logrus.Fields{
		"path":     dbPath,
		"books":    report.Books,
		"words":    report.TotalWords,
		"unique":   report.DistinctWords,
		"snippets": report.Snippets,
		"elapsed":  report.Duration.Round(time.Millisecond),
	}).Info("index built")
	return report, nil
}

type indexed[T any] struct {
	i int
	v T
}

// fanOut runs fn for every index on a fresh worker pool and returns the results in index order.
func fanOut[T any](ctx context.Context, p *Pipeline, phase string, n int, fn func(i int) T) ([]T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wp := p.newPool()
	resultCh := make(chan indexed[T], p.workers()*2)
	out := make([]T, n)
	received := 0

	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		for r := range resultCh {
			out[r.i] = r.v
			received++
			p.progress(phase, received, n)
		}
	}()

	wp.Start(ctx)
	var submitErr error
	for i := 0; i < n; i++ {
		idx := i
		job := func(ctx context.Context) error {
			v := fn(idx)
			select {
			case resultCh <- indexed[T]{idx, v}:
			case <-ctx.Done():
			}
			return nil
		}
		if err := wp.SubmitCtx(ctx, job); err != nil {
			submitErr = err
			cancel()
			break
		}
	}

	// Workers are done once Close returns, so nothing sends on resultCh after this.
	wp.Close()
	close(resultCh)
	<-doneCh

	if submitErr != nil {
		return nil, submitErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if received != n {
		return nil, fmt.Errorf("%s: %d of %d jobs finished", phase, received, n)
	}
	return out, nil
}

func bookSnippets(doc Document, words []string, opts livy.SnippetOptions) []db.Snippet {
	found := livy.ExtractAll(doc.Text, words, opts)
	keys := make([]string, 0, len(found))
	for w, s := range found {
		if len(s) > 0 {
			keys = append(keys, w)
		}
	}
	sort.Strings(keys)
	out := make([]db.Snippet, 0)
	for _, w := range keys {
		for _, s := range found[w] {
			out = append(out, db.Snippet{
				Word:           w,
				BookID:         doc.BookID,
				Context:        s.Context,
				PositionInBook: s.Position,
			})
		}
	}
	return out
}

// flattenSnippets concatenates per-book snippets in book sequence order so snippet ids are
// stable across runs.
func flattenSnippets(docs []Document, perBook [][]db.Snippet) []db.Snippet {
	order := make([]int, len(docs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return docs[order[a]].SequenceIndex < docs[order[b]].SequenceIndex
	})
	total := 0
	for _, s := range perBook {
		total += len(s)
	}
	out := make([]db.Snippet, 0, total)
	for _, i := range order {
		out = append(out, perBook[i]...)
	}
	return out
}

// write pushes every row through a BatchWriter. Submission stops at cancellation or at the
// first failed batch.
func (p *Pipeline) write(ctx context.Context, conn *sql.DB, res Result, snippets []db.Snippet) error {
	bw := NewBatchWriter(conn, p.BatchSize)
	bw.Logger = p.log()
	bw.OnError = func(e error) {
		p.log().WithError(e).Error("batch write failed")
	}

	submitErr := p.submitRows(ctx, bw, res, snippets)
	closeErr := bw.Close()
	p.log().WithFields(logrus.Fields{
		"writes":  bw.Written(),
		"batches": bw.Batches(),
	}).Debug("rows written")
	if submitErr != nil {
		return submitErr
	}
	if closeErr != nil {
		return closeErr
	}
	return ctx.Err()
}

func (p *Pipeline) submitRows(ctx context.Context, bw *BatchWriter, res Result, snippets []db.Snippet) error {
	for _, b := range res.Books {
		if err := bw.Submit(ctx, func(ctx context.Context, tx *sql.Tx) error {
			return db.InsertBook(tx, b)
		}); err != nil {
			return err
		}
	}
	for _, wf := range res.Frequencies {
		if err := bw.Submit(ctx, func(ctx context.Context, tx *sql.Tx) error {
			return db.InsertWordFrequency(tx, wf)
		}); err != nil {
			return err
		}
	}
	for _, ws := range res.Stats {
		if err := bw.Submit(ctx, func(ctx context.Context, tx *sql.Tx) error {
			return db.InsertWordStat(tx, ws)
		}); err != nil {
			return err
		}
	}
	for _, s := range snippets {
		if err := bw.Submit(ctx, func(ctx context.Context, tx *sql.Tx) error {
			_, err := db.InsertSnippet(tx, s)
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) writeMeta(conn *sql.DB) error {
	meta := map[string]string{
		"tokenizer_version": livy.Version(),
		"min_word_freq":     strconv.Itoa(p.MinWordFreq),
		"max_snippets":      strconv.Itoa(p.MaxSnippets),
		"context_chars":     strconv.Itoa(p.ContextChars),
	}
	for k, v := range meta {
		if err := db.SetMeta(conn, k, v); err != nil {
			return err
		}
	}
	return nil
}

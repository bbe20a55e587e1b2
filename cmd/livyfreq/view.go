package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/japaniel/livyfreq/pkg/livy"
	"github.com/japaniel/livyfreq/pkg/query"
)

// view renders query results for a terminal.
type view struct {
	idx *query.Index
	w   io.Writer
}

func (v *view) frequencies(ctx context.Context, word string) error {
	rows, err := v.idx.FrequenciesForWord(ctx, word)
	if err != nil {
		return err
	}
	word = livy.NormalizeWord(strings.TrimSpace(word))
	total, present := 0, 0
	for _, r := range rows {
		total += r.Count
		if r.Count > 0 {
			present++
		}
	}
	if total == 0 {
		fmt.Fprintf(v.w, "%s word %s not found in the corpus\n", warnColor("warn"), wordColor(word))
		return nil
	}
	fmt.Fprintf(v.w, "%s %s appears %d times across %d books\n", infoColor("frequency of"), wordColor(word), total, present)
	for _, r := range rows {
		bar := strings.Repeat("#", barWidth(r.RelativeFrequency))
		fmt.Fprintf(v.w, "  %-4s %-18s %6d %10.2f  %s\n", r.BookID, r.Title, r.Count, r.RelativeFrequency, bar)
	}
	return nil
}

// barWidth scales a per-10,000 frequency to a short bar.
func barWidth(rel float64) int {
	n := int(rel / 10)
	if n > 40 {
		n = 40
	}
	if rel > 0 && n == 0 {
		n = 1
	}
	return n
}

func (v *view) snippets(ctx context.Context, word string) error {
	rows, err := v.idx.SnippetsForWord(ctx, word)
	if err != nil {
		return err
	}
	word = livy.NormalizeWord(strings.TrimSpace(word))
	if len(rows) == 0 {
		fmt.Fprintf(v.w, "%s no snippets stored for %s\n", warnColor("warn"), wordColor(word))
		return nil
	}
	current := ""
	for _, r := range rows {
		if r.BookID != current {
			fmt.Fprintf(v.w, "%s\n", infoColor(r.Title))
			current = r.BookID
		}
		fmt.Fprintf(v.w, "  [%d] %s\n", r.PositionInBook, livy.Highlight(r.Context, word, highlight))
	}
	return nil
}

func highlight(s string) string { return wordColor(s) }

// compare prints one relative frequency column per word for every book.
func (v *view) compare(ctx context.Context, words []string) error {
	series, err := v.idx.Compare(ctx, words)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		fmt.Fprintf(v.w, "%s no words to compare\n", warnColor("warn"))
		return nil
	}
	header := fmt.Sprintf("  %-4s %-18s", "book", "title")
	for _, s := range series {
		header += fmt.Sprintf(" %12s", s.Word)
	}
	fmt.Fprintf(v.w, "%s (per 10,000 words)\n", infoColor("relative frequency"))
	fmt.Fprintln(v.w, header)
	for i, f := range series[0].Frequencies {
		line := fmt.Sprintf("  %-4s %-18s", f.BookID, f.Title)
		for _, s := range series {
			line += fmt.Sprintf(" %12.2f", s.Frequencies[i].RelativeFrequency)
		}
		fmt.Fprintln(v.w, line)
	}
	for _, s := range series {
		if s.Total() == 0 {
			fmt.Fprintf(v.w, "%s word %s not found in the corpus\n", warnColor("warn"), wordColor(s.Word))
		}
	}
	return nil
}

func (v *view) positions(ctx context.Context, ascending bool, minCount, limit int) error {
	rows, err := v.idx.WordsByPosition(ctx, ascending, minCount, limit)
	if err != nil {
		return err
	}
	label := "earliest words"
	if !ascending {
		label = "latest words"
	}
	fmt.Fprintf(v.w, "%s (min count %d)\n", infoColor(label), effectiveMin(minCount))
	for _, r := range rows {
		fmt.Fprintf(v.w, "  %-20s %8.2f %7d %4d\n", r.Word, r.MeanPosition, r.TotalCount, r.BookCount)
	}
	return nil
}

func effectiveMin(minCount int) int {
	if minCount <= 0 {
		return query.DefaultMinCount
	}
	return minCount
}

func (v *view) search(ctx context.Context, prefix string, limit int) error {
	words, err := v.idx.SearchWords(ctx, prefix, limit)
	if err != nil {
		return err
	}
	if len(words) == 0 {
		fmt.Fprintf(v.w, "%s no words start with %q\n", warnColor("warn"), prefix)
		return nil
	}
	for _, w := range words {
		fmt.Fprintln(v.w, w)
	}
	return nil
}

func (v *view) stats(ctx context.Context) error {
	st, err := v.idx.Stats(ctx)
	if err != nil {
		return err
	}
	info, err := v.idx.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(v.w, "%s %s\n", infoColor("index"), info.Path)
	fmt.Fprintf(v.w, "  built     %s (%s)\n", info.BuiltAt, info.BuildID)
	fmt.Fprintf(v.w, "  books     %d\n", st.Books)
	fmt.Fprintf(v.w, "  words     %d\n", st.TotalWords)
	fmt.Fprintf(v.w, "  distinct  %d\n", st.DistinctWords)
	return nil
}

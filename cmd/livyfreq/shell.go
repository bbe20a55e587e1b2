package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/japaniel/livyfreq/pkg/query"
)

var shellCommands = []prompt.Suggest{
	{Text: "freq", Description: "Frequency of a word in every book"},
	{Text: "snip", Description: "Stored contexts of a word"},
	{Text: "compare", Description: "Relative frequency of up to 5 words side by side (w1,w2,...)"},
	{Text: "early", Description: "Words with the earliest mean position [min] [limit]"},
	{Text: "late", Description: "Words with the latest mean position [min] [limit]"},
	{Text: "search", Description: "Words starting with a prefix [limit]"},
	{Text: "stats", Description: "Corpus totals"},
	{Text: "help", Description: "Show commands"},
	{Text: "quit", Description: "Exit"},
}

// shell is the interactive query loop.
type shell struct {
	ctx context.Context
	v   *view
}

func (a *app) cmdShell(ctx context.Context, args []string) error {
	fs := a.flagSet("shell")
	dbPath := fs.String("db", a.cfg.Paths.DBPath, "Index file")
	if err := parse(fs, args); err != nil {
		return err
	}
	idx, err := a.openIndex(*dbPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	st, err := idx.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Index loaded from %s (%d books, %d distinct words)\n\n", *dbPath, st.Books, st.DistinctWords)
	printShellHelp(a)

	s := &shell{ctx: ctx, v: &view{idx: idx, w: a.stdout}}
	p := prompt.New(
		func(in string) {
			if s.execute(in) {
				idx.Close()
				os.Exit(0)
			}
		},
		s.complete,
		prompt.OptionPrefix("livy >> "),
		prompt.OptionTitle("livyfreq"),
	)
	p.Run()
	return nil
}

func printShellHelp(a *app) {
	fmt.Fprintln(a.stdout, "Commands:")
	for _, c := range shellCommands {
		fmt.Fprintf(a.stdout, "  %-8s %s\n", c.Text, c.Description)
	}
	fmt.Fprintln(a.stdout)
}

// execute runs one shell line and reports whether the shell should exit.
func (s *shell) execute(input string) bool {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return false
	}
	cmd, args := parts[0], parts[1:]
	w := s.v.w

	var err error
	switch cmd {
	case "freq", "frequency":
		if len(args) < 1 {
			fmt.Fprintln(w, "Usage: freq <word>")
			return false
		}
		err = s.v.frequencies(s.ctx, args[0])
	case "snip", "snippets":
		if len(args) < 1 {
			fmt.Fprintln(w, "Usage: snip <word>")
			return false
		}
		err = s.v.snippets(s.ctx, args[0])
	case "compare":
		words := query.ParseWordList(strings.Join(args, ","))
		if len(words) == 0 {
			fmt.Fprintln(w, "Usage: compare <word1,word2,...>")
			return false
		}
		err = s.v.compare(s.ctx, words)
	case "early", "late":
		err = s.v.positions(s.ctx, cmd == "early", intArg(args, 0), intArg(args, 1))
	case "search":
		if len(args) < 1 {
			fmt.Fprintln(w, "Usage: search <prefix> [limit]")
			return false
		}
		err = s.v.search(s.ctx, args[0], intArg(args, 1))
	case "stats":
		err = s.v.stats(s.ctx)
	case "help":
		for _, c := range shellCommands {
			fmt.Fprintf(w, "  %-8s %s\n", c.Text, c.Description)
		}
	case "quit", "exit":
		fmt.Fprintln(w, "Valete!")
		return true
	default:
		fmt.Fprintf(w, "Unknown command: %s\n", cmd)
	}
	if err != nil {
		fmt.Fprintf(w, "%s %v\n", errorColor("error:"), err)
	}
	return false
}

func intArg(args []string, i int) int {
	if i >= len(args) {
		return 0
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0
	}
	return n
}

// complete suggests commands for the first word and indexed words for the argument of the
// word commands.
func (s *shell) complete(d prompt.Document) []prompt.Suggest {
	before := d.TextBeforeCursor()
	fields := strings.Fields(before)
	current := d.GetWordBeforeCursor()
	if len(fields) == 0 || (len(fields) == 1 && current != "") {
		return prompt.FilterHasPrefix(shellCommands, current, true)
	}
	switch fields[0] {
	case "freq", "frequency", "snip", "snippets", "search":
	default:
		return nil
	}
	if current == "" {
		return nil
	}
	words, err := s.v.idx.SearchWords(s.ctx, current, 10)
	if err != nil {
		return nil
	}
	out := make([]prompt.Suggest, 0, len(words))
	for _, w := range words {
		out = append(out, prompt.Suggest{Text: w})
	}
	return out
}

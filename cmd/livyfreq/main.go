package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/japaniel/livyfreq/pkg/config"
	"github.com/sirupsen/logrus"
)

var (
	infoColor    = color.New(color.FgCyan).SprintFunc()
	successColor = color.New(color.FgGreen).SprintFunc()
	errorColor   = color.New(color.FgRed).SprintFunc()
	warnColor    = color.New(color.FgYellow).SprintFunc()
	wordColor    = color.New(color.FgYellow, color.Bold).SprintFunc()
)

func main() {
	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// app carries what every subcommand needs.
type app struct {
	cfg    *config.Config
	log    *logrus.Logger
	stdout io.Writer
	stderr io.Writer
}

func newLogger(level string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "%s invalid configuration: %v\n", errorColor("error:"), err)
		return 2
	}
	a := &app{cfg: cfg, log: newLogger(cfg.App.LogLevel, stderr), stdout: stdout, stderr: stderr}

	var err error
	switch args[0] {
	case "download":
		err = a.cmdDownload(ctx, args[1:])
	case "extract":
		err = a.cmdExtract(ctx, args[1:])
	case "analyze":
		err = a.cmdAnalyze(ctx, args[1:])
	case "all":
		err = a.cmdAll(ctx, args[1:])
	case "query":
		err = a.cmdQuery(ctx, args[1:])
	case "shell":
		err = a.cmdShell(ctx, args[1:])
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "%s unknown command %q\n\n", errorColor("error:"), args[0])
		usage(stderr)
		return 2
	}
	if err != nil {
		if err == errUsage {
			return 2
		}
		fmt.Fprintf(stderr, "%s %v\n", errorColor("error:"), err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: livyfreq <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  download                       Fetch the raw book pages")
	fmt.Fprintln(w, "  extract                        Convert raw pages into plain text")
	fmt.Fprintln(w, "  analyze                        Build the word index from the texts")
	fmt.Fprintln(w, "  all                            download, extract and analyze")
	fmt.Fprintln(w, "  query freq <word>              Frequency of a word in every book")
	fmt.Fprintln(w, "  query snippets <word>          Stored contexts of a word")
	fmt.Fprintln(w, "  query compare <w1,w2,...>      Relative frequency of up to 5 words side by side")
	fmt.Fprintln(w, "  query position [-late]         Words ordered by mean position")
	fmt.Fprintln(w, "  query search <prefix>          Words starting with prefix")
	fmt.Fprintln(w, "  query stats                    Corpus totals")
	fmt.Fprintln(w, "  shell                          Interactive query shell")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'livyfreq <command> -h' for command flags. Settings are read from the")
	fmt.Fprintln(w, "environment (LIVY_*) and an optional .env file.")
}

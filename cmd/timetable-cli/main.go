package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/internal/timetable"
)

const (
	exitOK = iota
	exitUsage
	exitConfiguration
	exitIncomplete
)

type options struct {
	input       string
	output      string
	granularity int
	backtracks  int
	timeout     time.Duration
	workers     int
	verbose     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return exitUsage
	}

	logr := zap.NewNop()
	if opts.verbose {
		if logr, err = zap.NewDevelopment(); err != nil {
			fmt.Fprintf(stderr, "init logger: %v\n", err)
			return exitUsage
		}
		defer logr.Sync() //nolint:errcheck
	}

	input, err := readInput(opts.input)
	if err != nil {
		fmt.Fprintf(stderr, "read input: %v\n", err)
		return exitUsage
	}

	result, err := timetable.NewEngine(logr).Schedule(ctx, input, timetable.Options{
		Granularity:   opts.granularity,
		MaxBacktracks: opts.backtracks,
		Timeout:       opts.timeout,
		Workers:       opts.workers,
	})
	if err != nil {
		var cfgErr *timetable.ConfigurationError
		if errors.As(err, &cfgErr) {
			writeJSON(stderr, cfgErr) //nolint:errcheck
			return exitConfiguration
		}
		fmt.Fprintf(stderr, "schedule: %v\n", err)
		return exitUsage
	}

	if err := writeResult(opts.output, stdout, result); err != nil {
		fmt.Fprintf(stderr, "write result: %v\n", err)
		return exitUsage
	}

	fmt.Fprintf(stderr, "%s: %d assignments, %d unresolved, %d backtracks\n",
		result.Status, len(result.Assignments), len(result.Unresolved), result.Stats.Backtracks)
	if result.Status != models.RunComplete {
		return exitIncomplete
	}
	return exitOK
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("timetable-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.input, "input", "", "Path to the scheduling input JSON ('-' for stdin)")
	fs.StringVar(&opts.output, "output", "-", "Path to write the result JSON ('-' for stdout)")
	fs.IntVar(&opts.granularity, "granularity", timetable.DefaultGranularity, "Slot granularity in minutes")
	fs.IntVar(&opts.backtracks, "max-backtracks", 0, "Backtrack budget (0 derives it from the task count, negative disables)")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Wall clock budget for the run")
	fs.IntVar(&opts.workers, "workers", 0, "Candidate generation workers (0 uses every CPU)")
	fs.BoolVar(&opts.verbose, "v", false, "Log engine progress to stderr")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.input == "" {
		fmt.Fprintln(stderr, "-input is required")
		fs.Usage()
		return opts, errors.New("missing input")
	}
	return opts, nil
}

func readInput(path string) (models.SchedulingInput, error) {
	var input models.SchedulingInput
	var reader io.Reader = os.Stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return input, err
		}
		defer file.Close() //nolint:errcheck
		reader = file
	}
	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		return input, fmt.Errorf("decode %s: %w", path, err)
	}
	return input, nil
}

// createOutput opens the result file; replaced in tests.
var createOutput = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// writeResult writes to stdout for "" or "-". A file is only reported written once Close succeeds.
func writeResult(path string, stdout io.Writer, result *timetable.Result) error {
	if path == "" || path == "-" {
		return writeJSON(stdout, result)
	}
	file, err := createOutput(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := writeJSON(file, result); err != nil {
		file.Close() //nolint:errcheck
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/dharmasatrya/flightadvisor/internal/config"
	"github.com/dharmasatrya/flightadvisor/internal/logging"
	"github.com/dharmasatrya/flightadvisor/internal/models"
	"github.com/dharmasatrya/flightadvisor/internal/pipeline"
	"github.com/dharmasatrya/flightadvisor/internal/report"
	"github.com/dharmasatrya/flightadvisor/pkg/currency"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitInvalid = 2

	listedFlights = 10
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("flightsearch", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	pdfPath := fs.String("pdf", "", "export results to a PDF file (default name when no path is given)")
	fs.Lookup("pdf").NoOptDefVal = "auto"
	asJSON := fs.Bool("json", false, "print the raw response as JSON")
	noCache := fs.Bool("no-cache", false, "always ask the model again")
	fs.String("log-level", "warn", "log level (debug, info, warn, error)")
	fs.String("log-format", "console", "log format (json or console)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitInvalid
	}
	quietByDefault(fs)

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return exitFailure
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(stderr, "logging error: %v\n", err)
		return exitFailure
	}
	defer func() { _ = logger.Sync() }()

	p, closeCaches, err := pipeline.Build(cfg, pipeline.BuildOptions{NoAnalysisCache: *noCache}, logger)
	if err != nil {
		logger.Error("pipeline setup failed", zap.Error(err))
		fmt.Fprintf(stderr, "setup error: %v\n", err)
		return exitFailure
	}
	defer func() { _ = closeCaches() }()

	raw, err := newPrompter(stdin, stdout).collect()
	if err != nil {
		fmt.Fprintf(stderr, "\ninput aborted: %v\n", err)
		return exitInvalid
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintln(stdout, "\nSearching flights...")
	resp, err := p.Run(ctx, raw)
	if err != nil {
		var invalid *models.InvalidInputError
		if errors.As(err, &invalid) {
			fmt.Fprintf(stderr, "invalid %s: %s\n", invalid.Field, invalid.Reason)
			return exitInvalid
		}
		fmt.Fprintf(stderr, "search failed (%s): %v\n", models.KindOf(err), err)
		return exitFailure
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			fmt.Fprintf(stderr, "encode: %v\n", err)
			return exitFailure
		}
	} else {
		printResponse(stdout, resp)
	}

	if *pdfPath != "" {
		path := *pdfPath
		if path == "auto" {
			path = report.FileName(resp)
		}
		if err := report.WriteFile(path, resp); err != nil {
			fmt.Fprintf(stderr, "pdf export failed: %v\n", err)
			return exitFailure
		}
		fmt.Fprintf(stdout, "\nPDF saved to %s\n", path)
	}

	return exitOK
}

// quietByDefault keeps the interactive session free of info logs unless the
// user asked for them through the flag or the environment.
func quietByDefault(fs *pflag.FlagSet) {
	for _, name := range []string{"log-level", "log-format"} {
		env := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		if !fs.Changed(name) && os.Getenv(env) == "" {
			_ = fs.Set(name, fs.Lookup(name).DefValue)
		}
	}
}

func printResponse(w io.Writer, resp *models.PipelineResponse) {
	req := resp.SearchParameters
	fmt.Fprintf(w, "\n%d flight(s) found for %s -> %s on %s", resp.Metadata.ResultCount, req.Origin, req.Destination, req.DepartureDate)
	if req.ReturnDate != nil {
		fmt.Fprintf(w, ", returning %s", req.ReturnDate)
	}
	fmt.Fprintln(w)
	if resp.Metadata.Partial {
		fmt.Fprintln(w, "(results are partial: the provider rate limit was reached)")
	}

	a := resp.Analysis
	fmt.Fprintln(w, "\n== Analysis ==")
	if a.Summary.Message != "" {
		fmt.Fprintln(w, a.Summary.Message)
	}
	if a.Summary.PriceRange != nil && len(resp.Flights) > 0 {
		code := resp.Flights[0].Currency
		fmt.Fprintf(w, "Prices: %s - %s | average duration %s\n",
			currency.FormatFloat(a.Summary.PriceRange.Min, code),
			currency.FormatFloat(a.Summary.PriceRange.Max, code),
			a.Summary.AvgDuration,
		)
	}
	for i, rec := range a.Recommendations {
		fmt.Fprintf(w, "%d. %s (flight #%d)\n   %s\n", i+1, rec.Recommendation, rec.FlightIndex+1, rec.Details)
	}
	if a.Insights.General != "" {
		fmt.Fprintf(w, "Insight: %s\n", a.Insights.General)
	}

	if len(resp.Flights) == 0 {
		return
	}
	fmt.Fprintf(w, "\n== Cheapest %d ==\n", min(listedFlights, len(resp.Flights)))
	for i, it := range resp.Flights {
		if i == listedFlights {
			break
		}
		first := it.Segments[0]
		last := it.Segments[len(it.Segments)-1]
		fmt.Fprintf(w, "#%d %s  %s  %s %s -> %s %s  %s, %d stop(s)\n",
			i+1,
			currency.Format(it.Price, it.Currency),
			it.AirlineName(),
			first.Departure.Airport, first.Departure.At,
			last.Arrival.Airport, last.Arrival.At,
			it.TotalDuration, it.StopCount,
		)
		if it.BookingLink != nil {
			fmt.Fprintf(w, "   %s\n", *it.BookingLink)
		}
	}
}

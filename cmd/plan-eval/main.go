package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/nutriplan/internal/planeval"
	"github.com/okian/nutriplan/pkg/logger"
)

// Default configuration constants.
const (
	defaultWorkers = 4
	defaultTimeout = 10 * time.Second
	runTimeout     = 5 * time.Minute
)

func main() {
	var (
		input   = flag.String("input", "", "YAML file with candidate plans")
		baseURL = flag.String("url", "", "Base URL of the service; empty scores locally")
		userID  = flag.String("user", "", "User id remote plans are stored under")
		top     = flag.Int("top", 0, "Number of ranked plans to print, 0 for all")
		workers = flag.Int("workers", defaultWorkers, "Concurrent submissions in remote mode")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose = flag.Bool("verbose", false, "Log every scored plan")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help || *input == "" {
		planeval.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.SetOutput(os.Stderr)
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	cfg := planeval.Config{
		BaseURL: *baseURL,
		Input:   *input,
		UserID:  *userID,
		Top:     *top,
		Workers: *workers,
		Timeout: *timeout,
		Verbose: *verbose,
	}
	if err := planeval.Run(ctx, cfg, os.Stdout); err != nil {
		os.Stderr.WriteString("plan evaluation failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: cancel already called
	}
}

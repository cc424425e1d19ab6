package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bowmanjd/sucker/manifest"
	log "github.com/sirupsen/logrus"
)

func printFatalError(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

func main() {
	cfg, err := parseArgs()
	if err != nil {
		printFatalError(err)
		flag.Usage()
		os.Exit(1)
	}

	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	// Read the full manifest up front: the header is validated and the
	// record count is known before any network activity.
	records, err := readManifest(cfg.CSVPath)
	if err != nil {
		printFatalError(err)
		os.Exit(2)
	}

	// An interrupt cancels in-flight fetches; undispatched records are not
	// attempted.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcomes := processRecords(ctx, cfg, records)

	if err := writeRemapCSV(cfg.CSVPath, outcomes); err != nil {
		log.WithError(err).Warnf("failed to write importable csv")
	}

	if failed := summarize(os.Stderr, outcomes); failed > 0 {
		os.Exit(3)
	}
}

func readManifest(path string) ([]manifest.Record, error) {
	r, err := manifest.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return r.ReadAll()
}

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

const version = "0.1.0"

type Config struct {
	CSVPath string // Path of the CSV manifest listing downloads.
	OutDir  string // Directory to save fetched files to.
	Verbose bool   // True for verbose output.
	Jobs    int    // Number of downloads to run in parallel.
}

func parseArgs() (*Config, error) {
	verbose := flag.Bool("v", false, "verbose output")
	jobs := flag.Int("j", 1, "jobs")
	outDir := flag.String("o", "out", "output directory")

	flag.Usage = usage
	flag.Parse()

	if len(flag.Args()) < 1 {
		return nil, fmt.Errorf("missing required argument: csv_file")
	}
	csvPath := flag.Args()[0]

	if *jobs < 1 {
		return nil, fmt.Errorf("jobs must be at least 1")
	}

	return &Config{
		CSVPath: csvPath,
		OutDir:  *outDir,
		Verbose: *verbose,
		Jobs:    *jobs,
	}, nil
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [option]... <csv_file>\n", filepath.Base(os.Args[0]))
	fmt.Fprintf(flag.CommandLine.Output(), "Bulk downloads the URLs listed in a CSV manifest.\n")
	flag.PrintDefaults()
}

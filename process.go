package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bowmanjd/sucker/download"
	"github.com/bowmanjd/sucker/manifest"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Status classifies how processing one record ended.
type Status int

const (
	StatusPending Status = iota // never attempted (interrupted run)
	StatusWritten
	StatusSkipped // no url in the row
	StatusFetchFailed
	StatusWriteFailed
)

// Outcome is the result of one record's fetch+write attempt.
type Outcome struct {
	Record   manifest.Record
	Status   Status
	Filename string // relative to the output directory, set when written
	Err      error  // set on the failed statuses
}

// processRecords fetches and writes every record, cfg.Jobs at a time. A
// record's failure is captured in its outcome and never aborts the batch.
func processRecords(ctx context.Context, cfg *Config, records []manifest.Record) []Outcome {
	s := download.NewStore(cfg.OutDir)
	hc := &http.Client{}
	bar := newProgressBar(len(records))

	outcomes := make([]Outcome, len(records))
	for i := range records {
		outcomes[i] = Outcome{Record: records[i], Status: StatusPending}
	}

	g := &errgroup.Group{}

	startGoroutines := func() {
		indexChan := make(chan int)
		defer close(indexChan)

		// Create a set of goroutines to process records in parallel. Each
		// worker owns the outcome slots it is handed, so no locking is
		// needed.
		for i := 0; i < cfg.Jobs; i++ {
			g.Go(func() error {
				for idx := range indexChan {
					outcomes[idx] = processRecord(ctx, s, hc, records[idx])
					bar.Add(1)
				}
				return nil
			})
		}

		for i := range records {
			select {
			case <-ctx.Done():
				// Operation aborted. Return early to execute the deferred
				// channel close.
				return

			case indexChan <- i:
			}
		}
	}

	startGoroutines()
	g.Wait()
	bar.Finish()

	return outcomes
}

// processRecord performs the fetch+write round trip for a single record.
func processRecord(ctx context.Context, s *download.Store, hc *http.Client, rec manifest.Record) Outcome {
	if rec.URL == "" {
		log.Warnf("skipping %s (sku=%s): no url", rec.Name, rec.SKU)
		return Outcome{Record: rec, Status: StatusSkipped}
	}

	header := http.Header{}
	header.Set("User-Agent", "sucker/"+version)

	b, contentType, err := download.Get(ctx, hc, rec.URL, header)
	if err != nil {
		log.WithError(err).Errorf("failed to fetch record: url=%s", rec.URL)
		return Outcome{Record: rec, Status: StatusFetchFailed, Err: err}
	}

	filename, err := s.Save(rec, contentType, b)
	if err != nil {
		log.WithError(err).Errorf("failed to save record: url=%s", rec.URL)
		return Outcome{Record: rec, Status: StatusWriteFailed, Err: err}
	}

	return Outcome{Record: rec, Status: StatusWritten, Filename: filename}
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("downloading"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
	)
}

// summarize prints one line per record that did not succeed, followed by the
// final counts. It returns the number of failed records; skipped rows do not
// count as failures.
func summarize(w io.Writer, outcomes []Outcome) int {
	var written, skipped, failed int

	for _, o := range outcomes {
		switch o.Status {
		case StatusWritten:
			written++
		case StatusSkipped:
			skipped++
		case StatusFetchFailed, StatusWriteFailed:
			failed++
			fmt.Fprintf(w, "failed: name=%s sku=%s url=%s: %v\n",
				o.Record.Name, o.Record.SKU, o.Record.URL, o.Err)
		case StatusPending:
			failed++
			fmt.Fprintf(w, "not attempted: name=%s sku=%s url=%s\n",
				o.Record.Name, o.Record.SKU, o.Record.URL)
		}
	}

	fmt.Fprintf(w, "%d written, %d skipped, %d failed\n", written, skipped, failed)
	return failed
}

// writeRemapCSV writes an importable copy of the input CSV next to it, with
// each successfully written record's URL replaced by its local filename.
// Skipped and failed rows keep their original URL value.
func writeRemapCSV(csvPath string, outcomes []Outcome) error {
	dir, base := filepath.Split(csvPath)
	outPath := filepath.Join(dir, "importable_"+base)

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Name", "SKU", "URL"}); err != nil {
		return err
	}
	for _, o := range outcomes {
		value := o.Record.URL
		if o.Status == StatusWritten {
			value = o.Filename
		}
		if err := w.Write([]string{o.Record.Name, o.Record.SKU, value}); err != nil {
			return err
		}
	}
	w.Flush()

	return w.Error()
}

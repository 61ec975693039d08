// cmd/tools/storecopy/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/codr1/Ensaios/internal/booking"
	"github.com/codr1/Ensaios/internal/config"
	"github.com/codr1/Ensaios/internal/store"
	"github.com/codr1/Ensaios/internal/store/backend"
)

var errDestinationNotEmpty = errors.New("destination already has rows")

func main() {
	var (
		fromDriver = flag.String("from-driver", config.StoreDriverCSV, "Source store driver (csv, sqlite)")
		from       = flag.String("from", "", "Source store filename")
		toDriver   = flag.String("to-driver", config.StoreDriverSQLite, "Destination store driver (csv, sqlite)")
		to         = flag.String("to", "", "Destination store filename")
		normalize  = flag.Bool("normalize", true, "Parse rows, assign ids and drop malformed or duplicate rows")
		force      = flag.Bool("force", false, "Overwrite a destination that already has rows")
		timeout    = flag.Duration("timeout", 30*time.Second, "Timeout for each store call")
	)
	flag.Parse()

	if *from == "" || *to == "" {
		log.Println("-from and -to are required:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	src, srcCloser, err := backend.Open(config.StoreConfig{Driver: *fromDriver, Filename: *from, Timeout: *timeout})
	if err != nil {
		log.Fatalf("Failed to open source: %v", err)
	}
	defer srcCloser.Close()

	dst, dstCloser, err := backend.Open(config.StoreConfig{Driver: *toDriver, Filename: *to, Timeout: *timeout})
	if err != nil {
		log.Fatalf("Failed to open destination: %v", err)
	}
	defer dstCloser.Close()

	result, err := copyRows(context.Background(), src, dst, *normalize, *force)
	if err != nil {
		log.Fatalf("Copy failed: %v", err)
	}
	log.Printf("Copied %d rows (%d skipped) from %s to %s\n", result.Copied, result.Skipped, *from, *to)
}

type copyResult struct {
	Copied  int
	Skipped int
}

func copyRows(ctx context.Context, src, dst store.Store, normalize, force bool) (copyResult, error) {
	snapshot, err := src.LoadAll(ctx)
	if err != nil {
		return copyResult{}, fmt.Errorf("read source: %w", err)
	}

	rows := snapshot.Rows
	result := copyResult{}
	if normalize {
		ledger, err := booking.NewLedger(src)
		if err != nil {
			return copyResult{}, err
		}
		report := ledger.Load(snapshot.Rows)
		for _, rowErr := range report.Errors {
			log.Printf("Skipping %v\n", rowErr)
		}
		result.Skipped = report.Skipped

		rows = rows[:0:0]
		for _, b := range ledger.All() {
			rows = append(rows, b.Row())
		}
	}

	current, err := dst.LoadAll(ctx)
	if err != nil {
		return copyResult{}, fmt.Errorf("read destination: %w", err)
	}
	if len(current.Rows) > 0 && !force {
		return copyResult{}, fmt.Errorf("%w (%d rows); use -force to overwrite", errDestinationNotEmpty, len(current.Rows))
	}

	if _, err := dst.ReplaceAll(ctx, rows, current.Revision); err != nil {
		return copyResult{}, fmt.Errorf("write destination: %w", err)
	}
	result.Copied = len(rows)
	return result, nil
}

package main

import (
	"flag"
	"flash-chat/domain"
	"flash-chat/infrastructure/storage"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	collection := flag.String("collection", domain.DefaultCollection, "Collection to dump")
	after := flag.String("after", "", "Only show records after this key")
	limit := flag.Int("limit", 0, "Maximum number of records, 0 for all")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	records, err := storage.NewLog(db, slog.Default()).Scan(*collection, *after, *limit)
	if err != nil {
		log.Fatal(err)
	}
	render(os.Stdout, records)
}

// render prints one row per record. Records that do not decode into a
// message are flagged instead of skipped.
func render(out io.Writer, records []domain.Record) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Key", "Sender", "Message", "Status"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, r := range records {
		message, err := domain.DecodeRecord(r)
		if err != nil {
			table.Append([]string{r.Key, "-", "-", "MALFORMED"})
			continue
		}
		table.Append([]string{r.Key, message.Sender, message.Body, "OK"})
	}
	table.Render()
	fmt.Fprintf(out, "%d record(s)\n", len(records))
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil {
		// A crashed writer leaves a log that must be truncated once in write mode
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}
			_ = db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}

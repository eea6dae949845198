// Package output writes the finished dataset and derived tables, and
// optionally uploads them to object storage.
package output

import (
	"fmt"

	"github.com/gocarina/gocsv"

	"github.com/courtside-labs/gamelog-backfill/internal/checkpoint"
)

// WriteCSV marshals rows, a slice of csv-tagged structs, and atomically
// replaces path with the result. A header is written even for zero rows.
func WriteCSV(path string, rows interface{}) error {
	data, err := gocsv.MarshalBytes(rows)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := checkpoint.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

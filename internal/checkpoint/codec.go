package checkpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/courtside-labs/gamelog-backfill/internal/dataset"
)

// processedDocument is the on-disk form of the processed half.
type processedDocument struct {
	SavedAt   time.Time            `json:"saved_at"`
	Processed []dataset.Identifier `json:"processed"`
}

// EncodeRecords renders records as CSV with a header row. An empty slice
// still produces the header.
func EncodeRecords(records []dataset.Record) ([]byte, error) {
	if records == nil {
		records = []dataset.Record{}
	}
	data, err := gocsv.MarshalBytes(&records)
	if err != nil {
		return nil, fmt.Errorf("encoding records: %w", err)
	}
	return data, nil
}

// DecodeRecords parses the output of EncodeRecords. Empty input and a
// header-only document both decode to zero records.
func DecodeRecords(data []byte) ([]dataset.Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []dataset.Record
	if err := gocsv.UnmarshalBytes(data, &records); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding records: %w", err)
	}
	return records, nil
}

// EncodeProcessed renders the processed set and save time as JSON.
func EncodeProcessed(processed []dataset.Identifier, savedAt time.Time) ([]byte, error) {
	if processed == nil {
		processed = []dataset.Identifier{}
	}
	data, err := json.Marshal(processedDocument{SavedAt: savedAt, Processed: processed})
	if err != nil {
		return nil, fmt.Errorf("encoding processed set: %w", err)
	}
	return data, nil
}

// DecodeProcessed parses the output of EncodeProcessed.
func DecodeProcessed(data []byte) ([]dataset.Identifier, time.Time, error) {
	var doc processedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, time.Time{}, fmt.Errorf("decoding processed set: %w", err)
	}
	return doc.Processed, doc.SavedAt, nil
}

// encodeSnapshot encodes both halves of s.
func encodeSnapshot(s *Snapshot) (records, processed []byte, err error) {
	records, err = EncodeRecords(s.Records)
	if err != nil {
		return nil, nil, err
	}
	processed, err = EncodeProcessed(s.Processed, s.SavedAt)
	if err != nil {
		return nil, nil, err
	}
	return records, processed, nil
}

// decodeSnapshot rebuilds a snapshot from both halves and reconciles it.
func decodeSnapshot(records, processed []byte) (*Snapshot, error) {
	recs, err := DecodeRecords(records)
	if err != nil {
		return nil, err
	}
	ids, savedAt, err := DecodeProcessed(processed)
	if err != nil {
		return nil, err
	}
	s := &Snapshot{Records: recs, Processed: ids, SavedAt: savedAt}
	s.Reconcile()
	return s, nil
}

package block

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// ///////////////////////////////////////////////
// JSONL Types
// ///////////////////////////////////////////////

// logEntry is the subset of a Claude Code conversation record needed to
// decide whether it marks billable activity. Pointer fields distinguish a
// missing or null value from a zero value.
type logEntry struct {
	// Timestamp is the ISO-8601 time the record was written.
	Timestamp *string `json:"timestamp"`
	// IsSidechain marks sub-agent traffic, which does not open a block.
	IsSidechain json.RawMessage `json:"isSidechain"`
	// Message carries the API usage for assistant turns.
	Message *struct {
		Usage *struct {
			InputTokens  *float64 `json:"input_tokens"`
			OutputTokens *float64 `json:"output_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

// activity returns the record's timestamp if it counts as activity.
func (e *logEntry) activity() (time.Time, bool) {
	if e.Message == nil || e.Message.Usage == nil {
		return time.Time{}, false
	}
	if e.Message.Usage.InputTokens == nil || e.Message.Usage.OutputTokens == nil {
		return time.Time{}, false
	}
	if string(e.IsSidechain) == "true" {
		return time.Time{}, false
	}
	if e.Timestamp == nil {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, *e.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// ///////////////////////////////////////////////
// Extraction
// ///////////////////////////////////////////////

// ReadTimestamps opens the JSONL file at path and returns the timestamp of
// every record that counts as activity, in file order.
func ReadTimestamps(path string) ([]time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening JSONL file: %w", err)
	}
	defer f.Close()
	return ScanTimestamps(f)
}

// ScanTimestamps reads newline-delimited JSON from r. Blank lines, malformed
// JSON, and records that fail the activity checks are skipped.
func ScanTimestamps(r io.Reader) ([]time.Time, error) {
	var out []time.Time
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry logEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		if ts, ok := entry.activity(); ok {
			out = append(out, ts)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning JSONL file: %w", err)
	}
	return out, nil
}

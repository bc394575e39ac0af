package block

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestScanTimestamps(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "assistant turn with usage",
			input: `{"type":"assistant","timestamp":"2025-01-15T10:00:00.000Z","message":{"usage":{"input_tokens":100,"output_tokens":50}}}`,
			want:  []string{"2025-01-15T10:00:00Z"},
		},
		{
			name:  "zero token counts still count",
			input: `{"timestamp":"2025-01-15T10:00:00Z","message":{"usage":{"input_tokens":0,"output_tokens":0}}}`,
			want:  []string{"2025-01-15T10:00:00Z"},
		},
		{
			name:  "explicit non-sidechain",
			input: `{"timestamp":"2025-01-15T10:00:00Z","isSidechain":false,"message":{"usage":{"input_tokens":1,"output_tokens":1}}}`,
			want:  []string{"2025-01-15T10:00:00Z"},
		},
		{
			name:  "sidechain skipped",
			input: `{"timestamp":"2025-01-15T10:00:00Z","isSidechain":true,"message":{"usage":{"input_tokens":1,"output_tokens":1}}}`,
		},
		{
			name:  "user record without usage",
			input: `{"type":"user","timestamp":"2025-01-15T10:00:00Z","message":{"role":"user","content":"hi"}}`,
		},
		{
			name:  "null usage",
			input: `{"timestamp":"2025-01-15T10:00:00Z","message":{"usage":null}}`,
		},
		{
			name:  "missing output tokens",
			input: `{"timestamp":"2025-01-15T10:00:00Z","message":{"usage":{"input_tokens":1}}}`,
		},
		{
			name:  "null input tokens",
			input: `{"timestamp":"2025-01-15T10:00:00Z","message":{"usage":{"input_tokens":null,"output_tokens":1}}}`,
		},
		{
			name:  "string token count",
			input: `{"timestamp":"2025-01-15T10:00:00Z","message":{"usage":{"input_tokens":"1","output_tokens":1}}}`,
		},
		{
			name:  "missing timestamp",
			input: `{"message":{"usage":{"input_tokens":1,"output_tokens":1}}}`,
		},
		{
			name:  "non-string timestamp",
			input: `{"timestamp":1736935200,"message":{"usage":{"input_tokens":1,"output_tokens":1}}}`,
		},
		{
			name:  "unparseable timestamp",
			input: `{"timestamp":"yesterday","message":{"usage":{"input_tokens":1,"output_tokens":1}}}`,
		},
		{
			name: "malformed and blank lines skipped",
			input: `{"timestamp":"2025-01-15T10:00:00Z","message":{"usage":{"input_tokens":1,"output_tokens":1}}}

{not json
{"timestamp":"2025-01-15T11:30:00+01:00","message":{"usage":{"input_tokens":1,"output_tokens":1}}}`,
			want: []string{"2025-01-15T10:00:00Z", "2025-01-15T10:30:00Z"},
		},
		{
			name:  "empty input",
			input: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ScanTimestamps(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ScanTimestamps: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ScanTimestamps = %v, want %v", got, tt.want)
			}
			for i, w := range tt.want {
				want, _ := time.Parse(time.RFC3339, w)
				if !got[i].Equal(want) {
					t.Errorf("timestamp[%d] = %s, want %s", i, got[i].UTC().Format(time.RFC3339), w)
				}
			}
		})
	}
}

func TestScanTimestamps_LargeLine(t *testing.T) {
	// A line past the initial 64KB buffer but under the cap still parses.
	pad := strings.Repeat("x", 200*1024)
	line := `{"timestamp":"2025-01-15T10:00:00Z","pad":"` + pad + `","message":{"usage":{"input_tokens":1,"output_tokens":1}}}`

	got, err := ScanTimestamps(strings.NewReader(line + "\n"))
	if err != nil {
		t.Fatalf("ScanTimestamps: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("ScanTimestamps returned %d timestamps, want 1", len(got))
	}
}

func TestReadTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	content := usageLine(at(9, 0)) + "\n" + usageLine(at(9, 30)) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadTimestamps(path)
	if err != nil {
		t.Fatalf("ReadTimestamps: %v", err)
	}
	if len(got) != 2 || !got[0].Equal(at(9, 0)) || !got[1].Equal(at(9, 30)) {
		t.Errorf("ReadTimestamps = %v, want [09:00 09:30] in file order", got)
	}
}

func TestReadTimestamps_Missing(t *testing.T) {
	if _, err := ReadTimestamps(filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Error("ReadTimestamps on a missing file succeeded, want error")
	}
}

package ratecsv

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestNewBOMSkippingReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("COUNTRY/ZONE,A")...),
			expected: "COUNTRY/ZONE,A",
		},
		{
			name:     "file without BOM",
			input:    []byte("COUNTRY/ZONE,A"),
			expected: "COUNTRY/ZONE,A",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "partial BOM kept",
			input:    []byte{0xEF, 0xBB, 'a'},
			expected: string([]byte{0xEF, 0xBB, 'a'}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(NewBOMSkippingReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestReadText(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("COUNTRY/ZONE,A\nUS,caf\xe9\n")...)

	got, err := ReadText(bytes.NewReader(input), 1024)
	if err != nil {
		t.Fatalf("ReadText() error = %v", err)
	}
	if want := "COUNTRY/ZONE,A\nUS,caf\uFFFD\n"; got != want {
		t.Errorf("ReadText() = %q, want %q", got, want)
	}
}

func TestReadText_Limit(t *testing.T) {
	body := strings.Repeat("x", 100)

	if _, err := ReadText(strings.NewReader(body), 100); err != nil {
		t.Errorf("ReadText() at limit error = %v", err)
	}
	_, err := ReadText(strings.NewReader(body), 99)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("ReadText() over limit error = %v, want ErrTooLarge", err)
	}
	if _, err := ReadText(strings.NewReader(body), 0); err != nil {
		t.Errorf("ReadText() without limit error = %v", err)
	}
}

func TestHasCSVExtension(t *testing.T) {
	tests := map[string]bool{
		"rates.csv":     true,
		"RATES.CSV":     true,
		"dhl.2024.Csv":  true,
		"rates.xlsx":    false,
		"rates.csv.txt": false,
		"csv":           false,
		"":              false,
	}
	for name, want := range tests {
		if got := HasCSVExtension(name); got != want {
			t.Errorf("HasCSVExtension(%q) = %v, want %v", name, got, want)
		}
	}
}

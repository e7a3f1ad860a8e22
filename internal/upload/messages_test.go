package upload

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/vendorrates/internal/ratecsv"
	"github.com/JonMunkholm/vendorrates/internal/rates"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"in progress", ErrUploadInProgress, "UPL001"},
		{"busy", ErrTooManyUploads, "UPL002"},
		{"no data", ErrNoData, "VAL001"},
		{"invalid vendor", fmt.Errorf("%w: %q", rates.ErrInvalidName, "A/B"), "VAL002"},
		{"file too large", fmt.Errorf("read upload: %w", ratecsv.ErrTooLarge), "FILE001"},
		{"not csv", ratecsv.ErrNotCSV, "FILE002"},
		{"empty file", ErrEmptyFile, "FILE003"},
		{"no file", ErrNoFile, "FILE004"},
		{"postgres permission", errors.New("ERROR: permission denied for table vendor_rates (SQLSTATE 42501)"), "STORE002"},
		{"redis noperm", errors.New("NOPERM this user has no permissions to run the 'hset' command"), "STORE002"},
		{"deadline", fmt.Errorf("put DHL: %w", context.DeadlineExceeded), "STORE003"},
		{"dial timeout", errors.New("dial tcp 10.0.0.1:5432: i/o timeout"), "STORE003"},
		{"refused", errors.New("dial tcp 127.0.0.1:6379: connect: connection refused"), "STORE001"},
		{"closed store", rates.ErrClosed, "STORE001"},
		{"rate limit", errors.New("rate limit exceeded"), "RATE001"},
		{"unknown", errors.New("some random internal error"), "ERR000"},
		{"case insensitive", errors.New("Connection Reset by peer"), "STORE001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestMapError_NoDataMessage(t *testing.T) {
	got := MapError(ErrNoData).Message
	want := "No data to submit. Please upload a CSV file first."
	if got != want {
		t.Errorf("MapError(ErrNoData).Message = %q, want %q", got, want)
	}
}

func TestUserMessage_String(t *testing.T) {
	tests := []struct {
		msg  UserMessage
		want string
	}{
		{UserMessage{}, ""},
		{UserMessage{Message: "Uploaded 3 rows for DHL."}, "Uploaded 3 rows for DHL."},
		{msgBusy, "System is busy processing other uploads (Code: UPL002). Please wait a moment and try again"},
	}
	for _, tt := range tests {
		if got := tt.msg.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrNoData, true},
		{errors.New("random internal error xyz"), false},
	}
	for _, tt := range tests {
		if got := IsUserFacing(tt.err); got != tt.want {
			t.Errorf("IsUserFacing(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

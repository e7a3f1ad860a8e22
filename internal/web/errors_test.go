package web

import (
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/JonMunkholm/vendorrates/internal/ratecsv"
	"github.com/JonMunkholm/vendorrates/internal/rates"
	"github.com/JonMunkholm/vendorrates/internal/upload"
)

func TestErrorLevel(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   slog.Level
	}{
		{"wrong file type", ratecsv.ErrNotCSV, http.StatusBadRequest, slog.LevelWarn},
		{"unknown vendor", rates.ErrNotFound, http.StatusNotFound, slog.LevelWarn},
		{"busy", upload.ErrTooManyUploads, http.StatusServiceUnavailable, slog.LevelError},
		{"unmapped error", errors.New("boom"), http.StatusBadRequest, slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorLevel(tt.err, tt.status); got != tt.want {
				t.Errorf("errorLevel(%v, %d) = %v, want %v", tt.err, tt.status, got, tt.want)
			}
		})
	}
}

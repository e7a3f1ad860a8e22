package templates

import (
	"bytes"
	"context"
	"testing"

	"github.com/JonMunkholm/vendorrates/internal/app"
	"github.com/JonMunkholm/vendorrates/internal/ratecsv"
	"github.com/JonMunkholm/vendorrates/internal/table"
	"github.com/JonMunkholm/vendorrates/internal/upload"
	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestLive_NoData(t *testing.T) {
	out := render(t, Live(app.Screen{Vendors: []string{"UPS"}, Selected: "DHL"}))
	assert.Contains(t, out, NoDataMessage)
	assert.Contains(t, out, `action="/vendors/select/UPS"`)
	assert.NotContains(t, out, "<table")
}

func TestLive_TableAndFooter(t *testing.T) {
	rec := ratecsv.Parse("COUNTRY/ZONE,Zone1,Zone2\nUS,10,\nCA,<b>,7\n")
	scr := app.Screen{
		Vendors:  []string{"DHL", "UPS"},
		Selected: "DHL",
		HasData:  true,
		Page:     table.Page(rec, 1, 8),
	}
	out := render(t, Live(scr))

	assert.Contains(t, out, "<th>Country/Zone</th><th>Zone1</th><th>Zone2</th>")
	assert.Contains(t, out, `<td class="empty">-</td>`)
	assert.Contains(t, out, "&lt;b&gt;")
	assert.Contains(t, out, "Total Rows: 2 | Rows per page: 8")
	assert.Contains(t, out, "Page 1 of 1")
	assert.Contains(t, out, `class="tab active"`)
	assert.Contains(t, out, `class="page-prev" disabled`)
	assert.Contains(t, out, `class="page-next" disabled`)
}

func TestUploadPanel_States(t *testing.T) {
	closed := render(t, UploadPanel(upload.DraftState{}, "DHL"))
	assert.Contains(t, closed, "Upload Rates")
	assert.NotContains(t, closed, "<dialog")

	open := render(t, UploadPanel(upload.DraftState{DialogOpen: true}, "DHL"))
	assert.Contains(t, open, "No file chosen")
	assert.Contains(t, open, `placeholder="DHL"`)
	assert.Contains(t, open, ">Submit</button>")

	busy := render(t, UploadPanel(upload.DraftState{
		DialogOpen: true,
		FileName:   "rates.csv",
		Status:     upload.StatusInProgress,
	}, "DHL"))
	assert.Contains(t, busy, "File: rates.csv")
	assert.Contains(t, busy, "disabled>Submitting...")
	assert.Contains(t, busy, "<progress")

	failed := render(t, UploadPanel(upload.DraftState{
		DialogOpen: true,
		Status:     upload.StatusFailed,
		Message:    upload.MapError(upload.ErrTooManyUploads),
	}, "DHL"))
	assert.Contains(t, failed, `class="alert alert-error"`)
	assert.Contains(t, failed, "UPL002")
}

func TestPage_IncludesLiveScript(t *testing.T) {
	out := render(t, Page(app.Screen{Selected: "DHL"}, "DHL"))
	assert.Contains(t, out, "<!DOCTYPE html>")
	assert.Contains(t, out, `new EventSource("/vendors/events")`)
	assert.Contains(t, out, `id="live"`)
	assert.Contains(t, out, `id="upload"`)
}

func TestErrorAlert_Escapes(t *testing.T) {
	out := render(t, ErrorAlert("bad <file>", "Try again.", "FILE002"))
	assert.Contains(t, out, "bad &lt;file&gt;")
	assert.Contains(t, out, "Error code: FILE002")
}

func TestLive_TabPathsAreEscaped(t *testing.T) {
	out := render(t, Live(app.Screen{Vendors: []string{"A%41", "FED EX"}, Selected: "FED EX"}))
	assert.Contains(t, out, `action="/vendors/select/A%2541"`)
	assert.Contains(t, out, `hx-post="/vendors/select/FED%20EX"`)
	assert.Contains(t, out, `class="tab">A%41</button>`)
	assert.Contains(t, out, `class="tab active">FED EX</button>`)
}

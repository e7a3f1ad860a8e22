// Package templates renders the vendor rates UI as templ components.
//
// Markup lives in vendors.templ; regenerate vendors_templ.go with
//
//	templ generate ./internal/web/templates
package templates

import (
	"net/url"

	"github.com/JonMunkholm/vendorrates/internal/upload"
)

// Element ids used as htmx swap targets.
const (
	LiveID   = "live"
	UploadID = "upload"
)

// NoDataMessage is shown when the selected vendor has no cached record.
const NoDataMessage = "No data available for the selected vendor"

func selectPath(name string) string {
	return "/vendors/select/" + url.PathEscape(name)
}

func tabClass(name, selected string) string {
	if name == selected {
		return "tab active"
	}
	return "tab"
}

func statusClass(s upload.Status) string {
	switch s {
	case upload.StatusSucceeded:
		return "alert alert-success"
	case upload.StatusFailed, upload.StatusRejected:
		return "alert alert-error"
	}
	return "alert alert-info"
}

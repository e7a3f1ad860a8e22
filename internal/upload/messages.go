// Package upload holds the rate-sheet upload draft and submits it to the
// vendor store.
//
// # Error Codes
//
// Failures shown to operators carry a code they can quote to support:
//
//	STORE001  store unreachable or closed       retry shortly
//	STORE002  store refused the write           check store credentials
//	STORE003  store write timed out             retry
//	UPL001    an upload is already running      wait for it to finish
//	UPL002    all write slots busy              retry shortly
//	VAL001    nothing parsed to submit          choose a CSV file first
//	VAL002    vendor name not usable as an id   pick a different name
//	VAL003    no rates stored for the vendor    upload a sheet first
//	FILE001   file over the size limit          split the file
//	FILE002   not a .csv file                   choose a .csv file
//	FILE003   file had no header line           check the file contents
//	FILE004   request carried no file           choose a file
//	RATE001   request rate limit hit            wait a moment
//	ERR000    anything else                     see server logs
//
// Patterns are matched case-insensitively against the error text and the
// first match wins, so specific patterns come before general ones.
package upload

import (
	"fmt"
	"strings"
)

// UserMessage is what an operator sees for a failure.
type UserMessage struct {
	Message string // what happened
	Action  string // what to do next
	Code    string // support reference
}

// IsZero reports whether m carries nothing to show.
func (m UserMessage) IsZero() bool {
	return m == UserMessage{}
}

// String renders "Message (Code: X). Action".
func (m UserMessage) String() string {
	if m.Message == "" {
		return ""
	}
	if m.Code == "" {
		return m.Message
	}
	return fmt.Sprintf("%s (Code: %s). %s", m.Message, m.Code, m.Action)
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgInProgress = UserMessage{
		Message: "An upload is already in progress",
		Action:  "Wait for the current upload to finish",
		Code:    "UPL001",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgNoData = UserMessage{
		Message: "No data to submit. Please upload a CSV file first.",
		Action:  "Choose a CSV file before submitting",
		Code:    "VAL001",
	}
	msgStoreDown = UserMessage{
		Message: "Unable to reach the rate store",
		Action:  "Please try again in a few moments",
		Code:    "STORE001",
	}
	msgStoreDenied = UserMessage{
		Message: "The rate store refused the write",
		Action:  "Check the store credentials and permissions",
		Code:    "STORE002",
	}
	msgStoreTimeout = UserMessage{
		Message: "Saving the rates timed out",
		Action:  "Please try again",
		Code:    "STORE003",
	}
)

var errorPatterns = []errorPattern{
	{"upload in progress", msgInProgress},
	{"too many uploads", msgBusy},
	{"no data to submit", msgNoData},
	{"invalid vendor name", UserMessage{
		Message: "Vendor name cannot be used",
		Action:  "Use a shorter name without slashes",
		Code:    "VAL002",
	}},
	{"vendor not found", UserMessage{
		Message: "No data available for the selected vendor",
		Action:  "Upload a rate sheet for this vendor",
		Code:    "VAL003",
	}},

	{"file too large", UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller sheets",
		Code:    "FILE001",
	}},
	{"invalid csv", UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Choose a comma-separated file with a .csv extension",
		Code:    "FILE002",
	}},
	{"empty file", UserMessage{
		Message: "The file has no header row",
		Action:  "Check that the first line lists the column names",
		Code:    "FILE003",
	}},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV file to upload",
		Code:    "FILE004",
	}},

	// Redis reports NOPERM / NOAUTH / WRONGPASS; Postgres reports 42501.
	{"permission denied", msgStoreDenied},
	{"insufficient privilege", msgStoreDenied},
	{"sqlstate 42501", msgStoreDenied},
	{"noperm", msgStoreDenied},
	{"noauth", msgStoreDenied},
	{"wrongpass", msgStoreDenied},

	{"deadline exceeded", msgStoreTimeout},
	{"timeout", msgStoreTimeout},

	{"connection refused", msgStoreDown},
	{"connection reset", msgStoreDown},
	{"broken pipe", msgStoreDown},
	{"no such host", msgStoreDown},
	{"vendor store closed", msgStoreDown},
	{"failed to connect", msgStoreDown},

	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts err into an operator-facing message. A nil error maps
// to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	text := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(text, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// IsUserFacing reports whether err maps to something more specific than
// ERR000.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}

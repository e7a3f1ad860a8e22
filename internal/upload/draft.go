package upload

import (
	"errors"
	"sync"

	"github.com/JonMunkholm/vendorrates/internal/ratecsv"
)

var (
	// ErrUploadInProgress is returned when a draft is already being submitted.
	ErrUploadInProgress = errors.New("upload in progress")

	// ErrNoData is returned when submit is called before a file was parsed.
	ErrNoData = errors.New("no data to submit")

	// ErrNoFile is returned when an upload request carries no file part.
	ErrNoFile = errors.New("no file provided")

	// ErrEmptyFile is returned when a file parses to a record without headers.
	ErrEmptyFile = errors.New("empty file: no header row found")
)

// Status is where a draft is in its lifecycle.
type Status int

const (
	StatusNoFile Status = iota
	StatusReady
	StatusInProgress
	StatusSucceeded
	StatusFailed
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusNoFile:
		return "no_file"
	case StatusReady:
		return "ready"
	case StatusInProgress:
		return "in_progress"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// DraftState is a copy of a draft's fields.
type DraftState struct {
	DialogOpen  bool
	VendorInput string
	FileName    string
	Parsed      *ratecsv.ColumnRecord // nil until a non-empty file is attached
	Status      Status
	Progress    int // 0 or 100; there is no partial progress
	Message     UserMessage
	UploadID    string
}

// InFlight reports whether a submit is running.
func (s DraftState) InFlight() bool {
	return s.Status == StatusInProgress
}

// Draft is the transient upload state of one operator: the dialog flag, the
// chosen file and the last outcome. It is safe for concurrent use so a
// running submit does not block readers.
type Draft struct {
	mu    sync.Mutex
	state DraftState
}

// NewDraft returns a closed, empty draft.
func NewDraft() *Draft {
	return &Draft{}
}

// State returns a copy of the current fields. Parsed is shared and must not
// be modified.
func (d *Draft) State() DraftState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Open shows the upload dialog.
func (d *Draft) Open() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.DialogOpen = true
	if !d.state.InFlight() {
		d.state.Message = UserMessage{}
	}
}

// Close hides the dialog. The parsed file is kept for a later retry.
func (d *Draft) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.DialogOpen = false
}

// Attach stores a parsed file. A record without headers leaves the draft
// with no file and returns ErrEmptyFile.
func (d *Draft) Attach(fileName string, rec ratecsv.ColumnRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.InFlight() {
		return ErrUploadInProgress
	}

	d.state.Message = UserMessage{}
	d.state.Progress = 0
	if rec.IsEmpty() {
		d.state.FileName = ""
		d.state.Parsed = nil
		d.state.Status = StatusNoFile
		return ErrEmptyFile
	}

	d.state.FileName = fileName
	d.state.Parsed = &rec
	d.state.Status = StatusReady
	return nil
}

// Reject records a failure that happened before submission, such as an
// unreadable file. The current file, if any, is kept.
func (d *Draft) Reject(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.InFlight() {
		return
	}
	d.state.Status = StatusRejected
	d.state.Message = MapError(err)
}

// begin moves the draft into StatusInProgress and hands back the record to
// write.
func (d *Draft) begin(vendorInput, uploadID string) (ratecsv.ColumnRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.InFlight() {
		return ratecsv.ColumnRecord{}, ErrUploadInProgress
	}
	d.state.VendorInput = vendorInput
	if d.state.Parsed == nil {
		d.state.Status = StatusRejected
		d.state.Message = msgNoData
		return ratecsv.ColumnRecord{}, ErrNoData
	}

	d.state.Status = StatusInProgress
	d.state.Progress = 0
	d.state.Message = UserMessage{}
	d.state.UploadID = uploadID
	return *d.state.Parsed, nil
}

// reject ends a submit that never reached the store.
func (d *Draft) reject(msg UserMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Status = StatusRejected
	d.state.Message = msg
}

// finish records the store outcome. Success clears the file and closes the
// dialog; failure keeps both so the operator can retry.
func (d *Draft) finish(status Status, msg UserMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.state.Status = status
	d.state.Message = msg
	if status == StatusSucceeded {
		d.state.Parsed = nil
		d.state.FileName = ""
		d.state.DialogOpen = false
		d.state.Progress = 100
		return
	}
	d.state.Progress = 0
}

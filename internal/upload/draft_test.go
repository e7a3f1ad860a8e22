package upload

import (
	"errors"
	"testing"

	"github.com/JonMunkholm/vendorrates/internal/ratecsv"
)

func TestDraft_Lifecycle(t *testing.T) {
	d := NewDraft()
	if st := d.State(); st.Status != StatusNoFile || st.DialogOpen || st.Parsed != nil {
		t.Fatalf("new draft = %+v, want closed with no file", st)
	}

	d.Open()
	if !d.State().DialogOpen {
		t.Error("DialogOpen = false after Open")
	}

	if err := d.Attach("dhl.csv", ratecsv.Parse(sampleCSV)); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	st := d.State()
	if st.Status != StatusReady || st.FileName != "dhl.csv" || st.Parsed == nil {
		t.Errorf("after Attach = %+v, want ready dhl.csv", st)
	}

	d.Close()
	st = d.State()
	if st.DialogOpen {
		t.Error("DialogOpen = true after Close")
	}
	if st.Parsed == nil {
		t.Error("Close dropped the parsed file")
	}
}

func TestDraft_AttachEmptyRecord(t *testing.T) {
	d := NewDraft()
	if err := d.Attach("good.csv", ratecsv.Parse(sampleCSV)); err != nil {
		t.Fatal(err)
	}

	err := d.Attach("blank.csv", ratecsv.Parse("\n  \n"))
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("Attach(empty) error = %v, want ErrEmptyFile", err)
	}
	st := d.State()
	if st.Status != StatusNoFile || st.Parsed != nil || st.FileName != "" {
		t.Errorf("after empty Attach = %+v, want no file", st)
	}
}

func TestDraft_RejectKeepsFile(t *testing.T) {
	d := NewDraft()
	d.Attach("dhl.csv", ratecsv.Parse(sampleCSV))
	d.Reject(ratecsv.ErrNotCSV)

	st := d.State()
	if st.Status != StatusRejected || st.Message.Code != "FILE002" {
		t.Errorf("after Reject = %+v, want rejected FILE002", st)
	}
	if st.Parsed == nil {
		t.Error("Reject dropped the parsed file")
	}
}

func TestDraft_OpenClearsMessage(t *testing.T) {
	d := NewDraft()
	d.Reject(ErrNoFile)
	d.Open()
	if !d.State().Message.IsZero() {
		t.Errorf("Message = %+v after Open, want empty", d.State().Message)
	}
}

func TestStatus_String(t *testing.T) {
	tests := map[Status]string{
		StatusNoFile:     "no_file",
		StatusReady:      "ready",
		StatusInProgress: "in_progress",
		StatusSucceeded:  "succeeded",
		StatusFailed:     "failed",
		StatusRejected:   "rejected",
		Status(99):       "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

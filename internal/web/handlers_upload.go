package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/vendorrates/internal/logging"
	"github.com/JonMunkholm/vendorrates/internal/ratecsv"
	"github.com/JonMunkholm/vendorrates/internal/upload"
	"github.com/JonMunkholm/vendorrates/internal/web/templates"
)

// multipartOverhead is allowed on top of the file size limit for the form
// boundaries and headers.
const multipartOverhead = 1 << 20

// SubmitResponse is the JSON body of a submit.
type SubmitResponse struct {
	UploadID string `json:"upload_id"`
	Vendor   string `json:"vendor,omitempty"`
	Status   string `json:"status"`
	Rows     int    `json:"rows"`
	Message  string `json:"message,omitempty"`
	Action   string `json:"action,omitempty"`
	Code     string `json:"code,omitempty"`
}

func (s *Server) handleOpenUpload(w http.ResponseWriter, r *http.Request) {
	stateFrom(r).OpenUpload()
	s.renderUpload(w, r)
}

func (s *Server) handleCloseUpload(w http.ResponseWriter, r *http.Request) {
	stateFrom(r).CloseUpload()
	s.renderUpload(w, r)
}

// handleUploadFile reads the multipart "file" field, parses it and attaches
// the record to the session's draft. Nothing is written to the store.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	name, rec, err := s.readUpload(w, r)
	if err == nil {
		err = st.AttachFile(name, rec)
	}
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, ratecsv.ErrTooLarge):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, upload.ErrUploadInProgress):
			status = http.StatusConflict
		}
		st.RejectFile(err)
		s.uploadError(w, r, err, status)
		return
	}

	logging.FromContext(r.Context()).Info("rate file attached",
		"file", name,
		"rows", rec.Len(),
		"columns", rec.Width(),
	)
	if wantsJSON(r) {
		d := st.Draft()
		s.writeJSON(w, http.StatusOK, SubmitResponse{Status: d.Status.String(), Rows: rec.Len()})
		return
	}
	s.renderUpload(w, r)
}

// readUpload returns the uploaded file name and its parsed record.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, ratecsv.ColumnRecord, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return "", ratecsv.ColumnRecord{}, fmt.Errorf("%w: more than %d bytes", ratecsv.ErrTooLarge, maxSize)
		}
		return "", ratecsv.ColumnRecord{}, fmt.Errorf("%w: %v", upload.ErrNoFile, err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", ratecsv.ColumnRecord{}, upload.ErrNoFile
	}
	defer file.Close()

	if !ratecsv.HasCSVExtension(header.Filename) {
		return "", ratecsv.ColumnRecord{}, ratecsv.ErrNotCSV
	}

	text, err := ratecsv.ReadText(file, maxSize)
	if err != nil {
		return "", ratecsv.ColumnRecord{}, err
	}
	return header.Filename, ratecsv.Parse(text), nil
}

// handleSubmit writes the session's draft to the store under the vendor
// named in the form.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	// A client that goes away must not abort a write half way; the
	// submitter's own timeout still applies.
	ctx := context.WithoutCancel(r.Context())
	res := stateFrom(r).Submit(ctx, r.FormValue("vendor"))

	if wantsJSON(r) {
		s.writeJSON(w, submitStatus(res), SubmitResponse{
			UploadID: res.UploadID,
			Vendor:   res.Vendor,
			Status:   res.Status.String(),
			Rows:     res.Rows,
			Message:  res.Message.Message,
			Action:   res.Message.Action,
			Code:     res.Message.Code,
		})
		return
	}
	s.renderUpload(w, r)
}

// submitStatus maps a submit outcome to an HTTP status for API clients.
func submitStatus(res upload.Result) int {
	switch {
	case errors.Is(res.Err, upload.ErrUploadInProgress):
		return http.StatusConflict
	case res.Status == upload.StatusSucceeded:
		return http.StatusOK
	case res.Status == upload.StatusRejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusServiceUnavailable
	}
}

// uploadError reports a file problem. htmx clients get the panel, which now
// shows the rejection; API clients get the JSON error.
func (s *Server) uploadError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if isHTMX(r) || !wantsJSON(r) {
		logging.FromContext(r.Context()).Warn("rate file rejected", "error", err)
		s.renderUpload(w, r)
		return
	}
	s.respondError(w, r, err, status)
}

// renderUpload answers htmx with the upload panel and sends plain form posts
// back to the page.
func (s *Server) renderUpload(w http.ResponseWriter, r *http.Request) {
	if !isHTMX(r) {
		http.Redirect(w, r, "/vendors", http.StatusSeeOther)
		return
	}
	st := stateFrom(r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.UploadPanel(st.Draft(), st.DefaultVendor()).Render(r.Context(), w)
}

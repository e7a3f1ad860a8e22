package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/vendorrates/internal/logging"
	"github.com/JonMunkholm/vendorrates/internal/metrics"
	"github.com/JonMunkholm/vendorrates/internal/rates"
	"github.com/google/uuid"
)

// Result describes one Submit call.
type Result struct {
	UploadID string
	Vendor   string // resolved document id; empty when rejected before resolving
	Status   Status
	Rows     int
	Message  UserMessage
	Err      error
	Duration time.Duration
}

// Submitter writes drafts to the vendor store.
type Submitter struct {
	store         rates.Store
	limiter       *Limiter
	metrics       *metrics.Metrics
	defaultVendor string
	timeout       time.Duration
}

// SubmitterConfig holds the Submitter settings that come from configuration.
type SubmitterConfig struct {
	DefaultVendor string        // used for a blank vendor field
	Timeout       time.Duration // bound on a single store write; 0 means none
}

// NewSubmitter returns a Submitter. limiter and m may be nil.
func NewSubmitter(store rates.Store, limiter *Limiter, m *metrics.Metrics, cfg SubmitterConfig) *Submitter {
	if cfg.DefaultVendor == "" {
		cfg.DefaultVendor = rates.DefaultName
	}
	return &Submitter{
		store:         store,
		limiter:       limiter,
		metrics:       m,
		defaultVendor: cfg.DefaultVendor,
		timeout:       cfg.Timeout,
	}
}

// DefaultVendor returns the vendor used for a blank vendor field.
func (s *Submitter) DefaultVendor() string {
	return s.defaultVendor
}

// Submit writes the draft's parsed record under the vendor named by
// vendorInput, or the default vendor when it is blank.
//
// A draft without a parsed file is rejected without touching the store, as
// is a second Submit while one is running. A store failure leaves the file
// and dialog in place.
func (s *Submitter) Submit(ctx context.Context, d *Draft, vendorInput string) Result {
	start := time.Now()
	res := Result{UploadID: uuid.NewString()}
	log := logging.WithFields(ctx, "upload_id", res.UploadID)

	rec, err := d.begin(vendorInput, res.UploadID)
	if err != nil {
		res.Err = err
		res.Message = MapError(err)
		res.Status = StatusRejected
		if errors.Is(err, ErrUploadInProgress) {
			// The running submit owns the draft status.
			log.Info("submit ignored, upload already in progress")
			return res
		}
		s.metrics.UploadFinished(metrics.OutcomeRejected, time.Since(start))
		log.Info("submit rejected", "reason", err)
		return res
	}

	res.Vendor = rates.ResolveKey(vendorInput, s.defaultVendor)
	res.Rows = rec.Len()
	log = log.With("vendor", res.Vendor)

	if err := rates.ValidateKey(res.Vendor); err != nil {
		return s.rejected(d, res, fmt.Errorf("%w: %q", err, res.Vendor), start)
	}

	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx); err != nil {
			res.Err = err
			res.Message = MapError(err)
			res.Status = StatusFailed
			d.finish(StatusFailed, res.Message)
			s.metrics.UploadFinished(metrics.OutcomeBusy, time.Since(start))
			log.Warn("no write slot available", "error", err)
			return res
		}
		defer s.limiter.Release()
	}

	log.Info("upload started", "rows", res.Rows, "columns", rec.Width())

	writeCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	err = s.store.Put(writeCtx, rates.Document{Name: res.Vendor, Record: rec})
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		res.Message = MapError(err)
		res.Status = StatusFailed
		d.finish(StatusFailed, res.Message)
		s.metrics.UploadFinished(metrics.OutcomeFailed, res.Duration)
		log.Error("upload failed", "error", err, "code", res.Message.Code, "duration", res.Duration)
		return res
	}

	res.Status = StatusSucceeded
	res.Message = UserMessage{Message: fmt.Sprintf("Uploaded %d rows for %s.", res.Rows, res.Vendor)}
	d.finish(StatusSucceeded, res.Message)
	s.metrics.UploadFinished(metrics.OutcomeSucceeded, res.Duration)
	log.Info("upload completed", "rows", res.Rows, "duration", res.Duration)
	return res
}

func (s *Submitter) rejected(d *Draft, res Result, err error, start time.Time) Result {
	res.Err = err
	res.Message = MapError(err)
	res.Status = StatusRejected
	d.reject(res.Message)
	s.metrics.UploadFinished(metrics.OutcomeRejected, time.Since(start))
	return res
}

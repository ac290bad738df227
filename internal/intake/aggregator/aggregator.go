// Package aggregator owns the travelers of one intake session, tracks whether all
// of them are complete and drives submission.
package aggregator

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"visaintake/internal/intake/encoder"
	"visaintake/internal/intake/models"
	"visaintake/internal/intake/policy"
	"visaintake/internal/intake/traveler"
	"visaintake/internal/platform/metrics"
	dErrors "visaintake/pkg/domain-errors"
	"visaintake/pkg/platform/debounce"
	"visaintake/pkg/requestcontext"
)

// DefaultDebounce is the quiet period before validity is recomputed after an edit.
const DefaultDebounce = 300 * time.Millisecond

var tracer = otel.Tracer("visaintake/internal/intake/aggregator")

// Target delivers an encoded payload to the backend and returns the id the backend
// knows the submission by.
type Target interface {
	Kind() string
	Submit(ctx context.Context, payload *encoder.Payload) (string, error)
}

// Submission describes a payload the backend accepted.
type Submission struct {
	ID          string           `json:"id"`
	Target      string           `json:"target"`
	Travelers   int              `json:"travelers"`
	Attachments int              `json:"attachments"`
	Digest      string           `json:"digest"`
	SubmittedAt time.Time        `json:"submitted_at"`
	Payload     *encoder.Payload `json:"-"`
}

// SubmitHook observes successful submissions. Errors are logged, never returned
// to the submitter.
type SubmitHook func(ctx context.Context, s Submission) error

// EncodeFunc builds the payload from the primary traveler and the others in id order.
type EncodeFunc func(primary models.TravelerRecord, others []models.TravelerRecord) *encoder.Payload

// ValidityListener is called whenever the aggregate validity flips.
type ValidityListener func(valid bool)

type registration struct {
	form      *traveler.SubForm
	debouncer *debounce.Debouncer
}

// Aggregator holds the tracked sub-forms keyed by traveler id.
type Aggregator struct {
	mu        sync.Mutex
	regs      map[int]*registration
	highWater int
	valid     bool
	closed    bool
	seq       uint64

	// notifyMu orders listener delivery by recomputation sequence.
	notifyMu    sync.Mutex
	notifiedSeq uint64
	notified    bool

	submitting atomic.Bool

	target         Target
	debounce       time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
	resetOnSuccess bool
	maxFileSize    int64
	policy         *policy.Policy
	listeners      []ValidityListener
	hooks          []SubmitHook
	now            func() time.Time
	encode         EncodeFunc
	initial        []*traveler.SubForm
}

// New returns an aggregator submitting to target. Unless WithTravelers supplies
// forms, it starts with one empty primary traveler.
func New(target Target, opts ...Option) *Aggregator {
	a := &Aggregator{
		regs:     make(map[int]*registration),
		target:   target,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		policy:   policy.Default(),
		now:      time.Now,
		encode:   encoder.Encode,
	}
	for _, opt := range opts {
		opt(a)
	}

	initial := a.initial
	a.initial = nil
	if len(initial) == 0 {
		initial = []*traveler.SubForm{a.NewForm(models.PrimaryTravelerID)}
	}
	a.mu.Lock()
	for _, f := range initial {
		a.trackLocked(f)
	}
	a.mu.Unlock()
	a.recompute("membership")
	return a
}

// NewForm builds an empty sub-form configured like the ones this aggregator creates.
func (a *Aggregator) NewForm(id int) *traveler.SubForm {
	return traveler.New(id, a.FormOptions()...)
}

// FormOptions returns the sub-form options derived from this aggregator's settings.
func (a *Aggregator) FormOptions() []traveler.Option {
	return []traveler.Option{
		traveler.WithPolicy(a.policy),
		traveler.WithMaxFileSize(a.maxFileSize),
		traveler.WithClock(a.now),
	}
}

// Register starts tracking form under id. The id must match the form's own id and
// must not already be tracked.
func (a *Aggregator) Register(id int, form *traveler.SubForm) error {
	if form == nil || id < models.PrimaryTravelerID || form.ID() != id {
		return dErrors.New(dErrors.CodeInvalidInput, "form id does not match registration id")
	}

	a.mu.Lock()
	if _, exists := a.regs[id]; exists {
		a.mu.Unlock()
		return dErrors.New(dErrors.CodeConflict, "traveler already registered")
	}
	a.trackLocked(form)
	a.mu.Unlock()

	a.recompute("membership")
	return nil
}

func (a *Aggregator) trackLocked(form *traveler.SubForm) {
	reg := &registration{form: form}
	if !a.closed {
		reg.debouncer = debounce.New(a.debounce, func() { a.recompute("debounce") })
		form.OnChange(reg.debouncer.Trigger)
	}
	a.regs[form.ID()] = reg
	a.highWater = max(a.highWater, form.ID())
}

// Unregister stops tracking id and cancels its pending recomputation. The primary
// traveler is never unregistered. It reports whether a form was removed.
func (a *Aggregator) Unregister(id int) bool {
	if id == models.PrimaryTravelerID {
		return false
	}

	a.mu.Lock()
	reg, ok := a.regs[id]
	if ok {
		delete(a.regs, id)
		reg.release()
	}
	a.mu.Unlock()

	if ok {
		a.recompute("membership")
	}
	return ok
}

func (r *registration) release() {
	r.form.OnChange(nil)
	if r.debouncer != nil {
		r.debouncer.Cancel()
	}
}

// AddTraveler registers an empty sub-form under a fresh id, greater than any id
// this session has used, and returns the id.
func (a *Aggregator) AddTraveler() int {
	a.mu.Lock()
	id := a.highWater + 1
	a.trackLocked(a.NewForm(id))
	a.mu.Unlock()

	a.recompute("membership")
	a.logger.Debug("traveler added", "traveler_id", id)
	return id
}

// RemoveTraveler unregisters id. Removing the primary traveler is a no-op.
func (a *Aggregator) RemoveTraveler(id int) bool {
	removed := a.Unregister(id)
	if removed {
		a.logger.Debug("traveler removed", "traveler_id", id)
	}
	return removed
}

// Traveler returns the tracked form for id.
func (a *Aggregator) Traveler(id int) (*traveler.SubForm, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	reg, ok := a.regs[id]
	if !ok {
		return nil, false
	}
	return reg.form, true
}

// IDs returns the tracked ids in ascending order.
func (a *Aggregator) IDs() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sortedIDsLocked()
}

func (a *Aggregator) sortedIDsLocked() []int {
	ids := make([]int, 0, len(a.regs))
	for id := range a.regs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Travelers returns snapshots of every tracked traveler in id order.
func (a *Aggregator) Travelers() []models.TravelerRecord {
	records, _ := a.snapshot()
	return records
}

// Problems returns the outstanding problems per incomplete traveler.
func (a *Aggregator) Problems() []TravelerProblems {
	_, problems := a.snapshot()
	return problems
}

// IsAllValid returns the validity computed by the last recomputation.
func (a *Aggregator) IsAllValid() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.valid
}

// IsSubmitting reports whether a submission is in flight.
func (a *Aggregator) IsSubmitting() bool {
	return a.submitting.Load()
}

// RecomputeValidity evaluates every tracked form now. The result is true only if
// at least one traveler is tracked and every traveler is valid.
func (a *Aggregator) RecomputeValidity() bool {
	return a.recompute("manual")
}

func (a *Aggregator) recompute(trigger string) bool {
	_, _, valid := a.evaluate(trigger)
	return valid
}

func (a *Aggregator) snapshot() ([]models.TravelerRecord, []TravelerProblems) {
	records, problems, _ := a.evaluate("")
	return records, problems
}

// evaluate snapshots every form under the registry lock. A non-empty trigger
// stores the result as the aggregate validity.
func (a *Aggregator) evaluate(trigger string) ([]models.TravelerRecord, []TravelerProblems, bool) {
	a.mu.Lock()
	ids := a.sortedIDsLocked()
	records := make([]models.TravelerRecord, 0, len(ids))
	var problems []TravelerProblems
	for _, id := range ids {
		rec, p := a.regs[id].form.Snapshot()
		records = append(records, rec)
		if len(p) > 0 {
			problems = append(problems, TravelerProblems{TravelerID: id, Problems: p})
		}
	}
	valid := len(records) > 0 && len(problems) == 0

	var seq uint64
	if trigger != "" {
		a.valid = valid
		a.seq++
		seq = a.seq
	}
	a.mu.Unlock()

	if trigger != "" {
		a.metrics.IncrementRecompute(trigger, valid)
		a.notify(seq, valid)
	}
	return records, problems, valid
}

// notify delivers a validity flip unless a later recomputation already reported.
// Listeners run one at a time and must not trigger a recomputation themselves.
func (a *Aggregator) notify(seq uint64, valid bool) {
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()
	if seq <= a.notifiedSeq {
		return
	}
	a.notifiedSeq = seq
	if valid == a.notified {
		return
	}
	a.notified = valid
	for _, l := range a.listeners {
		l(valid)
	}
}

// SubmitAll validates every traveler and, if all are complete, encodes one payload
// and hands it to the target. A call made while another is in flight fails with
// ErrSubmissionInFlight. Invalid state fails with *ValidationFailedError before any
// network call. Backend failures leave every form untouched and are not retried.
func (a *Aggregator) SubmitAll(ctx context.Context) (Submission, error) {
	kind := a.target.Kind()
	if !a.submitting.CompareAndSwap(false, true) {
		a.metrics.IncrementSubmission(kind, "in_flight")
		return Submission{}, ErrSubmissionInFlight
	}
	defer a.submitting.Store(false)

	ctx, span := tracer.Start(ctx, "aggregator.SubmitAll", trace.WithAttributes(attribute.String("target", kind)))
	defer span.End()

	records, problems, valid := a.evaluate("submit")
	if !valid {
		a.metrics.IncrementSubmission(kind, "invalid")
		err := &ValidationFailedError{Travelers: problems}
		span.SetStatus(codes.Error, "validation failed")
		a.logger.InfoContext(ctx, "submission blocked by incomplete travelers",
			"target", kind,
			"incomplete", len(problems),
		)
		return Submission{}, err
	}
	if !records[0].IsPrimary() {
		span.SetStatus(codes.Error, "primary traveler missing")
		return Submission{}, dErrors.New(dErrors.CodeInternal, "primary traveler missing")
	}

	payload := a.encode(records[0], records[1:])
	span.SetAttributes(
		attribute.Int("travelers", len(records)),
		attribute.Int("attachments", len(payload.Attachments)),
	)

	start := time.Now()
	id, err := a.target.Submit(ctx, payload)
	a.metrics.ObserveSubmissionLatency(time.Since(start))
	if err != nil {
		a.metrics.IncrementSubmission(kind, "failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
		a.logger.ErrorContext(ctx, "submission failed",
			"target", kind,
			"travelers", len(records),
			"error", err,
		)
		if dErrors.HasCode(err, dErrors.CodeUnavailable) {
			return Submission{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "the visa service is temporarily unavailable, please try again")
		}
		return Submission{}, dErrors.Wrap(err, dErrors.CodeSubmissionFailed, "the application could not be submitted, please try again")
	}

	digest, err := payload.Digest()
	if err != nil {
		a.logger.WarnContext(ctx, "payload digest failed", "error", err)
	}
	sub := Submission{
		ID:          id,
		Target:      kind,
		Travelers:   len(records),
		Attachments: len(payload.Attachments),
		Digest:      digest,
		SubmittedAt: requestcontext.NowOr(ctx, a.now),
		Payload:     payload,
	}
	a.metrics.IncrementSubmission(kind, "success")
	a.logger.InfoContext(ctx, "submission accepted",
		"target", kind,
		"submission_id", id,
		"travelers", sub.Travelers,
		"attachments", sub.Attachments,
	)

	if a.resetOnSuccess {
		a.reset()
	}
	for _, hook := range a.hooks {
		if err := hook(ctx, sub); err != nil {
			a.logger.WarnContext(ctx, "submission hook failed",
				"submission_id", id,
				"error", err,
			)
		}
	}
	return sub, nil
}

// reset drops every traveler and starts over with one empty primary. The id
// high-water mark survives so ids are never reused within the session.
func (a *Aggregator) reset() {
	primary := a.NewForm(models.PrimaryTravelerID)

	a.mu.Lock()
	for id, reg := range a.regs {
		delete(a.regs, id)
		reg.release()
	}
	a.trackLocked(primary)
	a.mu.Unlock()

	a.recompute("membership")
}

// Close cancels every pending recomputation. Forms stay readable; edits after
// Close no longer schedule recomputation.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	for _, reg := range a.regs {
		reg.release()
		reg.debouncer = nil
	}
}

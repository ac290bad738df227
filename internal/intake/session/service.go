package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"visaintake/internal/intake/aggregator"
	"visaintake/internal/intake/encoder"
	"visaintake/internal/intake/events"
	"visaintake/internal/intake/lock"
	"visaintake/internal/intake/models"
	"visaintake/internal/intake/policy"
	"visaintake/internal/intake/receipts"
	"visaintake/internal/intake/traveler"
	"visaintake/internal/platform/config"
	"visaintake/internal/platform/metrics"
	"visaintake/internal/visaapi"
	dErrors "visaintake/pkg/domain-errors"
	"visaintake/pkg/platform/middleware/metadata"
	"visaintake/pkg/platform/sentinel"
	"visaintake/pkg/requestcontext"
)

const defaultSubmitLockTTL = 2 * time.Minute

// Backend is the stored-application API sessions read from and submit to.
type Backend interface {
	CreateVisa(ctx context.Context, payload *encoder.Payload) (visaapi.Visa, error)
	ListVisas(ctx context.Context) ([]visaapi.Visa, error)
	GetVisaByID(ctx context.Context, id string) (visaapi.Visa, error)
	UpdateVisa(ctx context.Context, id string, payload *encoder.Payload) error
	UpdateSubTraveler(ctx context.Context, id, subID string, payload *encoder.Payload) error
	DeleteVisa(ctx context.Context, id string) error
	DeleteSubTraveler(ctx context.Context, id, subID string) error
}

// Service owns every open session.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	backend  Backend
	locker   lock.Locker
	receipts receipts.Store
	events   events.Publisher
	policy   *policy.Policy
	cfg      config.IntakeConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New returns a service submitting through backend.
func New(backend Backend, opts ...Option) (*Service, error) {
	if backend == nil {
		return nil, errors.New("visa backend is required")
	}
	s := &Service{
		sessions: make(map[string]*Session),
		backend:  backend,
		locker:   lock.NewMemory(),
		receipts: receipts.NewMemoryStore(),
		events:   events.Nop{},
		policy:   policy.Default(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Policy returns the document table sessions are built with.
func (s *Service) Policy() *policy.Policy { return s.policy }

// Create opens a session for a new application with one empty primary traveler.
func (s *Service) Create(ctx context.Context) *Session {
	return s.open(ctx, KindCreate, "", "", visaapi.NewCreateTarget(s.backend), nil, nil)
}

// Edit opens a session pre-filled with a stored application and its sub-travelers.
// Stored documents satisfy their slots and are not uploaded again.
func (s *Service) Edit(ctx context.Context, visaID string) (*Session, error) {
	v, err := s.backend.GetVisaByID(ctx, visaID)
	if err != nil {
		return nil, backendError(err, "the application could not be loaded")
	}

	formOpts := s.formOptions()
	forms := []*traveler.SubForm{traveler.FromRecord(models.PrimaryTravelerID, v.Record(), formOpts...)}
	for i, sub := range v.SubTravelers {
		forms = append(forms, traveler.FromRecord(models.PrimaryTravelerID+1+i, sub.Record(), formOpts...))
	}

	return s.open(ctx, KindEdit, v.ID, "", visaapi.NewUpdateTarget(s.backend, v.ID), forms, nil), nil
}

// EditSubTraveler opens a single-traveler session for one stored sub-traveler.
func (s *Service) EditSubTraveler(ctx context.Context, visaID, subID string) (*Session, error) {
	v, err := s.backend.GetVisaByID(ctx, visaID)
	if err != nil {
		return nil, backendError(err, "the application could not be loaded")
	}
	sub, ok := v.SubTraveler(subID)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "sub-traveler not found")
	}

	form := traveler.FromRecord(models.PrimaryTravelerID, sub.Record(), s.formOptions()...)
	encode := func(primary models.TravelerRecord, _ []models.TravelerRecord) *encoder.Payload {
		return encoder.EncodeSubTraveler(primary)
	}
	target := visaapi.NewSubTravelerTarget(s.backend, v.ID, subID)
	return s.open(ctx, KindSubTraveler, v.ID, subID, target, []*traveler.SubForm{form}, encode), nil
}

func (s *Service) formOptions() []traveler.Option {
	return []traveler.Option{
		traveler.WithPolicy(s.policy),
		traveler.WithMaxFileSize(s.cfg.MaxFileSize),
		traveler.WithClock(s.now),
	}
}

func (s *Service) open(ctx context.Context, kind Kind, visaID, subID string, target aggregator.Target, forms []*traveler.SubForm, encode aggregator.EncodeFunc) *Session {
	sess := &Session{
		ID:            uuid.NewString(),
		Kind:          kind,
		VisaID:        visaID,
		SubTravelerID: subID,
		CreatedAt:     s.now(),
	}
	sess.touch(sess.CreatedAt)

	logger := s.logger.With("session_id", sess.ID)
	sess.agg = aggregator.New(target,
		aggregator.WithDebounce(s.cfg.Debounce),
		aggregator.WithLogger(logger),
		aggregator.WithMetrics(s.metrics),
		aggregator.WithResetOnSuccess(kind == KindCreate && s.cfg.ResetOnSuccess),
		aggregator.WithMaxFileSize(s.cfg.MaxFileSize),
		aggregator.WithPolicy(s.policy),
		aggregator.WithClock(s.now),
		aggregator.WithTravelers(forms...),
		aggregator.WithEncoder(encode),
		aggregator.WithValidityListener(func(valid bool) {
			logger.Debug("session completeness changed", "all_valid", valid)
		}),
		aggregator.WithSubmitHook(s.recordReceipt(sess)),
		aggregator.WithSubmitHook(s.publishSubmitted(sess)),
	)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	s.metrics.SessionOpened()

	s.logger.InfoContext(ctx, "session opened",
		"session_id", sess.ID,
		"kind", kind,
		"visa_id", visaID,
		"travelers", len(sess.agg.IDs()),
	)
	return sess
}

// Get returns an open session and marks it as used.
func (s *Service) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	sess.touch(s.now())
	return sess, nil
}

// Close discards a session and everything entered in it.
func (s *Service) Close(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	sess.agg.Close()
	s.metrics.SessionClosed()
	return nil
}

// Shutdown closes every session.
func (s *Service) Shutdown() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()
	for _, sess := range all {
		sess.agg.Close()
		s.metrics.SessionClosed()
	}
}

// Count returns the number of open sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// AddTraveler adds an empty sub-traveler and returns its id.
func (s *Service) AddTraveler(ctx context.Context, sid string) (int, error) {
	sess, err := s.Get(sid)
	if err != nil {
		return 0, err
	}
	if sess.Kind == KindSubTraveler {
		return 0, dErrors.New(dErrors.CodeBadRequest, "a sub-traveler session holds exactly one traveler")
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	id := sess.agg.AddTraveler()
	s.logger.DebugContext(ctx, "traveler added", "session_id", sid, "traveler_id", id)
	return id, nil
}

// RemoveTraveler drops a sub-traveler. A sub-traveler already stored by the
// backend is deleted there first; if that fails the traveler stays.
func (s *Service) RemoveTraveler(ctx context.Context, sid string, tid int) error {
	sess, err := s.Get(sid)
	if err != nil {
		return err
	}
	if tid == models.PrimaryTravelerID {
		return dErrors.New(dErrors.CodeBadRequest, "the primary traveler cannot be removed")
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	form, ok := sess.agg.Traveler(tid)
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "traveler not found")
	}
	if remoteID := form.RemoteID(); remoteID != "" && sess.Kind == KindEdit {
		if err := s.backend.DeleteSubTraveler(ctx, sess.VisaID, remoteID); err != nil {
			return backendError(err, "the traveler could not be removed")
		}
		s.logger.InfoContext(ctx, "stored sub-traveler deleted",
			"session_id", sid,
			"visa_id", sess.VisaID,
			"sub_traveler_id", remoteID,
		)
	}
	sess.agg.RemoveTraveler(tid)
	return nil
}

func (s *Service) form(sid string, tid int) (*traveler.SubForm, error) {
	sess, err := s.Get(sid)
	if err != nil {
		return nil, err
	}
	form, ok := sess.agg.Traveler(tid)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "traveler not found")
	}
	return form, nil
}

// UpdateTraveler sets identity fields and the visa type by field name. An unknown
// field or visa type rejects the whole update.
func (s *Service) UpdateTraveler(_ context.Context, sid string, tid int, fields map[string]string) error {
	form, err := s.form(sid, tid)
	if err != nil {
		return err
	}
	return form.SetFields(fields)
}

// SetDocument attaches file to the slot key of traveler tid.
func (s *Service) SetDocument(ctx context.Context, sid string, tid int, key string, file models.File) error {
	form, err := s.form(sid, tid)
	if err != nil {
		return err
	}
	if err := form.SetDocumentAt(key, file, requestcontext.NowOr(ctx, s.now)); err != nil {
		reason := string(dErrors.CodeOf(err))
		s.metrics.IncrementRejectedUpload(reason)
		s.logger.InfoContext(ctx, "upload rejected",
			"session_id", sid,
			"traveler_id", tid,
			"document", key,
			"reason", reason,
		)
		return err
	}
	return nil
}

// ClearDocument empties the slot key of traveler tid.
func (s *Service) ClearDocument(_ context.Context, sid string, tid int, key string) error {
	form, err := s.form(sid, tid)
	if err != nil {
		return err
	}
	return form.ClearDocument(key)
}

// Submit sends the session's travelers to the Visa API. Only one submission per
// stored application runs at a time across every replica sharing the lock.
func (s *Service) Submit(ctx context.Context, sid string) (aggregator.Submission, error) {
	sess, err := s.Get(sid)
	if err != nil {
		return aggregator.Submission{}, err
	}

	ttl := s.cfg.SubmitLockTTL
	if ttl <= 0 {
		ttl = defaultSubmitLockTTL
	}
	release, err := s.locker.Acquire(ctx, sess.lockKey(), ttl)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return aggregator.Submission{}, err
		}
		return aggregator.Submission{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "submission lock unavailable")
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "submission lock release failed", "session_id", sid, "error", err)
		}
	}()

	return sess.agg.SubmitAll(ctx)
}

func (s *Service) recordReceipt(sess *Session) aggregator.SubmitHook {
	return func(ctx context.Context, sub aggregator.Submission) error {
		r := receipts.Receipt{
			ID:              uuid.New(),
			SessionID:       sess.ID,
			Target:          sub.Target,
			VisaID:          sub.ID,
			SubTravelerID:   sess.SubTravelerID,
			TravelerCount:   sub.Travelers,
			AttachmentCount: sub.Attachments,
			PayloadDigest:   sub.Digest,
			RequestID:       requestcontext.RequestID(ctx),
			ClientIP:        requestcontext.ClientIP(ctx),
			ClientPlatform:  metadata.Platform(requestcontext.UserAgent(ctx)),
			SubmittedAt:     sub.SubmittedAt,
		}
		return s.receipts.Save(context.WithoutCancel(ctx), r)
	}
}

func (s *Service) publishSubmitted(sess *Session) aggregator.SubmitHook {
	return func(ctx context.Context, sub aggregator.Submission) error {
		return s.events.Publish(context.WithoutCancel(ctx), events.Submitted{
			EventID:       uuid.New(),
			Type:          events.TypeSubmitted,
			SessionID:     sess.ID,
			Target:        sub.Target,
			VisaID:        sub.ID,
			SubTravelerID: sess.SubTravelerID,
			Travelers:     sub.Travelers,
			Attachments:   sub.Attachments,
			Digest:        sub.Digest,
			RequestID:     requestcontext.RequestID(ctx),
			OccurredAt:    sub.SubmittedAt,
		})
	}
}

// Receipts returns the local receipts for a stored application.
func (s *Service) Receipts(ctx context.Context, visaID string) ([]receipts.Receipt, error) {
	return s.receipts.ListByVisa(ctx, visaID)
}

// ListVisas proxies the stored application list.
func (s *Service) ListVisas(ctx context.Context) ([]visaapi.Visa, error) {
	list, err := s.backend.ListVisas(ctx)
	if err != nil {
		return nil, backendError(err, "applications could not be listed")
	}
	return list, nil
}

// DeleteVisa deletes a stored application and closes sessions editing it.
func (s *Service) DeleteVisa(ctx context.Context, visaID string) error {
	if err := s.backend.DeleteVisa(ctx, visaID); err != nil {
		return backendError(err, "the application could not be deleted")
	}
	for _, id := range s.sessionsFor(visaID) {
		_ = s.Close(id)
	}
	s.logger.InfoContext(ctx, "application deleted", "visa_id", visaID)
	return nil
}

// DeleteSubTraveler deletes one stored sub-traveler.
func (s *Service) DeleteSubTraveler(ctx context.Context, visaID, subID string) error {
	if err := s.backend.DeleteSubTraveler(ctx, visaID, subID); err != nil {
		return backendError(err, "the traveler could not be removed")
	}
	s.logger.InfoContext(ctx, "stored sub-traveler deleted", "visa_id", visaID, "sub_traveler_id", subID)
	return nil
}

func (s *Service) sessionsFor(visaID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, sess := range s.sessions {
		if sess.VisaID == visaID {
			ids = append(ids, id)
		}
	}
	return ids
}

// backendError translates Visa API failures into coded errors.
func backendError(err error, message string) error {
	var coded *dErrors.Error
	switch {
	case errors.As(err, &coded):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "the application was not found")
	case visaapi.IsTransient(err):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "the visa service is temporarily unavailable, please try again")
	default:
		return dErrors.Wrap(err, dErrors.CodeSubmissionFailed, message)
	}
}

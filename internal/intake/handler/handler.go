// Package handler exposes intake sessions over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"visaintake/internal/intake/aggregator"
	"visaintake/internal/intake/models"
	"visaintake/internal/intake/policy"
	"visaintake/internal/intake/receipts"
	"visaintake/internal/intake/session"
	"visaintake/internal/intake/traveler"
	"visaintake/internal/platform/middleware"
	"visaintake/internal/visaapi"
	"visaintake/pkg/platform/httputil"
	"visaintake/pkg/platform/middleware/metadata"
	"visaintake/pkg/platform/middleware/requesttime"

	dErrors "visaintake/pkg/domain-errors"
)

// multipartOverhead is the allowance for multipart framing on top of the file limit.
const multipartOverhead = 1 << 20

// Service defines the session operations the routes drive.
type Service interface {
	Policy() *policy.Policy
	Create(ctx context.Context) *session.Session
	Edit(ctx context.Context, visaID string) (*session.Session, error)
	EditSubTraveler(ctx context.Context, visaID, subID string) (*session.Session, error)
	Get(id string) (*session.Session, error)
	Close(id string) error
	AddTraveler(ctx context.Context, sid string) (int, error)
	RemoveTraveler(ctx context.Context, sid string, tid int) error
	UpdateTraveler(ctx context.Context, sid string, tid int, fields map[string]string) error
	SetDocument(ctx context.Context, sid string, tid int, key string, file models.File) error
	ClearDocument(ctx context.Context, sid string, tid int, key string) error
	Submit(ctx context.Context, sid string) (aggregator.Submission, error)
	Receipts(ctx context.Context, visaID string) ([]receipts.Receipt, error)
	ListVisas(ctx context.Context) ([]visaapi.Visa, error)
	DeleteVisa(ctx context.Context, visaID string) error
	DeleteSubTraveler(ctx context.Context, visaID, subID string) error
}

// Handler serves the intake routes.
type Handler struct {
	svc         Service
	logger      *slog.Logger
	timeout     time.Duration
	maxFileSize int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithTimeout bounds each request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// WithMaxFileSize sets the upload limit enforced while reading the request body.
func WithMaxFileSize(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxFileSize = n
		}
	}
}

// New creates a Handler.
func New(svc Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		svc:         svc,
		logger:      logger,
		timeout:     45 * time.Second,
		maxFileSize: traveler.DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Register mounts the intake routes on r.
func (h *Handler) Register(r chi.Router) {
	intake := chi.NewRouter()
	intake.Use(middleware.Recovery(h.logger))
	intake.Use(middleware.RequestID)
	intake.Use(middleware.Logger(h.logger))
	intake.Use(metadata.ClientMetadata)
	intake.Use(requesttime.Middleware)
	intake.Use(middleware.Timeout(h.timeout))

	intake.Post("/sessions", h.handleCreateSession)
	intake.Route("/sessions/{sid}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Delete("/", h.handleCloseSession)
		r.Post("/travelers", h.handleAddTraveler)
		r.Delete("/travelers/{tid}", h.handleRemoveTraveler)
		r.Patch("/travelers/{tid}", h.handleUpdateTraveler)
		r.Put("/travelers/{tid}/documents/{key}", h.handleSetDocument)
		r.Delete("/travelers/{tid}/documents/{key}", h.handleClearDocument)
		r.Post("/submit", h.handleSubmit)
	})

	intake.Get("/policy/{visaType}", h.handleGetPolicy)

	intake.Get("/visas", h.handleListVisas)
	intake.Delete("/visas/{visaID}", h.handleDeleteVisa)
	intake.Post("/visas/{visaID}/sessions", h.handleEditSession)
	intake.Get("/visas/{visaID}/receipts", h.handleListReceipts)
	intake.Delete("/visas/{visaID}/sub-travelers/{subID}", h.handleDeleteSubTraveler)
	intake.Post("/visas/{visaID}/sub-travelers/{subID}/sessions", h.handleEditSubTravelerSession)

	r.Mount("/", intake)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := h.svc.Create(r.Context())
	httputil.WriteJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (h *Handler) handleEditSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.svc.Edit(ctx, chi.URLParam(r, "visaID"))
	if err != nil {
		h.fail(ctx, w, "open edit session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (h *Handler) handleEditSubTravelerSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.svc.EditSubTraveler(ctx, chi.URLParam(r, "visaID"), chi.URLParam(r, "subID"))
	if err != nil {
		h.fail(ctx, w, "open sub-traveler session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	h.writeSession(w, r, http.StatusOK)
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Close(chi.URLParam(r, "sid")); err != nil {
		h.fail(r.Context(), w, "close session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddTraveler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := h.svc.AddTraveler(ctx, chi.URLParam(r, "sid"))
	if err != nil {
		h.fail(ctx, w, "add traveler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, AddTravelerResponse{TravelerID: id})
}

func (h *Handler) handleRemoveTraveler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tid, err := travelerID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.RemoveTraveler(ctx, chi.URLParam(r, "sid"), tid); err != nil {
		h.fail(ctx, w, "remove traveler", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpdateTraveler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tid, err := travelerID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req UpdateTravelerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid update traveler request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.svc.UpdateTraveler(ctx, chi.URLParam(r, "sid"), tid, req.Fields()); err != nil {
		h.fail(ctx, w, "update traveler", err)
		return
	}
	h.writeSession(w, r, http.StatusOK)
}

func (h *Handler) handleSetDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tid, err := travelerID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	file, err := h.readUpload(w, r)
	if err != nil {
		h.fail(ctx, w, "read upload", err)
		return
	}

	if err := h.svc.SetDocument(ctx, chi.URLParam(r, "sid"), tid, chi.URLParam(r, "key"), file); err != nil {
		h.fail(ctx, w, "set document", err)
		return
	}
	h.writeSession(w, r, http.StatusOK)
}

func (h *Handler) handleClearDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tid, err := travelerID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.ClearDocument(ctx, chi.URLParam(r, "sid"), tid, chi.URLParam(r, "key")); err != nil {
		h.fail(ctx, w, "clear document", err)
		return
	}
	h.writeSession(w, r, http.StatusOK)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := chi.URLParam(r, "sid")
	sub, err := h.svc.Submit(ctx, sid)
	if err != nil {
		h.fail(ctx, w, "submit", err)
		return
	}
	sess, err := h.svc.Get(sid)
	if err != nil {
		h.fail(ctx, w, "load session after submit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SubmitResponse{Submission: sub, Session: toSessionResponse(sess)})
}

func (h *Handler) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	vt, err := models.ParseVisaType(chi.URLParam(r, "visaType"))
	if err != nil || !vt.IsKnown() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "unknown visa type"))
		return
	}
	general, specific := h.svc.Policy().DocumentsFor(vt)
	httputil.WriteJSON(w, http.StatusOK, PolicyResponse{VisaType: string(vt), General: general, Specific: specific})
}

func (h *Handler) handleListVisas(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	visas, err := h.svc.ListVisas(ctx)
	if err != nil {
		h.fail(ctx, w, "list visas", err)
		return
	}
	if visas == nil {
		visas = []visaapi.Visa{}
	}
	httputil.WriteJSON(w, http.StatusOK, visas)
}

func (h *Handler) handleDeleteVisa(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.svc.DeleteVisa(ctx, chi.URLParam(r, "visaID")); err != nil {
		h.fail(ctx, w, "delete visa", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteSubTraveler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.svc.DeleteSubTraveler(ctx, chi.URLParam(r, "visaID"), chi.URLParam(r, "subID")); err != nil {
		h.fail(ctx, w, "delete sub-traveler", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.svc.Receipts(ctx, chi.URLParam(r, "visaID"))
	if err != nil {
		h.fail(ctx, w, "list receipts", err)
		return
	}
	if list == nil {
		list = []receipts.Receipt{}
	}
	httputil.WriteJSON(w, http.StatusOK, ReceiptsResponse{Receipts: list})
}

func (h *Handler) writeSession(w http.ResponseWriter, r *http.Request, status int) {
	sess, err := h.svc.Get(chi.URLParam(r, "sid"))
	if err != nil {
		h.fail(r.Context(), w, "get session", err)
		return
	}
	httputil.WriteJSON(w, status, toSessionResponse(sess))
}

// readUpload reads the multipart "file" field into a local file. The body is
// capped so oversized uploads fail before they are buffered.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (*models.LocalFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	part, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, dErrors.New(dErrors.CodeFileTooLarge, "the upload exceeds the size limit")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "a multipart file field named \"file\" is required")
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, dErrors.New(dErrors.CodeFileTooLarge, "the upload exceeds the size limit")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "could not read the upload")
	}

	return &models.LocalFile{
		FileName:    header.Filename,
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}, nil
}

// fail logs err with the request id and writes the error envelope.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	level := slog.LevelInfo
	if code := dErrors.CodeOf(err); code == dErrors.CodeInternal || code == dErrors.CodeSubmissionFailed || code == dErrors.CodeUnavailable {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, op+" failed",
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	)
	httputil.WriteError(w, err)
}

func travelerID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "tid"))
	if err != nil || id < 1 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "traveler id must be a positive integer")
	}
	return id, nil
}

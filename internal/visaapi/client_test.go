package visaapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visaintake/internal/intake/encoder"
	"visaintake/internal/intake/models"
	"visaintake/internal/platform/config"
	dErrors "visaintake/pkg/domain-errors"
	"visaintake/pkg/platform/sentinel"
)

func writeEnvelope(w http.ResponseWriter, status int, success bool, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": success, "message": message, "data": data})
}

func newClient(t *testing.T, r http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return New(config.VisaAPIConfig{
		BaseURL:          srv.URL + "/",
		Timeout:          2 * time.Second,
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Cooldown:         time.Hour,
	})
}

func samplePayload() *encoder.Payload {
	return &encoder.Payload{
		Data: encoder.Record{Identity: encoder.Identity{GivenName: "Amina", Phones: []string{"+8801711000000"}}},
		Attachments: []encoder.Attachment{{
			Name: "primaryTraveler_passportCopy", FileName: "passport.jpg", ContentType: "image/jpeg", Data: []byte("jpeg"),
		}},
	}
}

func TestClient_CreateVisa(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/visa/create", func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, req.ParseMultipartForm(1<<20))
		var rec encoder.Record
		require.NoError(t, json.Unmarshal([]byte(req.FormValue(encoder.DataField)), &rec))
		assert.Equal(t, "Amina", rec.GivenName)

		f, hdr, err := req.FormFile("primaryTraveler_passportCopy")
		require.NoError(t, err)
		body, _ := io.ReadAll(f)
		assert.Equal(t, "passport.jpg", hdr.Filename)
		assert.Equal(t, []byte("jpeg"), body)

		writeEnvelope(w, http.StatusCreated, true, "created", map[string]any{"_id": "visa-1", "givenName": "Amina"})
	})
	c := newClient(t, r)

	v, err := c.CreateVisa(context.Background(), samplePayload())
	require.NoError(t, err)
	assert.Equal(t, "visa-1", v.ID)
	assert.Equal(t, "Amina", v.GivenName)
}

func TestClient_GetVisaByID(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/visa/{id}", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "visa-7", chi.URLParam(req, "id"))
		writeEnvelope(w, http.StatusOK, true, "", map[string]any{
			"_id":       "visa-7",
			"givenName": "Amina",
			"surname":   "Rahman",
			"phone":     "+8801711000000",
			"email":     "amina@example.com",
			"address":   "Dhaka",
			"visaType":  "student",
			"generalDocuments": map[string]any{
				"passportCopy": map[string]any{"url": "https://files.example.com/u/passport.jpg"},
			},
			"studentDocuments": map[string]any{
				"studentId": map[string]any{"url": "https://files.example.com/u/student.jpg"},
			},
			"businessDocuments": map[string]any{
				"tradeLicense": map[string]any{"url": "https://files.example.com/u/stale.pdf"},
			},
			"subTravelers": []any{
				map[string]any{"_id": "sub-1", "givenName": "Rafi", "visaType": "tourist"},
			},
		})
	})
	c := newClient(t, r)

	v, err := c.GetVisaByID(context.Background(), "visa-7")
	require.NoError(t, err)
	require.Len(t, v.SubTravelers, 1)

	rec := v.Record()
	assert.Equal(t, "visa-7", rec.RemoteID)
	assert.Equal(t, models.VisaTypeStudent, rec.VisaType)
	assert.Equal(t, []string{"+8801711000000"}, rec.Identity.Phones)
	require.Contains(t, rec.Files, "passportCopy")
	require.Contains(t, rec.Files, "studentId")
	assert.NotContains(t, rec.Files, "tradeLicense", "documents of other visa types are ignored")
	remote, ok := rec.Files["passportCopy"].(*models.RemoteFile)
	require.True(t, ok)
	assert.Equal(t, "passport.jpg", remote.FileName)

	sub, ok := v.SubTraveler("sub-1")
	require.True(t, ok)
	assert.Equal(t, models.VisaTypeUnset, sub.Record().VisaType)
}

func TestClient_ListAndDelete(t *testing.T) {
	var deleted []string
	r := chi.NewRouter()
	r.Get("/visa", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusOK, true, "", []any{map[string]any{"_id": "a"}, map[string]any{"_id": "b"}})
	})
	r.Delete("/visa/{id}", func(w http.ResponseWriter, req *http.Request) {
		deleted = append(deleted, chi.URLParam(req, "id"))
		writeEnvelope(w, http.StatusOK, true, "deleted", nil)
	})
	r.Delete("/visa/{id}/sub-traveler/{subID}", func(w http.ResponseWriter, req *http.Request) {
		deleted = append(deleted, chi.URLParam(req, "id")+"/"+chi.URLParam(req, "subID"))
		writeEnvelope(w, http.StatusOK, true, "deleted", nil)
	})
	c := newClient(t, r)
	ctx := context.Background()

	list, err := c.ListVisas(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, c.DeleteVisa(ctx, "a"))
	require.NoError(t, c.DeleteSubTraveler(ctx, "b", "sub-2"))
	assert.Equal(t, []string{"a", "b/sub-2"}, deleted)
}

func TestClient_UpdateEndpoints(t *testing.T) {
	var hits []string
	r := chi.NewRouter()
	r.Put("/visa/{id}", func(w http.ResponseWriter, req *http.Request) {
		hits = append(hits, "visa:"+chi.URLParam(req, "id"))
		writeEnvelope(w, http.StatusOK, true, "", nil)
	})
	r.Put("/visa/{id}/sub-traveler/{subID}", func(w http.ResponseWriter, req *http.Request) {
		hits = append(hits, "sub:"+chi.URLParam(req, "subID"))
		writeEnvelope(w, http.StatusOK, true, "", nil)
	})
	c := newClient(t, r)
	ctx := context.Background()

	id, err := NewUpdateTarget(c, "visa-3").Submit(ctx, samplePayload())
	require.NoError(t, err)
	assert.Equal(t, "visa-3", id)

	_, err = NewSubTravelerTarget(c, "visa-3", "sub-9").Submit(ctx, samplePayload())
	require.NoError(t, err)
	assert.Equal(t, []string{"visa:visa-3", "sub:sub-9"}, hits)
}

func TestClient_Errors(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/visa/{id}", func(w http.ResponseWriter, req *http.Request) {
		switch chi.URLParam(req, "id") {
		case "missing":
			writeEnvelope(w, http.StatusNotFound, false, "Visa not found", nil)
		case "refused":
			writeEnvelope(w, http.StatusOK, false, "Application locked", nil)
		default:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("<html>"))
		}
	})
	c := newClient(t, r)
	ctx := context.Background()

	t.Run("not found maps to the sentinel", func(t *testing.T) {
		_, err := c.GetVisaByID(ctx, "missing")
		var ae *APIError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, ErrorNotFound, ae.Category)
		assert.Equal(t, "Visa not found", ae.Message)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.False(t, IsTransient(err))
	})

	t.Run("success false is a rejection", func(t *testing.T) {
		_, err := c.GetVisaByID(ctx, "refused")
		var ae *APIError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, ErrorRejected, ae.Category)
	})

	t.Run("malformed body is bad data", func(t *testing.T) {
		_, err := c.GetVisaByID(ctx, "garbage")
		var ae *APIError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, ErrorBadData, ae.Category)
	})
}

func TestClient_BreakerFailsFast(t *testing.T) {
	var hits atomic.Int32
	r := chi.NewRouter()
	r.Post("/visa/create", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		writeEnvelope(w, http.StatusBadGateway, false, "upstream down", nil)
	})
	c := newClient(t, r)
	target := NewCreateTarget(c)
	ctx := context.Background()

	for range 2 {
		_, err := target.Submit(ctx, samplePayload())
		require.Error(t, err)
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	}
	require.False(t, c.Available())

	_, err := target.Submit(ctx, samplePayload())
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ErrorCircuitOpen, ae.Category)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	assert.Equal(t, int32(2), hits.Load(), "open breaker must not reach the server")
}

func TestClient_RejectionDoesNotTripBreaker(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/visa/create", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusBadRequest, false, "Invalid data", nil)
	})
	c := newClient(t, r)

	for range 3 {
		_, err := NewCreateTarget(c).Submit(context.Background(), samplePayload())
		require.Error(t, err)
		assert.False(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
		assert.False(t, errors.Is(err, sentinel.ErrUnavailable))
	}
	assert.True(t, c.Available())
}

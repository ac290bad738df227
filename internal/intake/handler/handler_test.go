package handler

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"visaintake/internal/intake/encoder"
	"visaintake/internal/intake/lock"
	"visaintake/internal/intake/receipts"
	"visaintake/internal/intake/session"
	"visaintake/internal/intake/session/mocks"
	"visaintake/internal/platform/config"
	"visaintake/internal/visaapi"
	"visaintake/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	backend *mocks.MockBackend
	service *session.Service
	router  http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.backend = mocks.NewMockBackend(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var err error
	s.service, err = session.New(s.backend,
		session.WithIntakeConfig(config.IntakeConfig{
			MaxFileSize:    1 << 10,
			ResetOnSuccess: true,
			SessionIdleTTL: time.Hour,
		}),
		session.WithLocker(lock.NewMemory()),
		session.WithReceipts(receipts.NewMemoryStore()),
		session.WithLogger(logger),
	)
	s.Require().NoError(err)

	r := chi.NewRouter()
	New(s.service, logger, WithMaxFileSize(1<<10)).Register(r)
	s.router = r
}

func (s *HandlerSuite) TearDownTest() {
	s.service.Shutdown()
	s.ctrl.Finish()
}

func (s *HandlerSuite) do(req *http.Request) *SessionResponse {
	rr := testutil.DoRequest(s.router, req)
	s.Require().Less(rr.Code, 300, rr.Body.String())
	return testutil.UnmarshalResponse[SessionResponse](s.T(), rr)
}

func (s *HandlerSuite) createSession() *SessionResponse {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/sessions"))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	return testutil.UnmarshalResponse[SessionResponse](s.T(), rr)
}

func ptr(v string) *string { return &v }

func (s *HandlerSuite) fill(sid, tid string) {
	s.do(testutil.NewJSONRequest(s.T(), http.MethodPatch, "/sessions/"+sid+"/travelers/"+tid, UpdateTravelerRequest{
		GivenName: ptr("Amina"),
		Surname:   ptr("Rahman"),
		Phones:    []string{"+8801711000000"},
		Email:     ptr("amina@example.com"),
		Address:   ptr("12 Lake Road, Dhaka"),
		VisaType:  ptr("other"),
	}))
	for _, key := range []string{"passportCopy", "passportPhoto", "bankStatement", "bankSolvency"} {
		s.do(testutil.NewFileRequest(s.T(), http.MethodPut,
			"/sessions/"+sid+"/travelers/"+tid+"/documents/"+key, "file", key+".pdf", []byte("%PDF-1.4 "+key)))
	}
}

func (s *HandlerSuite) TestCreateSession() {
	resp := s.createSession()

	s.NotEmpty(resp.ID)
	s.Equal(session.KindCreate, resp.Kind)
	s.False(resp.IsAllValid)
	s.False(resp.IsSubmitting)
	s.Require().Len(resp.Travelers, 1)
	s.True(resp.Travelers[0].Primary)
	s.False(resp.Travelers[0].Valid)
	s.NotEmpty(resp.Travelers[0].Problems)
}

func (s *HandlerSuite) TestGetSession() {
	s.Run("unknown session is not found", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/sessions/nope"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("request id is echoed", func() {
		created := s.createSession()
		req := testutil.NewRequest(s.T(), http.MethodGet, "/sessions/"+created.ID)
		req.Header.Set("X-Request-Id", "req-42")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.Equal("req-42", rr.Header().Get("X-Request-Id"))
	})
}

func (s *HandlerSuite) TestTravelers() {
	created := s.createSession()
	base := "/sessions/" + created.ID + "/travelers"

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, base))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	added := testutil.UnmarshalResponse[AddTravelerResponse](s.T(), rr)
	s.Equal(2, added.TravelerID)

	s.Run("primary cannot be removed", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, base+"/1"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("malformed traveler id", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, base+"/zero"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("removed traveler is gone", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, base+"/2"))
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

		resp := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/sessions/"+created.ID))
		s.Len(resp.Travelers, 1)
	})
}

func (s *HandlerSuite) TestUpdateTraveler() {
	created := s.createSession()
	path := "/sessions/" + created.ID + "/travelers/1"

	s.Run("visa type switch exposes its documents", func() {
		resp := s.do(testutil.NewJSONRequest(s.T(), http.MethodPatch, path, UpdateTravelerRequest{VisaType: ptr("business")}))
		groups := map[string]int{}
		for _, d := range resp.Travelers[0].Documents {
			groups[d.Group]++
		}
		s.Equal("business", resp.Travelers[0].VisaType)
		s.Positive(groups["business"])
	})

	s.Run("unknown visa type is rejected", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPatch, path, UpdateTravelerRequest{VisaType: ptr("tourist")}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("malformed body", func() {
		req := testutil.NewRequest(s.T(), http.MethodPatch, path)
		req.Body = io.NopCloser(strings.NewReader("{"))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestDocuments() {
	created := s.createSession()
	path := "/sessions/" + created.ID + "/travelers/1/documents/"

	s.Run("upload fills the slot", func() {
		resp := s.do(testutil.NewFileRequest(s.T(), http.MethodPut, path+"passportCopy", "file", "passport.pdf", []byte("%PDF-1.4 passport")))
		var found bool
		for _, d := range resp.Travelers[0].Documents {
			if d.Key == "passportCopy" {
				found = true
				s.True(d.Uploaded)
				s.Equal("passport.pdf", d.FileName)
				s.NotNil(d.UploadedAt)
			}
		}
		s.True(found)
	})

	s.Run("oversized upload is refused", func() {
		big := bytes.Repeat([]byte("x"), 2<<10)
		rr := testutil.DoRequest(s.router, testutil.NewFileRequest(s.T(), http.MethodPut, path+"passportPhoto", "file", "photo.jpg", big))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusRequestEntityTooLarge, "file_too_large")
	})

	s.Run("unknown slot", func() {
		rr := testutil.DoRequest(s.router, testutil.NewFileRequest(s.T(), http.MethodPut, path+"visaLetter", "file", "letter.pdf", []byte("%PDF")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("missing file field", func() {
		rr := testutil.DoRequest(s.router, testutil.NewFileRequest(s.T(), http.MethodPut, path+"passportPhoto", "upload", "photo.jpg", []byte("jpg")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("clear empties the slot", func() {
		resp := s.do(testutil.NewRequest(s.T(), http.MethodDelete, path+"passportCopy"))
		for _, d := range resp.Travelers[0].Documents {
			if d.Key == "passportCopy" {
				s.False(d.Uploaded)
			}
		}
	})
}

func (s *HandlerSuite) TestSubmit() {
	created := s.createSession()
	submit := "/sessions/" + created.ID + "/submit"

	s.Run("incomplete travelers are listed", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, submit))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "validation_failed")
		body := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.NotNil(body["details"])
	})

	s.fill(created.ID, "1")

	s.Run("backend failure keeps the travelers", func() {
		s.backend.EXPECT().CreateVisa(gomock.Any(), gomock.Any()).
			Return(visaapi.Visa{}, errors.New("boom"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, submit))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadGateway, "submission_failed")

		resp := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/sessions/"+created.ID))
		s.True(resp.IsAllValid)
	})

	s.Run("success resets the session", func() {
		s.backend.EXPECT().CreateVisa(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, p *encoder.Payload) (visaapi.Visa, error) {
				s.Len(p.Attachments, 4)
				return visaapi.Visa{Traveler: visaapi.Traveler{ID: "visa-9"}}, nil
			})

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, submit))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[SubmitResponse](s.T(), rr)
		s.Equal("visa-9", resp.Submission.ID)
		s.Equal(4, resp.Submission.Attachments)
		s.Require().Len(resp.Session.Travelers, 1)
		s.Empty(resp.Session.Travelers[0].GivenName)
		s.False(resp.Session.IsAllValid)
	})

	s.Run("receipt is listed for the visa", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/visas/visa-9/receipts"))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[ReceiptsResponse](s.T(), rr)
		s.Len(resp.Receipts, 1)
	})
}

func (s *HandlerSuite) TestEditSession() {
	s.Run("unknown visa", func() {
		s.backend.EXPECT().GetVisaByID(gomock.Any(), "missing").
			Return(visaapi.Visa{}, &visaapi.APIError{Category: visaapi.ErrorNotFound, Operation: "get", StatusCode: 404})

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/visas/missing/sessions"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("stored documents are reported as stored", func() {
		s.backend.EXPECT().GetVisaByID(gomock.Any(), "visa-1").Return(visaapi.Visa{
			Traveler: visaapi.Traveler{
				ID: "visa-1", GivenName: "Stored", Surname: "Traveler", VisaType: "other",
				GeneralDocuments: map[string]visaapi.Document{
					"passportCopy": {URL: "https://files.example.com/passport.pdf"},
				},
			},
		}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/visas/visa-1/sessions"))
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[SessionResponse](s.T(), rr)
		s.Equal(session.KindEdit, resp.Kind)
		s.Equal("visa-1", resp.VisaID)
		for _, d := range resp.Travelers[0].Documents {
			if d.Key == "passportCopy" {
				s.True(d.Stored)
				s.Equal("https://files.example.com/passport.pdf", d.URL)
			}
		}
	})
}

func (s *HandlerSuite) TestPolicy() {
	s.Run("student documents", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/policy/student"))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[PolicyResponse](s.T(), rr)
		s.Equal("student", resp.VisaType)
		s.NotEmpty(resp.General)
		s.NotEmpty(resp.Specific)
	})

	s.Run("other has no specific documents", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/policy/other"))
		resp := testutil.UnmarshalResponse[PolicyResponse](s.T(), rr)
		s.Empty(resp.Specific)
	})

	s.Run("unknown type", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/policy/tourist"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

func (s *HandlerSuite) TestVisaProxies() {
	s.Run("list", func() {
		s.backend.EXPECT().ListVisas(gomock.Any()).Return(nil, nil)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/visas"))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.JSONEq("[]", rr.Body.String())
	})

	s.Run("delete", func() {
		s.backend.EXPECT().DeleteVisa(gomock.Any(), "visa-1").Return(nil)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, "/visas/visa-1"))
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
	})

	s.Run("delete sub-traveler upstream outage", func() {
		s.backend.EXPECT().DeleteSubTraveler(gomock.Any(), "visa-1", "sub-1").
			Return(&visaapi.APIError{Category: visaapi.ErrorOutage, Operation: "delete_sub_traveler", StatusCode: 503})
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, "/visas/visa-1/sub-travelers/sub-1"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, "unavailable")
	})

	s.Run("closed session is gone", func() {
		created := s.createSession()
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, "/sessions/"+created.ID))
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
		rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, "/sessions/"+created.ID))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"podbroker/internal/consent/handler/mocks"
	consentModel "podbroker/internal/consent/models"
	"podbroker/pkg/domain"
	dErrors "podbroker/pkg/domain-errors"
	"podbroker/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/consent-mocks.go -package=mocks Service
type ConsentHandlerSuite struct {
	suite.Suite
}

func TestConsentHandlerSuite(t *testing.T) {
	suite.Run(t, new(ConsentHandlerSuite))
}

func newTestHandler(t *testing.T) (chi.Router, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(mockService, logger, nil).Register(r)
	return r, mockService
}

func asUser(req *http.Request, userID string) *http.Request {
	return testutil.AsPrincipal(req, userID)
}

func (s *ConsentHandlerSuite) TestHandleGrant() {
	router, mockService := newTestHandler(s.T())
	grantedAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	mockService.EXPECT().Grant(
		gomock.Any(),
		domain.UserID("alice"),
		consentModel.ConsentRequestInput{
			ThirdPartyID: "acme",
			DataTypes:    []domain.DataType{"email", "address"},
			Purpose:      "marketing",
		},
	).Return(&consentModel.ConsentGrant{
		ID:           "2f2e9c7a-1111-4d3e-9b2a-000000000001",
		UserID:       "alice",
		ThirdPartyID: "acme",
		DataTypes:    []domain.DataType{"email", "address"},
		Purpose:      "marketing",
		GrantedAt:    grantedAt,
		Status:       consentModel.StatusActive,
	}, nil)

	body, err := json.Marshal(consentModel.GrantConsentRequest{
		ThirdPartyID: "acme",
		DataTypes:    []string{"email", "address"},
		Purpose:      "marketing",
	})
	require.NoError(s.T(), err)

	req := asUser(httptest.NewRequest(http.MethodPost, "/grant", bytes.NewReader(body)), "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusCreated, w.Code)
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "2f2e9c7a-1111-4d3e-9b2a-000000000001", resp["id"])
	assert.Equal(s.T(), "active", resp["status"])
	assert.Equal(s.T(), []any{"email", "address"}, resp["data_types"])
}

func (s *ConsentHandlerSuite) TestHandleGrant_EmptyDataTypes() {
	router, _ := newTestHandler(s.T())

	body, err := json.Marshal(consentModel.GrantConsentRequest{
		ThirdPartyID: "acme",
		Purpose:      "marketing",
	})
	require.NoError(s.T(), err)

	req := asUser(httptest.NewRequest(http.MethodPost, "/grant", bytes.NewReader(body)), "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "validation_error", resp["error"])
}

func (s *ConsentHandlerSuite) TestHandleGrant_NoPrincipal() {
	router, _ := newTestHandler(s.T())

	body := []byte(`{"third_party_id":"acme","data_types":["email"]}`)
	req := httptest.NewRequest(http.MethodPost, "/grant", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusInternalServerError, w.Code)
}

func (s *ConsentHandlerSuite) TestHandleRevoke() {
	router, mockService := newTestHandler(s.T())
	grantedAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	revokedAt := grantedAt.Add(time.Hour)
	consentID := "2f2e9c7a-1111-4d3e-9b2a-000000000001"

	mockService.EXPECT().Revoke(
		gomock.Any(),
		domain.UserID("alice"),
		domain.ConsentID(consentID),
	).Return(&consentModel.ConsentGrant{
		ID:           domain.ConsentID(consentID),
		UserID:       "alice",
		ThirdPartyID: "acme",
		DataTypes:    []domain.DataType{"email"},
		GrantedAt:    grantedAt,
		Status:       consentModel.StatusRevoked,
		RevokedAt:    &revokedAt,
	}, nil)

	body := []byte(`{"consent_id":"` + consentID + `"}`)
	req := asUser(httptest.NewRequest(http.MethodPost, "/revoke", bytes.NewReader(body)), "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "revoked", resp["status"])
	assert.NotEmpty(s.T(), resp["revoked_at"])
}

func (s *ConsentHandlerSuite) TestHandleRevoke_ErrorMapping() {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", dErrors.New(dErrors.CodeNotFound, "consent grant not found"), http.StatusNotFound},
		{"not owner", dErrors.New(dErrors.CodeForbidden, "consent grant belongs to another user"), http.StatusForbidden},
		{"already revoked", dErrors.New(dErrors.CodeConflict, "consent grant is already revoked"), http.StatusConflict},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			router, mockService := newTestHandler(s.T())
			consentID := "2f2e9c7a-1111-4d3e-9b2a-000000000001"
			mockService.EXPECT().
				Revoke(gomock.Any(), domain.UserID("alice"), domain.ConsentID(consentID)).
				Return(nil, tc.err)

			body := []byte(`{"consent_id":"` + consentID + `"}`)
			req := asUser(httptest.NewRequest(http.MethodPost, "/revoke", bytes.NewReader(body)), "alice")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(s.T(), tc.wantStatus, w.Code)
		})
	}
}

func (s *ConsentHandlerSuite) TestHandleRevoke_MalformedID() {
	router, _ := newTestHandler(s.T())

	body := []byte(`{"consent_id":"not-a-uuid"}`)
	req := asUser(httptest.NewRequest(http.MethodPost, "/revoke", bytes.NewReader(body)), "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *ConsentHandlerSuite) TestHandleHistory() {
	router, mockService := newTestHandler(s.T())
	grantedAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	mockService.EXPECT().History(gomock.Any(), domain.UserID("alice")).Return([]*consentModel.ConsentGrant{
		{
			ID:           "2f2e9c7a-1111-4d3e-9b2a-000000000001",
			UserID:       "alice",
			ThirdPartyID: "acme",
			DataTypes:    []domain.DataType{"email"},
			GrantedAt:    grantedAt,
			Status:       consentModel.StatusActive,
		},
	}, nil)

	req := asUser(httptest.NewRequest(http.MethodGet, "/history", nil), "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp map[string][]consentModel.GrantSummary
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(s.T(), resp["history"], 1)
	assert.Equal(s.T(), "acme", resp["history"][0].ThirdPartyID)
}

func (s *ConsentHandlerSuite) TestHandleHistory_Empty() {
	router, mockService := newTestHandler(s.T())
	mockService.EXPECT().History(gomock.Any(), domain.UserID("alice")).Return(nil, nil)

	req := asUser(httptest.NewRequest(http.MethodGet, "/history", nil), "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.JSONEq(s.T(), `{"history":[]}`, w.Body.String())
}

func (s *ConsentHandlerSuite) TestHandleStatus() {
	router, mockService := newTestHandler(s.T())
	grantedAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	mockService.EXPECT().
		Status(gomock.Any(), domain.UserID("alice"), domain.ThirdPartyID("acme")).
		Return(consentModel.ConsentStatus{
			HasConsent: true,
			ActiveGrants: []consentModel.ActiveGrantSummary{
				{ID: "2f2e9c7a-1111-4d3e-9b2a-000000000001", DataTypes: []string{"email"}, Purpose: "marketing", GrantedAt: grantedAt},
			},
		}, nil)

	req := asUser(httptest.NewRequest(http.MethodGet, "/status?third_party_id=acme", nil), "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp consentModel.ConsentStatus
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(s.T(), resp.HasConsent)
	require.Len(s.T(), resp.ActiveGrants, 1)
}

func (s *ConsentHandlerSuite) TestHandleStatus_MissingThirdParty() {
	router, _ := newTestHandler(s.T())

	req := asUser(httptest.NewRequest(http.MethodGet, "/status", nil), "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

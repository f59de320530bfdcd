package apiclient

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MediCare/internal/dosing"
	"MediCare/internal/model"
	"MediCare/internal/model/dto"
	"MediCare/pkg/errors"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func data(v interface{}) map[string]interface{} {
	return map[string]interface{}{"data": v}
}

func apiError(code, message string) map[string]interface{} {
	return map[string]interface{}{"error": map[string]string{"code": code, "message": message}}
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestSignIn_StoresSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		var req dto.SignInRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "secret1" {
			writeJSON(w, http.StatusUnauthorized, apiError("INVALID_CREDENTIALS", "Invalid email or password"))
			return
		}
		writeJSON(w, http.StatusOK, data(dto.AuthResponse{
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresIn:    1800,
			User:         dto.UserProfile{ID: "42", Email: req.Email, Role: "patient", Timezone: "UTC"},
		}))
	})

	c := newTestClient(t, mux)
	var saved Session
	c.notify = func(s Session) { saved = s }

	_, err := c.SignIn(context.Background(), "ann@example.com", "wrong")
	assert.ErrorIs(t, err, errors.InvalidCredentials)
	assert.Empty(t, c.Session().AccessToken)

	resp, err := c.SignIn(context.Background(), "ann@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "42", resp.User.ID)

	uid, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42", uid)
	assert.Equal(t, "refresh", saved.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), saved.ExpiresAt, time.Minute)
}

func TestDo_RefreshesExpiringToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/medications", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, apiError("NOT_AUTHENTICATED", "Not authenticated"))
			return
		}
		writeJSON(w, http.StatusOK, data([]model.Medication{{Name: "Aspirin"}}))
	})
	mux.HandleFunc("/v1/auth/token/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, data(dto.AuthResponse{
			AccessToken:  "fresh",
			RefreshToken: "refresh-2",
			ExpiresIn:    1800,
			User:         dto.UserProfile{ID: "42"},
		}))
	})

	c := newTestClient(t, mux)
	c.SetSession(Session{AccessToken: "stale", RefreshToken: "refresh-1", UserID: "42", ExpiresAt: time.Now().Add(-time.Minute)})

	meds, err := c.ListMedications(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, meds, 1)
	assert.Equal(t, "Aspirin", meds[0].Name)
	assert.Equal(t, "refresh-2", c.Session().RefreshToken)
}

func TestDo_NoRetryOnRejectedToken(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/medications", func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusUnauthorized, apiError("NOT_AUTHENTICATED", "Not authenticated"))
	})

	c := newTestClient(t, mux)
	c.SetSession(Session{AccessToken: "revoked", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour)})

	_, err := c.ListMedications(context.Background(), "42")
	assert.ErrorIs(t, err, errors.NotAuthenticated)
	assert.Equal(t, 1, calls)
}

func TestDo_NotSignedIn(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())

	_, err := c.Summary(context.Background())
	assert.ErrorIs(t, err, errors.NotAuthenticated)
}

func TestUploadFile_SendsRawBody(t *testing.T) {
	var gotPath, gotType string
	var gotBody []byte
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/proofs/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		writeJSON(w, http.StatusCreated, data(dto.ProofUploadResponse{Path: "42/1-1-ab.png", Size: int64(len(gotBody))}))
	})

	c := newTestClient(t, mux)
	c.SetSession(Session{AccessToken: "tok", UserID: "42"})

	err := c.UploadFile(context.Background(), "proof-photos", "42/1-1-ab.png", []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/v1/proofs/42/1-1-ab.png", gotPath)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, []byte("png-bytes"), gotBody)
}

func TestCreateSignedURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/proofs/signed-url", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42/a.png", r.URL.Query().Get("path"))
		assert.Equal(t, "120", r.URL.Query().Get("expires_in"))
		writeJSON(w, http.StatusOK, data(dto.SignedURLResponse{URL: "https://cdn.example/42/a.png?sig=1"}))
	})

	c := newTestClient(t, mux)
	c.SetSession(Session{AccessToken: "tok"})

	u, err := c.CreateSignedURL(context.Background(), "proof-photos", "42/a.png", 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/42/a.png?sig=1", u)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"no content", http.StatusNoContent, "", nil},
		{"known code", http.StatusNotFound, `{"error":{"code":"MEDICATION_NOT_FOUND","message":"Medication not found"}}`, errors.MedicationNotFound},
		{"code with custom message", http.StatusBadRequest, `{"error":{"code":"INVALID_REQUEST","message":"month must be yyyy-MM"}}`, errors.InvalidRequest},
		{"unknown code", http.StatusTeapot, `{"error":{"code":"BREWING","message":"x"}}`, errors.Definition{Code: "BREWING", Message: "Unexpected error"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := decode(tt.status, []byte(tt.body), nil)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	err := decode(http.StatusBadGateway, []byte("<html>bad gateway</html>"), nil)
	require.Error(t, err)
	_, ok := errors.DefinitionOf(err)
	assert.False(t, ok)
}

func TestEscapePath(t *testing.T) {
	assert.Equal(t, "42/1-2-a%20b.png", escapePath("/42/1-2-a b.png"))
}

// 通过真实 HTTP 往返驱动标记已服的完整流程
func TestCoordinatorOverHTTP(t *testing.T) {
	var (
		mu     sync.Mutex
		logs   []model.DoseLog
		nextID int64 = 1
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/proofs/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, data(dto.ProofUploadResponse{Path: r.URL.Path}))
	})
	mux.HandleFunc("/v1/dose-logs", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, data(logs))
			return
		}
		var req dto.CreateDoseLogRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		l := model.DoseLog{UserID: 42, MedicationID: req.MedicationID, TakenAt: req.TakenAt, ProofPath: req.ProofPath}
		l.ID = nextID
		nextID++
		logs = append(logs, l)
		writeJSON(w, http.StatusCreated, data(l))
	})

	c := newTestClient(t, mux)
	c.SetSession(Session{AccessToken: "tok", UserID: "42"})

	var states []dosing.State
	coord := dosing.NewCoordinator(c, nil, dosing.Options{
		Now:          func() time.Time { return time.UnixMilli(1700000000000) },
		Suffix:       func() string { return "abcd1234" },
		OnTransition: func(tr dosing.Transition) { states = append(states, tr.To) },
	})

	taken := time.Date(2024, time.March, 10, 8, 0, 0, 0, time.UTC)
	created, err := coord.MarkTaken(context.Background(), 7, taken, &dosing.ProofFile{Name: "pill.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}})
	require.NoError(t, err)

	require.NotNil(t, created.ProofPath)
	assert.Equal(t, "42/7-1700000000000-abcd1234.jpg", *created.ProofPath)
	assert.Equal(t, []dosing.State{dosing.StateUploading, dosing.StateSubmitting, dosing.StateSucceeded}, states)

	mirrored := coord.Mirror().Logs()
	require.Len(t, mirrored, 1)
	assert.Equal(t, int64(1), mirrored[0].ID)
}

func TestCoordinatorOverHTTP_InsertRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/dose-logs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, apiError("MEDICATION_NOT_FOUND", "Medication not found"))
	})

	c := newTestClient(t, mux)
	c.SetSession(Session{AccessToken: "tok", UserID: "42"})
	coord := dosing.NewCoordinator(c, nil, dosing.Options{})

	_, err := coord.MarkTaken(context.Background(), 99, time.Now(), nil)

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.LogCreationFailed))
	assert.True(t, stderrors.Is(err, errors.MedicationNotFound))
	assert.Empty(t, coord.Mirror().Logs())
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prpm-dev/registry/internal/credits"
	"github.com/prpm-dev/registry/internal/models"
	"github.com/prpm-dev/registry/internal/playground"
	"github.com/prpm-dev/registry/internal/provider"
)

type fakePlayground struct {
	estimate  int
	runResult *playground.RunResult
	runErr    error

	anonCalls int
	anonErr   error
}

func (f *fakePlayground) EstimateRun(req playground.RunRequest) (int, error) {
	if req.Input == "" {
		return 0, playground.ErrEmptyInput
	}
	return f.estimate, nil
}

func (f *fakePlayground) Run(ctx context.Context, req playground.RunRequest) (*playground.RunResult, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	return f.runResult, nil
}

func (f *fakePlayground) AnonymousRun(ctx context.Context, identity string, pkg *models.PromptPackage, input string) (string, error) {
	f.anonCalls++
	if f.anonCalls > 1 {
		return "", playground.ErrAnonymousLimit
	}
	if f.anonErr != nil {
		return "", f.anonErr
	}
	return "hello from the model", nil
}

func packageRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "owner_id", "name", "slug", "description", "system_prompt", "default_model", "created_at", "updated_at"}).
		AddRow(int64(1), int64(9), "summarizer", "summarizer", "", "You summarize.", "sonnet", now, now)
}

func newTestRouter(t *testing.T, fake *fakePlayground) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logrus.New()
	h := &Handlers{DB: db, Playground: fake, Log: log}

	r := gin.New()
	authed := func(fn gin.HandlerFunc) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set("userID", int64(7))
			fn(c)
		}
	}
	r.POST("/v1/playground/estimate", authed(h.EstimatePlaygroundRun))
	r.POST("/v1/playground/run", authed(h.RunPlayground))
	r.POST("/v1/playground/anonymous-run", h.AnonymousRunPlayground)
	return r, mock
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestEstimateEndpoint(t *testing.T) {
	fake := &fakePlayground{estimate: 6}
	r, mock := newTestRouter(t, fake)

	mock.ExpectQuery(regexp.QuoteMeta("FROM packages WHERE id = ?")).
		WithArgs(int64(1)).
		WillReturnRows(packageRow())

	w := postJSON(r, "/v1/playground/estimate", gin.H{
		"package_id": 1, "input": "some text", "model": "sonnet",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 6, resp["estimated_credits"])
}

func TestEstimateEndpointPackageNotFound(t *testing.T) {
	fake := &fakePlayground{estimate: 6}
	r, mock := newTestRouter(t, fake)

	mock.ExpectQuery(regexp.QuoteMeta("FROM packages WHERE id = ?")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := postJSON(r, "/v1/playground/estimate", gin.H{
		"package_id": 42, "input": "some text", "model": "sonnet",
	})

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp["error"])
}

func TestRunEndpointInsufficientCredits(t *testing.T) {
	fake := &fakePlayground{
		runErr: &credits.InsufficientCreditsError{Required: 3, Available: 2},
	}
	r, mock := newTestRouter(t, fake)

	mock.ExpectQuery(regexp.QuoteMeta("FROM packages WHERE id = ?")).
		WithArgs(int64(1)).
		WillReturnRows(packageRow())

	w := postJSON(r, "/v1/playground/run", gin.H{
		"package_id": 1, "input": "some text", "model": "sonnet",
	})

	require.Equal(t, http.StatusPaymentRequired, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "insufficient_credits", resp["error"])
	assert.EqualValues(t, 3, resp["required_credits"])
	assert.EqualValues(t, 2, resp["available_credits"])
}

func TestRunEndpointSuccess(t *testing.T) {
	fake := &fakePlayground{
		runResult: &playground.RunResult{
			Session: &models.PlaygroundSession{
				ID: "sess-1",
				Conversation: []models.Message{
					{Role: models.RoleUser, Content: "some text"},
					{Role: models.RoleAssistant, Content: "a summary"},
				},
				CreditsSpent: 3,
			},
			Response:         "a summary",
			CreditsCharged:   3,
			CreditsRemaining: 97,
		},
	}
	r, mock := newTestRouter(t, fake)

	mock.ExpectQuery(regexp.QuoteMeta("FROM packages WHERE id = ?")).
		WithArgs(int64(1)).
		WillReturnRows(packageRow())

	w := postJSON(r, "/v1/playground/run", gin.H{
		"package_id": 1, "input": "some text", "model": "sonnet",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sess-1", resp["session_id"])
	assert.EqualValues(t, 3, resp["credits_spent"])
	assert.EqualValues(t, 97, resp["credits_remaining"])
	assert.Equal(t, "a summary", resp["response"])
}

func TestRunEndpointProviderFailure(t *testing.T) {
	fake := &fakePlayground{
		runErr: &provider.Error{Model: "sonnet", Err: errors.New("upstream timeout")},
	}
	r, mock := newTestRouter(t, fake)

	mock.ExpectQuery(regexp.QuoteMeta("FROM packages WHERE id = ?")).
		WithArgs(int64(1)).
		WillReturnRows(packageRow())

	w := postJSON(r, "/v1/playground/run", gin.H{
		"package_id": 1, "input": "some text", "model": "sonnet",
	})

	require.Equal(t, http.StatusBadGateway, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "provider_error", resp["error"])
}

func TestRunEndpointRejectsMissingInput(t *testing.T) {
	r, _ := newTestRouter(t, &fakePlayground{})

	w := postJSON(r, "/v1/playground/run", gin.H{"package_id": 1, "model": "sonnet"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp["error"])
}

func TestAnonymousRunEndpointSingleUse(t *testing.T) {
	fake := &fakePlayground{}
	r, mock := newTestRouter(t, fake)

	mock.ExpectQuery(regexp.QuoteMeta("FROM packages WHERE id = ?")).
		WithArgs(int64(1)).
		WillReturnRows(packageRow())
	mock.ExpectQuery(regexp.QuoteMeta("FROM packages WHERE id = ?")).
		WithArgs(int64(1)).
		WillReturnRows(packageRow())

	body := gin.H{"package_id": 1, "input": "try me"}

	w := postJSON(r, "/v1/playground/anonymous-run", body)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "hello from the model", resp["response"])

	w = postJSON(r, "/v1/playground/anonymous-run", body)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "limit_exceeded", resp["error"])
}

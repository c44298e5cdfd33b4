package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/kurisync/internal/api/http/handler"
	"github.com/dtroode/kurisync/internal/metrics"
	"github.com/dtroode/kurisync/internal/model"
	"github.com/dtroode/kurisync/internal/service"
	"github.com/dtroode/kurisync/internal/testutil"
)

type mockQuery struct {
	mock.Mock
}

func (m *mockQuery) Registry(ctx context.Context) (model.Registry, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.Registry), args.Error(1)
}

func (m *mockQuery) RefreshLedgers(ctx context.Context) ([]service.LedgerResult, error) {
	args := m.Called(ctx)
	return args.Get(0).([]service.LedgerResult), args.Error(1)
}

func (m *mockQuery) RefreshUsers(ctx context.Context) ([]service.UserResult, error) {
	args := m.Called(ctx)
	return args.Get(0).([]service.UserResult), args.Error(1)
}

func (m *mockQuery) PaymentStatus(ctx context.Context, contract, user string) (service.PaymentStatus, error) {
	args := m.Called(ctx, contract, user)
	return args.Get(0).(service.PaymentStatus), args.Error(1)
}

func (m *mockQuery) Status(ctx context.Context, contract, user string) (model.Status, error) {
	args := m.Called(ctx, contract, user)
	return args.Get(0).(model.Status), args.Error(1)
}

func (m *mockQuery) Overview(ctx context.Context, wallet string) (model.Overview, error) {
	args := m.Called(ctx, wallet)
	return args.Get(0).(model.Overview), args.Error(1)
}

func (m *mockQuery) Snapshot(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

type mockSync struct {
	mock.Mock
}

func (m *mockSync) Run(ctx context.Context, job model.Job) (model.SyncReport, error) {
	args := m.Called(ctx, job)
	return args.Get(0).(model.SyncReport), args.Error(1)
}

type mockTokens struct {
	mock.Mock
}

func (m *mockTokens) Authenticate(header string) (string, error) {
	args := m.Called(header)
	return args.String(0), args.Error(1)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type env struct {
	query   *mockQuery
	sync    *mockSync
	tokens  *mockTokens
	metrics *metrics.Metrics
	engine  *gin.Engine
}

func newEnv(t *testing.T, store handler.Pinger) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	e := &env{query: &mockQuery{}, sync: &mockSync{}, tokens: &mockTokens{}, metrics: metrics.New()}
	log := testutil.MakeNoopLogger()
	h := handler.New(e.query, e.sync, store, log)
	e.engine = New(h, e.tokens, e.metrics, []string{"https://app.example"}, log).Register()
	return e
}

func (e *env) do(method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var body handler.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

const (
	contract = "0xcccccccccccccccccccccccccccccccccccccccc"
	user     = "0xdddddddddddddddddddddddddddddddddddddddd"
)

func TestRouter_Welcome(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Welcome to kurisync"}`, rec.Body.String())
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name  string
		store handler.Pinger
		code  int
	}{
		{name: "store reachable", store: pinger{}, code: http.StatusOK},
		{name: "store down", store: pinger{err: errors.New("connection refused")}, code: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rec := newEnv(t, tt.store).do(http.MethodGet, "/healthz", nil)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestRouter_Overview_Golden(t *testing.T) {
	e := newEnv(t, nil)
	e.query.On("Overview", mock.Anything, "0xa").Return(model.Overview{
		WalletAddress: "0xa",
		User:          model.OverviewUser{ID: 7, Name: "alice", Balance: 12.5, Points: 40},
		Ledgers: []model.LedgerOverview{{
			ID:              1,
			ContractAddress: "0xl1",
			Contributions:   150,
			TruthTable: model.TruthTable{
				Periods: 3,
				Participants: []model.ParticipantRow{
					{Name: "alice", Address: "0xa", Statuses: []model.RoundStatus{model.StatusPaid, model.StatusBid, model.StatusPending}},
					{Name: model.UnknownParticipant, Address: "0xc", Statuses: []model.RoundStatus{model.StatusWon, model.StatusUnpaid, model.StatusPending}},
				},
			},
		}},
	}, nil).Once()

	rec := e.do(http.MethodGet, "/api/mvp/0xa", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var indented bytes.Buffer
	require.NoError(t, json.Indent(&indented, rec.Body.Bytes(), "", "  "))

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "mvp_overview", indented.Bytes())
}

func TestRouter_ErrorMapping(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		setup func(q *mockQuery)
		code  int
		error string
	}{
		{
			name: "unknown wallet",
			path: "/api/mvp/0xa",
			setup: func(q *mockQuery) {
				q.On("Overview", mock.Anything, "0xa").Return(model.Overview{}, model.ErrNotFound)
			},
			code:  http.StatusNotFound,
			error: "not found",
		},
		{
			name: "ledger without slots",
			path: "/api/roscaPaymentStatus/" + contract + "/" + user,
			setup: func(q *mockQuery) {
				q.On("PaymentStatus", mock.Anything, contract, user).Return(service.PaymentStatus{}, model.ErrSlotsUnknown)
			},
			code:  http.StatusNotFound,
			error: "ledger metadata unavailable",
		},
		{
			name: "ledger without round",
			path: "/api/roscaPaymentStatus/" + contract + "/" + user,
			setup: func(q *mockQuery) {
				q.On("PaymentStatus", mock.Anything, contract, user).Return(service.PaymentStatus{}, model.ErrRoundUnknown)
			},
			code:  http.StatusNotFound,
			error: "ledger metadata unavailable",
		},
		{
			name: "malformed address",
			path: "/api/statuses/0x12/" + user,
			setup: func(q *mockQuery) {
				q.On("Status", mock.Anything, "0x12", user).Return(model.Status{}, model.ErrInvalidAddress)
			},
			code:  http.StatusBadRequest,
			error: "invalid address",
		},
		{
			name: "registry unavailable",
			path: "/api/sheetData",
			setup: func(q *mockQuery) {
				q.On("Registry", mock.Anything).Return(model.Registry{}, model.ErrRetriesExhausted)
			},
			code:  http.StatusInternalServerError,
			error: "internal server error",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, nil)
			tt.setup(e.query)

			rec := e.do(http.MethodGet, tt.path, nil)

			assert.Equal(t, tt.code, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.error, body.Error)
			assert.NotEmpty(t, body.Details)
		})
	}
}

func TestRouter_RoscaData(t *testing.T) {
	e := newEnv(t, nil)
	e.query.On("RefreshLedgers", mock.Anything).Return([]service.LedgerResult{
		{Ledger: model.Ledger{ID: 1, ContractAddress: "0xl1", Participants: []string{}}},
		{Ledger: model.Ledger{ID: 2, ContractAddress: "0xl2"}, Error: "failed to store ledger: disk full"},
	}, nil).Once()

	rec := e.do(http.MethodGet, "/api/roscaData", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.NotContains(t, got[0], "error")
	assert.Equal(t, "failed to store ledger: disk full", got[1]["error"])
}

func TestRouter_UserData(t *testing.T) {
	e := newEnv(t, nil)
	e.query.On("RefreshUsers", mock.Anything).Return([]service.UserResult{
		{User: model.User{ID: 1, WalletAddress: "0xa", Name: "alice"}},
	}, nil).Once()

	rec := e.do(http.MethodGet, "/api/userData", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"walletAddress":"0xa"`)
}

func TestRouter_TriggerSync(t *testing.T) {
	bearer := http.Header{"Authorization": []string{"Bearer good"}}

	tests := []struct {
		name   string
		path   string
		header http.Header
		setup  func(e *env)
		code   int
		check  func(t *testing.T, body []byte)
	}{
		{
			name: "missing token",
			path: "/api/sync/ledgers",
			setup: func(e *env) {
				e.tokens.On("Authenticate", "").Return("", errors.New("missing operator token"))
			},
			code: http.StatusUnauthorized,
		},
		{
			name:   "unknown job",
			path:   "/api/sync/purge",
			header: bearer,
			setup: func(e *env) {
				e.tokens.On("Authenticate", "Bearer good").Return("ops", nil)
			},
			code: http.StatusBadRequest,
		},
		{
			name:   "runs job",
			path:   "/api/sync/ledgers",
			header: bearer,
			setup: func(e *env) {
				e.tokens.On("Authenticate", "Bearer good").Return("ops", nil)
				e.sync.On("Run", mock.Anything, model.JobLedgers).Return(model.SyncReport{
					Job:       model.JobLedgers,
					RunID:     "run-1",
					Succeeded: 2,
					Failed:    []model.EntityFailure{{Key: "ledger 0xl3", Error: "slots: retries exhausted"}},
					Skipped:   []model.EntityFailure{},
				}, nil)
			},
			code: http.StatusOK,
		},
		{
			name:   "job fails after partial work",
			path:   "/api/sync/registry",
			header: bearer,
			setup: func(e *env) {
				e.tokens.On("Authenticate", "Bearer good").Return("ops", nil)
				e.sync.On("Run", mock.Anything, model.JobRegistry).Return(model.SyncReport{
					Job:       model.JobRegistry,
					RunID:     "run-2",
					Succeeded: 3,
					Failed:    []model.EntityFailure{},
					Skipped:   []model.EntityFailure{},
				}, context.Canceled)
			},
			code: http.StatusInternalServerError,
			check: func(t *testing.T, raw []byte) {
				var body handler.SyncFailureResponse
				require.NoError(t, json.Unmarshal(raw, &body))
				assert.Equal(t, "internal server error", body.Error)
				assert.Contains(t, body.Details, "context canceled")
				assert.Equal(t, "run-2", body.Report.RunID)
				assert.Equal(t, 3, body.Report.Succeeded)
			},
		},
		{
			name:   "caller gone before report",
			path:   "/api/sync/statuses",
			header: bearer,
			setup: func(e *env) {
				e.tokens.On("Authenticate", "Bearer good").Return("ops", nil)
				e.sync.On("Run", mock.Anything, model.JobStatuses).Return(model.SyncReport{}, context.DeadlineExceeded)
			},
			code: http.StatusInternalServerError,
			check: func(t *testing.T, raw []byte) {
				assert.NotContains(t, string(raw), `"report"`)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, nil)
			tt.setup(e)

			rec := e.do(http.MethodPost, tt.path, tt.header)

			if tt.check != nil {
				require.Equal(t, tt.code, rec.Code)
				tt.check(t, rec.Body.Bytes())
				return
			}

			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusOK {
				var report model.SyncReport
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
				assert.Equal(t, "run-1", report.RunID)
				assert.Len(t, report.Failed, 1)
			} else {
				e.sync.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestRouter_Snapshot(t *testing.T) {
	e := newEnv(t, nil)
	key := strings.Repeat("0", 64)
	e.query.On("Snapshot", mock.Anything, key).Return(io.NopCloser(strings.NewReader(`{"users":[],"roscas":[]}`)), nil).Once()
	e.query.On("Snapshot", mock.Anything, "missing").Return(nil, model.ErrNotFound).Once()

	rec := e.do(http.MethodGet, "/api/registry/snapshots/"+key, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `{"users":[],"roscas":[]}`, rec.Body.String())

	rec = e.do(http.MethodGet, "/api/registry/snapshots/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_CORS(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(http.MethodGet, "/", http.Header{"Origin": []string{"https://app.example"}})
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = e.do(http.MethodGet, "/", http.Header{"Origin": []string{"https://evil.example"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	e := newEnv(t, nil)
	e.query.On("Overview", mock.Anything, mock.Anything).Return(model.Overview{}, model.ErrNotFound)

	e.do(http.MethodGet, "/api/mvp/0x1", nil)
	e.do(http.MethodGet, "/api/mvp/0x2", nil)
	rec := e.do(http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(),
		`kurisync_http_requests_total{method="GET",route="/api/mvp/:walletAddress",status="404"} 2`)
}

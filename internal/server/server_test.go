package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	accountrepo "github.com/smallbiznis/bookkeeper/internal/account/repository"
	accountservice "github.com/smallbiznis/bookkeeper/internal/account/service"
	auditrepo "github.com/smallbiznis/bookkeeper/internal/audit/repository"
	auditservice "github.com/smallbiznis/bookkeeper/internal/audit/service"
	balancerepo "github.com/smallbiznis/bookkeeper/internal/balance/repository"
	balanceservice "github.com/smallbiznis/bookkeeper/internal/balance/service"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	"github.com/smallbiznis/bookkeeper/internal/config"
	"github.com/smallbiznis/bookkeeper/internal/migration"
	"github.com/smallbiznis/bookkeeper/internal/observability"
	obsmetrics "github.com/smallbiznis/bookkeeper/internal/observability/metrics"
	reportservice "github.com/smallbiznis/bookkeeper/internal/report/service"
	voucherrepo "github.com/smallbiznis/bookkeeper/internal/voucher/repository"
	voucherservice "github.com/smallbiznis/bookkeeper/internal/voucher/service"
	storage "github.com/smallbiznis/bookkeeper/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migration.Migrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 4, 30, 9, 0, 0, 0, time.UTC))
	books := config.NewStaticBooksConfigHolder(config.DefaultBooksConfig())
	log := zap.NewNop()

	audit := auditservice.NewService(auditservice.Params{DB: db, Log: log, Clock: clk, GenID: node, Repo: auditrepo.Provide()})
	balances := balanceservice.New(balanceservice.Params{
		DB: db, Log: log, Clock: clk, Repo: balancerepo.Provide(), AccountRepo: accountrepo.Provide(),
	})

	httpMetrics, err := obsmetrics.NewHTTPMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	return NewServer(ServerParams{
		Gin: NewEngine(observability.Config{}, httpMetrics, config.Config{HTTPRequestTimeout: 5 * time.Second}),
		DB:  db,
		AccountSvc: accountservice.New(accountservice.Params{
			DB: db, Log: log, Clock: clk, GenID: node, Repo: accountrepo.Provide(), AuditSvc: audit,
		}),
		VoucherSvc: voucherservice.New(voucherservice.Params{
			DB:          db,
			Log:         log,
			Clock:       clk,
			GenID:       node,
			Books:       books,
			Repo:        voucherrepo.Provide(),
			AccountRepo: accountrepo.Provide(),
			AuditSvc:    audit,
		}),
		BalanceSvc: balances,
		ReportSvc:  reportservice.New(reportservice.Params{Log: log, Clock: clk, Books: books, BalanceSvc: balances}),
		AuditSvc:   audit,
	})
}

type envelope struct {
	Data     json.RawMessage `json:"data"`
	PageInfo json.RawMessage `json:"page_info"`
	Error    *errorPayload   `json:"error"`
}

func do(t *testing.T, s *Server, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func createLedger(t *testing.T, s *Server, name, groupType string) string {
	t.Helper()

	rec, env := do(t, s, http.MethodPost, "/api/groups", gin.H{"name": name + " Group", "type": groupType})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var group struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &group))

	rec, env = do(t, s, http.MethodPost, "/api/ledgers", gin.H{"name": name, "group_id": group.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ledger struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &ledger))
	return ledger.ID
}

func TestPostVoucherAndTrialBalance(t *testing.T) {
	s := newTestServer(t)
	cash := createLedger(t, s, "Cash", "asset")
	capital := createLedger(t, s, "Capital", "capital")

	rec, env := do(t, s, http.MethodPost, "/api/vouchers", gin.H{
		"type":      "journal",
		"date":      "2024-04-01",
		"narration": "Owner capital",
		"entries": []gin.H{
			{"ledger_id": cash, "debit": "1000"},
			{"ledger_id": capital, "credit": "1000"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var voucher struct {
		ID        string `json:"id"`
		VoucherNo string `json:"voucher_no"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &voucher))
	assert.Equal(t, "JV-2024-0001", voucher.VoucherNo)

	rec, env = do(t, s, http.MethodGet, "/api/ledgers/"+cash+"/balance?as_of=2024-04-01", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var balance struct {
		Balance string `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &balance))
	assert.Equal(t, "1000.00", balance.Balance)

	rec, env = do(t, s, http.MethodGet, "/api/reports/trial-balance?as_of=2024-04-01", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tb struct {
		Entries []struct {
			LedgerID   string `json:"ledger_id"`
			LedgerName string `json:"ledger_name"`
			Debit      string `json:"debit"`
			Credit     string `json:"credit"`
		} `json:"entries"`
		TotalDebit  string `json:"total_debit"`
		TotalCredit string `json:"total_credit"`
		Diff        string `json:"diff"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tb))
	require.Len(t, tb.Entries, 2)
	assert.Equal(t, cash, tb.Entries[0].LedgerID)
	assert.Equal(t, "1000.00", tb.Entries[0].Debit)
	assert.Equal(t, "1000.00", tb.Entries[1].Credit)
	assert.Equal(t, "1000.00", tb.TotalDebit)
	assert.Equal(t, "0.00", tb.Diff)

	rec, _ = do(t, s, http.MethodGet, "/api/vouchers/"+voucher.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, s, http.MethodGet, "/api/vouchers?from=2024-04-01&to=2024-04-30", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var listed []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	assert.Len(t, listed, 1)
}

func TestPostVoucherErrors(t *testing.T) {
	s := newTestServer(t)
	cash := createLedger(t, s, "Cash", "asset")
	capital := createLedger(t, s, "Capital", "capital")

	cases := []struct {
		name      string
		body      gin.H
		status    int
		errorType string
		field     string
		code      string
	}{
		{
			name: "unbalanced",
			body: gin.H{"type": "journal", "date": "2024-04-01", "entries": []gin.H{
				{"ledger_id": cash, "debit": "500"},
				{"ledger_id": capital, "credit": "480"},
			}},
			status: http.StatusUnprocessableEntity, errorType: "integrity_error", field: "entries", code: "unbalanced_voucher",
		},
		{
			name: "both sides on one entry",
			body: gin.H{"type": "journal", "date": "2024-04-01", "entries": []gin.H{
				{"ledger_id": cash, "debit": "10", "credit": "10"},
				{"ledger_id": capital, "credit": "10"},
			}},
			status: http.StatusUnprocessableEntity, errorType: "integrity_error", field: "entries[0].debit", code: "both_sides",
		},
		{
			name: "too many decimals",
			body: gin.H{"type": "journal", "date": "2024-04-01", "entries": []gin.H{
				{"ledger_id": cash, "debit": "10.001"},
				{"ledger_id": capital, "credit": "10.001"},
			}},
			status: http.StatusBadRequest, errorType: "validation_error", field: "entries[0].debit", code: "too_precise",
		},
		{
			name: "single entry",
			body: gin.H{"type": "journal", "date": "2024-04-01", "entries": []gin.H{
				{"ledger_id": cash, "debit": "10"},
			}},
			status: http.StatusUnprocessableEntity, errorType: "integrity_error",
		},
		{
			name: "unknown type",
			body: gin.H{"type": "barter", "date": "2024-04-01", "entries": []gin.H{
				{"ledger_id": cash, "debit": "10"},
				{"ledger_id": capital, "credit": "10"},
			}},
			status: http.StatusBadRequest, errorType: "validation_error", field: "voucher_type", code: "invalid_voucher_type",
		},
		{
			name:   "missing date",
			body:   gin.H{"type": "journal"},
			status: http.StatusBadRequest, errorType: "validation_error", field: "date", code: "required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := do(t, s, http.MethodPost, "/api/vouchers", tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.errorType, env.Error.Type)
			if tc.code != "" {
				require.NotEmpty(t, env.Error.Errors)
				assert.Equal(t, tc.field, env.Error.Errors[0].Field)
				assert.Equal(t, tc.code, env.Error.Errors[0].Code)
			}
		})
	}

	rec, env := do(t, s, http.MethodGet, "/api/vouchers?from=2024-01-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", string(env.Data))
}

func TestIdempotencyKeyHeader(t *testing.T) {
	s := newTestServer(t)
	cash := createLedger(t, s, "Cash", "asset")
	capital := createLedger(t, s, "Capital", "capital")

	body := gin.H{"type": "receipt", "date": "2024-04-02", "entries": []gin.H{
		{"ledger_id": cash, "debit": "25.50"},
		{"ledger_id": capital, "credit": "25.50"},
	}}

	type posted struct {
		ID        string `json:"id"`
		VoucherNo string `json:"voucher_no"`
	}
	var first, second posted

	rec, env := do(t, s, http.MethodPost, "/api/vouchers", body, HeaderIdempotencyKey, "pos-42")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &first))

	rec, env = do(t, s, http.MethodPost, "/api/vouchers", body, HeaderIdempotencyKey, "pos-42")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &second))

	assert.Equal(t, first, second)
	assert.Equal(t, "RV-2024-0001", first.VoucherNo)

	body["entries"] = []gin.H{
		{"ledger_id": cash, "debit": "30"},
		{"ledger_id": capital, "credit": "30"},
	}
	rec, env = do(t, s, http.MethodPost, "/api/vouchers", body, HeaderIdempotencyKey, "pos-42")
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "conflict", env.Error.Type)
	assert.Equal(t, "idempotency_key_reused", env.Error.Message)
}

func TestLedgerLifecycleConflicts(t *testing.T) {
	s := newTestServer(t)
	cash := createLedger(t, s, "Cash", "asset")
	capital := createLedger(t, s, "Capital", "capital")

	rec, env := do(t, s, http.MethodPost, "/api/groups", gin.H{"name": "Other", "type": "asset"})
	require.Equal(t, http.StatusOK, rec.Code)
	var group struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &group))

	rec, env = do(t, s, http.MethodPost, "/api/ledgers", gin.H{"name": "cash", "group_id": group.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", env.Error.Type)

	rec, env = do(t, s, http.MethodPost, "/api/ledgers", gin.H{"name": "Petty", "group_id": "99"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "integrity_error", env.Error.Type)

	rec, _ = do(t, s, http.MethodPost, "/api/vouchers", gin.H{"type": "journal", "date": "2024-04-01", "entries": []gin.H{
		{"ledger_id": cash, "debit": "1"},
		{"ledger_id": capital, "credit": "1"},
	}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, s, http.MethodDelete, "/api/ledgers/"+cash, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ledger_has_postings", env.Error.Message)

	rec, _ = do(t, s, http.MethodPost, "/api/ledgers/"+cash+"/deactivate", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, s, http.MethodGet, "/api/ledgers?is_active=false", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var inactive []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &inactive))
	require.Len(t, inactive, 1)
	assert.Equal(t, cash, inactive[0].ID)

	rec, env = do(t, s, http.MethodGet, "/api/ledgers?is_active=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "is_active", env.Error.Errors[0].Field)
}

func TestNotFoundAndBadDates(t *testing.T) {
	s := newTestServer(t)

	rec, env := do(t, s, http.MethodGet, "/api/vouchers/12345", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Type)

	rec, _ = do(t, s, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = do(t, s, http.MethodGet, "/api/reports/balance-sheet?as_of=31-04-2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "date", env.Error.Errors[0].Field)

	rec, env = do(t, s, http.MethodGet, "/api/reports/ledger-vouchers", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ledger_id", env.Error.Errors[0].Field)
}

func TestHealthAndAuditLogs(t *testing.T) {
	s := newTestServer(t)
	createLedger(t, s, "Cash", "asset")

	rec, _ := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := do(t, s, http.MethodGet, "/api/audit-logs?action=ledger.create", nil, "X-Actor-Type", "user", "X-Actor-Id", "clerk-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var logs []struct {
		Action string `json:"action"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "ledger.create", logs[0].Action)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestStorageUnavailableIsRetryable(t *testing.T) {
	status, payload := mapError(errStorageDown)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "storage_unavailable", payload.Type)
	assert.True(t, payload.Retryable)
}

var errStorageDown = fmt.Errorf("%w: dial tcp: connection refused", storage.ErrStorageUnavailable)

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dbdeck/dbdeck-engine/pkg/apperrors"
	"github.com/dbdeck/dbdeck-engine/pkg/adapters/datasource"
)

func newQueryMux(t *testing.T, svc *fakeQueryService) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	NewQueryHandler(svc, zaptest.NewLogger(t)).RegisterRoutes(mux)
	return mux
}

func TestQueryHandler_Execute(t *testing.T) {
	svc := &fakeQueryService{
		result: &datasource.StatementResult{
			Columns:  []string{"id", "name"},
			Rows:     []map[string]any{{"id": int64(1), "name": "A"}},
			RowCount: 1,
			Elapsed:  42 * time.Millisecond,
		},
	}
	mux := newQueryMux(t, svc)

	id := uuid.New()
	body := `{"database":"analytics","statement":"SELECT * FROM users"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/connections/"+id.String()+"/query", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, svc.gotConnectionID)
	assert.Equal(t, "analytics", svc.gotDatabase)
	assert.Equal(t, "SELECT * FROM users", svc.gotStatement)

	var resp ExecuteQueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"id", "name"}, resp.Columns)
	assert.Equal(t, int64(1), resp.RowCount)
	assert.Equal(t, int64(42), resp.ElapsedMs)
}

func TestQueryHandler_ExecuteWriteWithoutRows(t *testing.T) {
	svc := &fakeQueryService{
		result: &datasource.StatementResult{RowCount: 3},
	}
	mux := newQueryMux(t, svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/connections/"+uuid.NewString()+"/query",
		strings.NewReader(`{"statement":"UPDATE t SET a = 1"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	// Absent columns/rows serialize as empty collections, not null.
	assert.JSONEq(t, `{"columns":[],"rows":[],"row_count":3,"elapsed_ms":0}`, rec.Body.String())
}

func TestQueryHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.ErrValidation, http.StatusBadRequest},
		{"not found", apperrors.ErrNotFound, http.StatusNotFound},
		{"statement failed", apperrors.ErrStatementFailed, http.StatusUnprocessableEntity},
		{"connection failed", apperrors.ErrConnectionFailed, http.StatusBadGateway},
		{"timeout", apperrors.ErrTimeout, http.StatusGatewayTimeout},
		{"credentials key mismatch", apperrors.ErrCredentialsKeyMismatch, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newQueryMux(t, &fakeQueryService{err: tt.err})

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/connections/"+uuid.NewString()+"/query",
				strings.NewReader(`{"statement":"SELECT 1"}`)))

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestQueryHandler_InvalidConnectionID(t *testing.T) {
	mux := newQueryMux(t, &fakeQueryService{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/connections/nope/query",
		strings.NewReader(`{"statement":"SELECT 1"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/askdb/internal/audit"
	"github.com/koustreak/askdb/internal/config"
	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/database/dbtest"
	"github.com/koustreak/askdb/internal/errs"
	"github.com/koustreak/askdb/internal/nl2sql"
	"github.com/koustreak/askdb/internal/query"
	"github.com/koustreak/askdb/internal/session"
)

const testOrigin = "https://app.example.com"

type stubGenerator struct {
	reply string
	err   error
}

func (g *stubGenerator) Generate(context.Context, string) (string, error) { return g.reply, g.err }
func (g *stubGenerator) Provider() string                                 { return "stub" }
func (g *stubGenerator) Model() string                                    { return "stub-1" }

type harness struct {
	srv      *Server
	sessions *session.Manager
	gen      *stubGenerator
	history  *audit.Memory
	dialed   []*dbtest.DB
}

// shopDB answers "SELECT * FROM customers" with one row and everything else
// with zero rows.
func shopDB() *dbtest.DB {
	return &dbtest.DB{
		Tables: []string{"orders", "customers"},
		Columns: map[string][]database.Column{
			"orders":    {{Name: "id", Type: "int"}, {Name: "customer_id", Type: "int"}},
			"customers": {{Name: "id", Type: "int"}, {Name: "name", Type: "varchar(255)"}},
		},
		QueryFunc: func(sql string, _ ...any) (database.Rows, error) {
			switch {
			case sql == "SELECT * FROM customers":
				return dbtest.NewRows([]string{"id", "name"}, []any{int64(1), "A"}), nil
			case strings.Contains(sql, "broken"):
				return nil, errs.Wrap(errs.ErrKindQueryFailed, "query failed", errors.New("Table 'shop.broken' doesn't exist"))
			default:
				return dbtest.NewRows([]string{"id", "name"}), nil
			}
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{gen: &stubGenerator{reply: "```sql\nSELECT * FROM customers;\n```"}, history: audit.NewMemory(10)}

	h.sessions = session.NewManager(session.Options{
		Dialer: func(_ context.Context, cfg *database.ConnectConfig) (database.DB, error) {
			if cfg.Host == "bad" {
				return nil, errs.Wrap(errs.ErrKindConnectionFailed, "ping failed",
					errors.New("Access denied for user 'root'@'10.0.0.1' (using password: YES)"))
			}
			db := shopDB()
			h.dialed = append(h.dialed, db)
			return db, nil
		},
	})

	h.srv = New(config.ServerConfig{AllowedOrigin: testOrigin}, Dependencies{
		Sessions:   h.sessions,
		Translator: nl2sql.NewTranslator(h.gen, time.Second),
		Executor:   &query.Executor{QueryTimeout: time.Second},
		Recorder:   h.history,
	})
	return h
}

func (h *harness) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func (h *harness) connect(t *testing.T) {
	t.Helper()
	code, body := h.do(t, http.MethodPost, "/connect", `{"host":"db.local","port":"3306","user":"root","password":"pw","database":"shop"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["success"], body)
}

func TestNotConnected(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/tables", "/schema"} {
		code, body := h.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, code, path)
		assert.Equal(t, false, body["success"], path)
		assert.Equal(t, "Not connected", body["message"], path)
	}

	code, body := h.do(t, http.MethodPost, "/execute", `{"sql":"SELECT 1"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No DB connection configured.", body["message"])

	code, body = h.do(t, http.MethodGet, "/tables/orders/preview", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No DB connection configured.", body["message"])

	code, body = h.do(t, http.MethodPost, "/generate-sql", `{"question":"how many orders?"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Not connected", body["message"])

	_, body = h.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, false, body["connected"])
}

func TestConnect(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	_, body := h.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, true, body["connected"])

	// Replacing the connection closes the first one.
	h.connect(t)
	require.Len(t, h.dialed, 2)
	assert.True(t, h.dialed[0].Closed())
	assert.False(t, h.dialed[1].Closed())
}

func TestConnect_FailureReportsDriverMessage(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	code, body := h.do(t, http.MethodPost, "/connect", `{"host":"bad","user":"root"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Access denied for user 'root'@'10.0.0.1' (using password: YES)", body["message"])

	assert.True(t, h.dialed[0].Closed())
	_, body = h.do(t, http.MethodGet, "/tables", "")
	assert.Equal(t, "Not connected", body["message"])
}

func TestConnect_BadJSON(t *testing.T) {
	h := newHarness(t)
	code, body := h.do(t, http.MethodPost, "/connect", `{"host":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
}

func TestTablesAndSchema(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	code, body := h.do(t, http.MethodGet, "/tables", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"orders", "customers"}, body["tables"])

	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/schema", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool                         `json:"success"`
		Schema  map[string][]database.Column `json:"schema"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.Schema, 2)
	assert.Equal(t, []database.Column{{Name: "id", Type: "int"}, {Name: "name", Type: "varchar(255)"}}, resp.Schema["customers"])
	assert.Less(t, strings.Index(rec.Body.String(), `"orders"`), strings.Index(rec.Body.String(), `"customers"`))
}

func TestGenerateSQL(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	code, body := h.do(t, http.MethodPost, "/generate-sql", `{"question":"show me a table"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "SELECT * FROM customers", body["sql"])
	assert.Equal(t, "stub", body["provider"])

	// Generating never executes anything.
	assert.Empty(t, h.dialed[0].Queries())
}

func TestGenerateSQL_Failures(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	code, body := h.do(t, http.MethodPost, "/generate-sql", `{"question":"  "}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])

	h.gen.err = errs.Wrap(errs.ErrKindGenerationFailed, "gemini generate content", errors.New("API key not valid"))
	code, body = h.do(t, http.MethodPost, "/generate-sql", `{"question":"how many orders?"}`)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "API key not valid", body["message"])
}

func TestExecute(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	code, body := h.do(t, http.MethodPost, "/execute", `{"sql":"SELECT * FROM customers","question":"show me a table"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []any{"id", "name"}, body["headers"])
	assert.Equal(t, "customers", body["table"])
	assert.Equal(t, []any{map[string]any{"id": float64(1), "name": "A"}}, body["results"])

	entries, err := h.history.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "SELECT * FROM customers", entries[0].SQL)
	assert.Equal(t, "show me a table", entries[0].Question)
	assert.Equal(t, 1, entries[0].RowCount)
}

func TestExecute_ShapesEmptyAndUnclassified(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/execute",
		strings.NewReader(`{"sql":"SELECT id, name FROM orders JOIN customers ON customers.id = orders.customer_id"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
	assert.Contains(t, rec.Body.String(), `"headers":[]`)
	assert.Contains(t, rec.Body.String(), `"table":"multiple"`)

	rec = httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(`{"sql":"SELECT 1"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"table":null`)
}

func TestExecute_Failures(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	code, body := h.do(t, http.MethodPost, "/execute", `{"sql":"DELETE FROM customers"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])

	code, _ = h.do(t, http.MethodPost, "/execute", `{"sql":""}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Empty(t, h.dialed[0].Queries())

	code, body = h.do(t, http.MethodPost, "/execute", `{"sql":"SELECT * FROM broken"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Table 'shop.broken' doesn't exist", body["message"])

	entries, err := h.history.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, "Table 'shop.broken' doesn't exist", entries[0].Error)
}

func TestPreview(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	code, body := h.do(t, http.MethodGet, "/tables/orders/preview?limit=5", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "orders", body["table"])
	assert.Equal(t, []string{"SELECT * FROM `orders` LIMIT ?"}, h.dialed[0].Queries())

	code, _ = h.do(t, http.MethodGet, "/tables/orders/preview?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.do(t, http.MethodGet, "/tables/orders/preview?limit=5000", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHistory(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.do(t, http.MethodPost, "/execute", `{"sql":"SELECT * FROM customers"}`)
	h.do(t, http.MethodPost, "/execute", `{"sql":"SELECT 1"}`)

	code, body := h.do(t, http.MethodGet, "/history?limit=1", "")
	require.Equal(t, http.StatusOK, code)
	entries, ok := body["entries"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, "SELECT 1", entries[0].(map[string]any)["sql"])
}

func TestCORS(t *testing.T) {
	h := newHarness(t)

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/execute", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		h.srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, testOrigin, preflight(testOrigin).Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, preflight("https://evil.example.com").Header().Get("Access-Control-Allow-Origin"))
}

func TestServe_ShutdownClosesConnection(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.True(t, h.dialed[0].Closed())
	assert.False(t, h.sessions.Connected())
}

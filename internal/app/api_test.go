package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Spok95/classroom-board/internal/remotesync"
	"github.com/Spok95/classroom-board/internal/roster"
	"github.com/Spok95/classroom-board/internal/store"
)

type memFiles struct {
	mu    sync.Mutex
	files map[string]json.RawMessage
}

func (m *memFiles) LoadRemoteFile(_ context.Context, name string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[name], nil
}

func (m *memFiles) SaveRemoteFile(_ context.Context, name string, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = append(json.RawMessage(nil), payload...)
	return nil
}

const cls = "一年甲班"

func classPath(rest string) string {
	return "/api/classes/" + url.PathEscape(cls) + rest
}

func setup(t *testing.T) (*echo.Echo, *roster.Service, *memFiles) {
	t.Helper()
	svc := roster.New(store.New(store.NewMemoryBackend(nil), nil), nil)
	if err := svc.Open(); err != nil {
		t.Fatal(err)
	}
	files := &memFiles{files: map[string]json.RawMessage{}}
	e := NewHandler(Deps{
		Service:  svc,
		Syncer:   remotesync.NewSyncer(files, remotesync.NoAuth{}, "board.json", nil),
		Location: time.UTC,
	})
	return e, svc, files
}

func do(t *testing.T, e *echo.Echo, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("ожидали %d, получили %d: %s", code, rec.Code, rec.Body.String())
	}
}

func TestAPI_DeductionFlow(t *testing.T) {
	e, svc, _ := setup(t)

	expect(t, do(t, e, http.MethodPost, "/api/classes", map[string]string{"name": cls}), http.StatusCreated)
	expect(t, do(t, e, http.MethodPost, classPath("/students"), map[string]string{"name": "小明"}), http.StatusCreated)

	rec := do(t, e, http.MethodPost, "/api/deduction-items", map[string]any{"name": "遲到", "points": -2})
	expect(t, rec, http.StatusOK)
	var item struct {
		ID json.RawMessage `json:"id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &item)

	rec = do(t, e, http.MethodPost, classPath("/students/0/deduction"), map[string]json.RawMessage{"itemId": item.ID})
	expect(t, rec, http.StatusOK)
	var res struct {
		Event struct {
			Delta    float64        `json:"delta"`
			NewScore int            `json:"newScore"`
			Type     string         `json:"type"`
			Metadata map[string]any `json:"metadata"`
		} `json:"event"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Event.Delta != -2 || res.Event.NewScore != -2 || res.Event.Type != "deduction-item" || res.Event.Metadata["itemName"] != "遲到" {
		t.Fatalf("неверное событие: %+v", res.Event)
	}

	rec = do(t, e, http.MethodGet, classPath("/students/0/history?type=deductions"), nil)
	expect(t, rec, http.StatusOK)
	var view struct {
		Events  []json.RawMessage `json:"events"`
		Options []struct {
			Key   string `json:"key"`
			Label string `json:"label"`
		} `json:"itemOptions"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &view)
	if len(view.Events) != 1 || len(view.Options) != 1 || view.Options[0].Label != "遲到" {
		t.Fatalf("история: %s", rec.Body.String())
	}

	rec = do(t, e, http.MethodGet, classPath("/students/0/history.xlsx"), nil)
	expect(t, rec, http.StatusOK)
	if !strings.Contains(rec.Header().Get(echo.HeaderContentDisposition), "filename*=UTF-8''") || rec.Body.Len() == 0 {
		t.Fatal("ожидали xlsx во вложении")
	}

	if svc.Ledger().Len() != 1 {
		t.Fatalf("в журнале должно быть одно событие, есть %d", svc.Ledger().Len())
	}
}

func TestAPI_Errors(t *testing.T) {
	e, _, _ := setup(t)
	expect(t, do(t, e, http.MethodPost, "/api/classes", map[string]string{"name": cls}), http.StatusCreated)
	expect(t, do(t, e, http.MethodPost, "/api/classes", map[string]string{"name": cls}), http.StatusConflict)

	rec := do(t, e, http.MethodPost, "/api/deduction-items", map[string]any{"name": "x", "points": 3})
	expect(t, rec, http.StatusBadRequest)
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Fields["points"] != "lte" {
		t.Fatalf("ожидали ошибку поля points: %s", rec.Body.String())
	}
	expect(t, do(t, e, http.MethodPost, "/api/deduction-items", map[string]any{"name": "x"}), http.StatusBadRequest)

	expect(t, do(t, e, http.MethodGet, "/api/classes/nope/students", nil), http.StatusNotFound)
	expect(t, do(t, e, http.MethodPost, classPath("/students/0/quick"), map[string]int{"button": 0}), http.StatusNotFound)
	expect(t, do(t, e, http.MethodPost, classPath("/students/x/quick"), map[string]int{"button": 0}), http.StatusBadRequest)
	expect(t, do(t, e, http.MethodDelete, "/api/deduction-items/404", nil), http.StatusNotFound)
	expect(t, do(t, e, http.MethodGet, classPath("/students/0/history?from=10-05-2024"), nil), http.StatusBadRequest)
	expect(t, do(t, e, http.MethodPut, "/api/score-buttons", map[string][]int{"scoreButtons": {1, 2}}), http.StatusBadRequest)
}

func TestAPI_ZeroDeltaReturnsNullEvent(t *testing.T) {
	e, svc, _ := setup(t)
	expect(t, do(t, e, http.MethodPost, "/api/classes", map[string]string{"name": cls}), http.StatusCreated)
	expect(t, do(t, e, http.MethodPost, classPath("/students"), map[string]string{"name": "小明"}), http.StatusCreated)

	rec := do(t, e, http.MethodPost, classPath("/students/0/custom"), map[string]string{"sign": "+", "input": "abc"})
	expect(t, rec, http.StatusOK)
	if strings.TrimSpace(rec.Body.String()) != `{"event":null}` {
		t.Fatalf("ожидали event:null, получили %s", rec.Body.String())
	}
	expect(t, do(t, e, http.MethodPost, classPath("/students/0/custom"), map[string]string{"sign": "+", "input": "99999999999999999999"}), http.StatusBadRequest)
	if svc.Ledger().Len() != 0 {
		t.Fatal("no-op не пишет событий")
	}
}

func TestAPI_SyncPushPull(t *testing.T) {
	e, svc, files := setup(t)
	expect(t, do(t, e, http.MethodPost, "/api/classes", map[string]string{"name": cls}), http.StatusCreated)

	rec := do(t, e, http.MethodPost, "/api/sync/push", nil)
	expect(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"pushed":true`) {
		t.Fatalf("ожидали выгрузку: %s", rec.Body.String())
	}
	if _, ok := files.files["board.json"]; !ok {
		t.Fatal("файл не выгружен")
	}

	expect(t, do(t, e, http.MethodDelete, classPath(""), nil), http.StatusNoContent)
	if len(svc.ClassNames()) != 1 {
		t.Fatal("класс должен быть удалён локально")
	}

	expect(t, do(t, e, http.MethodPost, "/api/sync/pull", nil), http.StatusOK)
	if names := svc.ClassNames(); len(names) != 2 || names[1] != cls {
		t.Fatalf("после pull должен вернуться документ из облака: %v", names)
	}
}

func TestHealthz(t *testing.T) {
	e, _, _ := setup(t)
	rec := do(t, e, http.MethodGet, "/healthz", nil)
	expect(t, rec, http.StatusOK)
	expect(t, do(t, e, http.MethodGet, "/metrics", nil), http.StatusOK)
}

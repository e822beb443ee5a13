package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-agent/internal/domain"
	"github.com/tbourn/go-chat-agent/internal/repo"
	"github.com/tbourn/go-chat-agent/internal/transport/telegram"
)

// ---------- test plumbing ----------

func newStore(t *testing.T) *repo.Store {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.NewStore(db)
}

type depth int

func (d depth) QueueDepth() int { return int(d) }

type failingStore struct{ err error }

func (f failingStore) TurnsPage(context.Context, int64, int, int) ([]domain.Turn, int64, error) {
	return nil, 0, f.err
}
func (f failingStore) TurnsStats(context.Context, int64) (int64, *time.Time, error) {
	return 0, nil, f.err
}
func (f failingStore) RecentProfileFacts(context.Context, int64, int) ([]domain.ProfileFact, error) {
	return nil, f.err
}
func (f failingStore) Totals(context.Context) (repo.Totals, error) { return repo.Totals{}, f.err }

type fakeWebhook struct {
	secret  string
	accept  bool
	updates []telegram.Update
}

func (f *fakeWebhook) SecretMatches(h string) bool { return f.secret == "" || h == f.secret }
func (f *fakeWebhook) HandleUpdate(u telegram.Update) bool {
	f.updates = append(f.updates, u)
	return f.accept
}

func router(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/chats/:chat_id/turns", h.ListTurns)
	r.GET("/users/:user_id/facts", h.ListFacts)
	r.GET("/stats", h.Stats)
	r.POST("/telegram/webhook", h.TelegramWebhook)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body []byte, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v (%s)", err, w.Body.String())
	}
	return v
}

// ---------- tests ----------

func TestHealth_ReportsQueueDepth(t *testing.T) {
	w := do(t, router(New(nil, depth(7), nil, 0)), http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if got := decode[HealthResponse](t, w); got != (HealthResponse{Status: "ok", QueueDepth: 7}) {
		t.Fatalf("body = %+v", got)
	}
}

func TestListTurns_PaginatesAndETag(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		if err := s.AppendTurn(ctx, -100, 7, role, "t"+string(rune('0'+i)), nil); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	r := router(New(s, depth(0), nil, 8))

	w := do(t, r, http.MethodGet, "/chats/-100/turns?page=2&page_size=2", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	got := decode[ListTurnsResponse](t, w)
	if got.ChatID != -100 || len(got.Turns) != 2 || got.Turns[0].Text != "t2" || got.Turns[1].Text != "t3" {
		t.Fatalf("page contents unexpected: %+v", got)
	}
	want := Pagination{Page: 2, PageSize: 2, Total: 5, TotalPages: 3, HasNext: true}
	if got.Pagination != want {
		t.Fatalf("pagination = %+v; want %+v", got.Pagination, want)
	}

	etag := w.Header().Get("ETag")
	if !strings.HasPrefix(etag, `W/"turns:-100:5:`) {
		t.Fatalf("etag = %q", etag)
	}
	w = do(t, r, http.MethodGet, "/chats/-100/turns", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}

	_ = s.AppendTurn(ctx, -100, 7, domain.RoleUser, "new", nil)
	w = do(t, r, http.MethodGet, "/chats/-100/turns", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusOK || w.Header().Get("ETag") == etag {
		t.Fatalf("etag should change after a new turn: status=%d etag=%q", w.Code, w.Header().Get("ETag"))
	}
}

func TestListTurns_EmptyChatAndClamping(t *testing.T) {
	r := router(New(newStore(t), nil, nil, 8))

	w := do(t, r, http.MethodGet, "/chats/1/turns?page=0&page_size=1000", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	got := decode[ListTurnsResponse](t, w)
	if got.Turns == nil || len(got.Turns) != 0 {
		t.Fatalf("expected empty (non-null) turns: %s", w.Body.String())
	}
	if got.Pagination.Page != 1 || got.Pagination.PageSize != 100 || got.Pagination.HasNext {
		t.Fatalf("pagination = %+v", got.Pagination)
	}
}

func TestListTurns_BadIDAndStoreError(t *testing.T) {
	w := do(t, router(New(newStore(t), nil, nil, 8)), http.MethodGet, "/chats/abc/turns", nil, nil)
	if w.Code != http.StatusBadRequest || decode[ErrorResponse](t, w).Code != ErrCodeBadRequest {
		t.Fatalf("bad id: status=%d body=%s", w.Code, w.Body.String())
	}

	w = do(t, router(New(failingStore{errors.New("db down")}, nil, nil, 8)), http.MethodGet, "/chats/1/turns", nil, nil)
	if w.Code != http.StatusInternalServerError || decode[ErrorResponse](t, w).Code != ErrCodeListFailed {
		t.Fatalf("store error: status=%d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get("ETag") != "" {
		t.Fatalf("no etag expected when stats fail")
	}
}

func TestListFacts(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_ = s.AddProfileFact(ctx, 5, "name", "Dana", 0.9)
	_ = s.AddProfileFact(ctx, 5, "city", "Oslo", 0.7)
	_ = s.AddProfileFact(ctx, 6, "name", "Eli", 0.9)
	r := router(New(s, nil, nil, 8))

	w := do(t, r, http.MethodGet, "/users/5/facts", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	got := decode[ListFactsResponse](t, w)
	if got.UserID != 5 || len(got.Facts) != 2 {
		t.Fatalf("facts = %+v", got)
	}

	w = do(t, r, http.MethodGet, "/users/5/facts?limit=1", nil, nil)
	if got := decode[ListFactsResponse](t, w); len(got.Facts) != 1 {
		t.Fatalf("limit not applied: %+v", got)
	}

	for _, q := range []string{"?limit=0", "?limit=101"} {
		if w := do(t, r, http.MethodGet, "/users/5/facts"+q, nil, nil); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", q, w.Code)
		}
	}

	w = do(t, r, http.MethodGet, "/users/99/facts", nil, nil)
	if !strings.Contains(w.Body.String(), `"facts":[]`) {
		t.Fatalf("expected empty facts array, got %s", w.Body.String())
	}
}

func TestStats(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, _ = s.MarkProcessed(ctx, 1, 1)
	_ = s.AppendTurn(ctx, 1, 2, domain.RoleUser, "hi", nil)
	_ = s.AppendTurn(ctx, 1, 2, domain.RoleAssistant, "hello", nil)

	w := do(t, router(New(s, depth(3), nil, 8)), http.MethodGet, "/stats", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	got := decode[map[string]any](t, w)
	if got["processed_messages"] != float64(1) || got["turns"] != float64(2) ||
		got["profile_facts"] != float64(0) || got["queue_depth"] != float64(3) {
		t.Fatalf("stats = %v", got)
	}

	w = do(t, router(New(failingStore{errors.New("x")}, nil, nil, 8)), http.MethodGet, "/stats", nil, nil)
	if w.Code != http.StatusInternalServerError || decode[ErrorResponse](t, w).Code != ErrCodeStatsFailed {
		t.Fatalf("stats error: status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestTelegramWebhook(t *testing.T) {
	update := []byte(`{"update_id":11,"message":{"message_id":3,"chat":{"id":42,"type":"private"},"from":{"id":42,"first_name":"Dana"},"text":"hi"}}`)

	t.Run("disabled", func(t *testing.T) {
		w := do(t, router(New(nil, nil, nil, 8)), http.MethodPost, "/telegram/webhook", update, nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("status=%d", w.Code)
		}
	})

	t.Run("bad secret", func(t *testing.T) {
		wh := &fakeWebhook{secret: "s3"}
		w := do(t, router(New(nil, nil, wh, 8)), http.MethodPost, "/telegram/webhook", update,
			map[string]string{telegram.SecretHeader: "nope"})
		if w.Code != http.StatusUnauthorized || len(wh.updates) != 0 {
			t.Fatalf("status=%d updates=%d", w.Code, len(wh.updates))
		}
	})

	t.Run("accepted", func(t *testing.T) {
		wh := &fakeWebhook{secret: "s3", accept: true}
		w := do(t, router(New(nil, nil, wh, 8)), http.MethodPost, "/telegram/webhook", update,
			map[string]string{telegram.SecretHeader: "s3"})
		if w.Code != http.StatusOK || len(wh.updates) != 1 {
			t.Fatalf("status=%d updates=%d", w.Code, len(wh.updates))
		}
		u := wh.updates[0]
		if u.UpdateID != 11 || u.Message == nil || u.Message.Text != "hi" || u.Message.From.FirstName != "Dana" {
			t.Fatalf("update decoded wrong: %+v", u)
		}
		if got := decode[map[string]any](t, w); got["accepted"] != true {
			t.Fatalf("body = %v", got)
		}
	})

	t.Run("ignored still acknowledged", func(t *testing.T) {
		wh := &fakeWebhook{accept: false}
		w := do(t, router(New(nil, nil, wh, 8)), http.MethodPost, "/telegram/webhook", update, nil)
		if w.Code != http.StatusOK || decode[map[string]any](t, w)["accepted"] != false {
			t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
		}
	})

	t.Run("malformed still acknowledged", func(t *testing.T) {
		wh := &fakeWebhook{accept: true}
		w := do(t, router(New(nil, nil, wh, 8)), http.MethodPost, "/telegram/webhook", []byte(`{not json`), nil)
		if w.Code != http.StatusOK || len(wh.updates) != 0 {
			t.Fatalf("status=%d updates=%d", w.Code, len(wh.updates))
		}
	})
}

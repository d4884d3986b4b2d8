package notifications

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bazario/pushgate/middleware"
	"github.com/bazario/pushgate/service/gateway"
	"github.com/bazario/pushgate/service/notify"
	"github.com/bazario/pushgate/tools/security"
)

var apiSecret = []byte("api-test-secret")

type stubStore struct {
	items       []notify.Notification
	markedID    string
	markedAll   string
	notOwnerIDs map[string]bool
}

func (s *stubStore) Create(_ context.Context, n *notify.Notification) error {
	s.items = append(s.items, *n)
	return nil
}

func (s *stubStore) ListByRecipient(_ context.Context, recipient string, unreadOnly bool) ([]notify.Notification, error) {
	var out []notify.Notification
	for _, n := range s.items {
		if n.Recipient != recipient {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *stubStore) MarkRead(_ context.Context, id, recipient string) error {
	if s.notOwnerIDs[id] {
		return ErrNotOwner
	}
	s.markedID = id
	return nil
}

func (s *stubStore) MarkAllRead(_ context.Context, recipient string) error {
	s.markedAll = recipient
	return nil
}

func newAPIServer(t *testing.T, store *stubStore) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api", middleware.Auth(gateway.NewJWTResolver(apiSecret)))
	NewHandler(store).Register(api)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func bearerToken(t *testing.T, user string) string {
	t.Helper()
	tok, _, err := security.Generate(security.DefaultOptions(apiSecret), user)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func doRequest(t *testing.T, method, url, token string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestListRequiresAuth(t *testing.T) {
	ts := newAPIServer(t, &stubStore{})

	resp, _ := doRequest(t, http.MethodGet, ts.URL+"/api/notifications", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/notifications", "not-a-jwt")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", resp.StatusCode)
	}
}

func TestListReturnsCallersNotificationsOnly(t *testing.T) {
	store := &stubStore{items: []notify.Notification{
		{ID: "n-1", Recipient: "bob", Type: notify.TypeMessage, Content: "one", CreatedAt: time.Now().UTC()},
		{ID: "n-2", Recipient: "bob", Type: notify.TypeFavorite, Content: "two", IsRead: true, CreatedAt: time.Now().UTC()},
		{ID: "n-3", Recipient: "carol", Type: notify.TypeMessage, Content: "not yours", CreatedAt: time.Now().UTC()},
	}}
	ts := newAPIServer(t, store)

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/notifications", bearerToken(t, "bob"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %s", resp.StatusCode, body)
	}
	var items []notify.Notification
	if err := json.Unmarshal(body, &items); err != nil {
		t.Fatalf("unmarshal %s: %v", body, err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %v, want bob's two", items)
	}
	for _, n := range items {
		if n.Recipient != "bob" {
			t.Errorf("leaked notification for %s", n.Recipient)
		}
	}
}

func TestUnreadFiltersReadItems(t *testing.T) {
	store := &stubStore{items: []notify.Notification{
		{ID: "n-1", Recipient: "bob", Content: "unread"},
		{ID: "n-2", Recipient: "bob", Content: "read", IsRead: true},
	}}
	ts := newAPIServer(t, store)

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/notifications/unread", bearerToken(t, "bob"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var items []notify.Notification
	if err := json.Unmarshal(body, &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) != 1 || items[0].Content != "unread" {
		t.Errorf("items = %v", items)
	}
}

func TestEmptyListIsJSONArray(t *testing.T) {
	ts := newAPIServer(t, &stubStore{})

	_, body := doRequest(t, http.MethodGet, ts.URL+"/api/notifications", bearerToken(t, "bob"))
	if string(body) != "[]" {
		t.Errorf("body = %s, want []", body)
	}
}

func TestMarkRead(t *testing.T) {
	store := &stubStore{}
	ts := newAPIServer(t, store)

	resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/notifications/n-1/mark_read", bearerToken(t, "bob"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %s", resp.StatusCode, body)
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["is_read"] != true {
		t.Errorf("body = %v", out)
	}
	if store.markedID != "n-1" {
		t.Errorf("markedID = %q", store.markedID)
	}
}

func TestMarkReadForeignNotificationForbidden(t *testing.T) {
	store := &stubStore{notOwnerIDs: map[string]bool{"n-9": true}}
	ts := newAPIServer(t, store)

	resp, _ := doRequest(t, http.MethodPost, ts.URL+"/api/notifications/n-9/mark_read", bearerToken(t, "bob"))
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestMarkAllRead(t *testing.T) {
	store := &stubStore{}
	ts := newAPIServer(t, store)

	resp, _ := doRequest(t, http.MethodPost, ts.URL+"/api/notifications/mark_all_read", bearerToken(t, "bob"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if store.markedAll != "bob" {
		t.Errorf("markedAll = %q", store.markedAll)
	}
}

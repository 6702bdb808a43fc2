package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"lexcal-scheduler/internal/handler"
	"lexcal-scheduler/internal/middleware"
	"lexcal-scheduler/internal/schedule"
	"lexcal-scheduler/internal/store/sqlite"
)

const secret = "test-secret"

func setup(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(st.Close)

	logger := log.New(io.Discard)
	svc := schedule.New(st, schedule.Config{
		Logger: logger,
		Now:    func() time.Time { return time.Date(2025, 10, 30, 12, 0, 0, 0, time.UTC) },
	})
	h := handler.New(svc, st, handler.Config{
		Secret:  secret,
		Limiter: middleware.NewRateLimiter(1000, 1000),
		Logger:  logger,
		Health:  st.Ping,
	})
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv
}

type session struct {
	Token string `json:"token"`
	User  struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"user"`
}

func do(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func register(t *testing.T, srv *httptest.Server, role string) session {
	t.Helper()
	email := fmt.Sprintf("%s-%s@example.com", role, uuid.New().String()[:8])
	code, body := do(t, srv, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Test " + role, "email": email, "password": "testpass123", "role": role,
	})
	if code != http.StatusCreated {
		t.Fatalf("register: %d %s", code, body)
	}
	var s session
	if err := json.Unmarshal(body, &s); err != nil {
		t.Fatal(err)
	}
	return s
}

func decodeMap(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return m
}

func TestRegisterAndLogin(t *testing.T) {
	srv := setup(t)

	code, body := do(t, srv, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Anton", "email": "Anwalt@Example.com", "password": "anwalt123", "role": "lawyer",
	})
	if code != http.StatusCreated {
		t.Fatalf("register: %d %s", code, body)
	}

	code, _ = do(t, srv, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Anton", "email": "anwalt@example.com", "password": "anwalt123", "role": "lawyer",
	})
	if code != http.StatusConflict {
		t.Errorf("duplicate register: %d", code)
	}

	code, body = do(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "anwalt@example.com", "password": "anwalt123",
	})
	if code != http.StatusOK {
		t.Fatalf("login: %d %s", code, body)
	}
	var s session
	json.Unmarshal(body, &s)
	if s.Token == "" || s.User.Role != "lawyer" {
		t.Errorf("session = %+v", s)
	}

	code, _ = do(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "anwalt@example.com", "password": "wrong-password",
	})
	if code != http.StatusUnauthorized {
		t.Errorf("bad password: %d", code)
	}

	code, body = do(t, srv, http.MethodGet, "/api/lawyers", "", nil)
	if code != http.StatusOK || !strings.Contains(string(body), "anwalt@example.com") {
		t.Errorf("lawyers: %d %s", code, body)
	}
	if strings.Contains(string(body), "password") {
		t.Errorf("lawyer listing leaks password data: %s", body)
	}
}

func TestRegisterValidation(t *testing.T) {
	srv := setup(t)
	cases := []map[string]string{
		{"name": "", "email": "a@example.com", "password": "testpass123"},
		{"name": "A", "email": "not-an-email", "password": "testpass123"},
		{"name": "A", "email": "a@example.com", "password": "short"},
		{"name": "A", "email": "a@example.com", "password": "testpass123", "role": "admin"},
	}
	for i, c := range cases {
		code, body := do(t, srv, http.MethodPost, "/api/auth/register", "", c)
		if code != http.StatusBadRequest {
			t.Errorf("case %d: %d %s", i, code, body)
		}
	}
}

func TestAppointmentsRequireAuth(t *testing.T) {
	srv := setup(t)
	code, _ := do(t, srv, http.MethodGet, "/api/appointments/lawyer/x", "", nil)
	if code != http.StatusUnauthorized {
		t.Errorf("no token: %d", code)
	}
	code, _ = do(t, srv, http.MethodGet, "/api/appointments/lawyer/x", "garbage", nil)
	if code != http.StatusUnauthorized {
		t.Errorf("bad token: %d", code)
	}
}

func TestRequestFlow(t *testing.T) {
	srv := setup(t)
	lawyer := register(t, srv, "lawyer")
	c := register(t, srv, "client")
	d := register(t, srv, "client")

	code, body := do(t, srv, http.MethodPost, "/api/appointments/request", c.Token, map[string]any{
		"lawyerId":       lawyer.User.ID,
		"clientId":       c.User.ID,
		"date":           "2025-11-03T10:00:00Z",
		"title":          "Tenancy dispute",
		"requestMessage": "urgent",
	})
	if code != http.StatusCreated {
		t.Fatalf("request: %d %s", code, body)
	}
	req := decodeMap(t, body)
	if req["status"] != "pending" {
		t.Errorf("status = %v", req["status"])
	}
	id := req["id"].(string)

	code, body = do(t, srv, http.MethodPost, "/api/appointments/request", d.Token, map[string]any{
		"lawyerId": lawyer.User.ID,
		"clientId": d.User.ID,
		"start":    "2025-11-03T10:30:00Z",
	})
	if code != http.StatusBadRequest || decodeMap(t, body)["error"] != "SlotConflict" {
		t.Errorf("overlapping request: %d %s", code, body)
	}

	code, body = do(t, srv, http.MethodPost, "/api/appointments/request", d.Token, map[string]any{
		"lawyerId": lawyer.User.ID,
		"clientId": d.User.ID,
		"start":    "2025-11-01T10:00:00Z",
	})
	if code != http.StatusBadRequest || decodeMap(t, body)["error"] != "OutOfHours" {
		t.Errorf("saturday request: %d %s", code, body)
	}

	// D sees the slot as occupied with no details
	code, body = do(t, srv, http.MethodGet, "/api/appointments/lawyer/"+lawyer.User.ID, d.Token, nil)
	if code != http.StatusOK {
		t.Fatalf("byLawyer: %d %s", code, body)
	}
	for _, leak := range []string{"Tenancy", "urgent", c.User.ID} {
		if strings.Contains(string(body), leak) {
			t.Errorf("calendar leaks %q: %s", leak, body)
		}
	}
	if !strings.Contains(string(body), `"occupied"`) {
		t.Errorf("calendar missing occupied marker: %s", body)
	}

	code, body = do(t, srv, http.MethodGet, "/api/appointments/lawyer/"+lawyer.User.ID+"/pending", lawyer.Token, nil)
	if code != http.StatusOK || !strings.Contains(string(body), id) {
		t.Errorf("pending: %d %s", code, body)
	}
	code, _ = do(t, srv, http.MethodGet, "/api/appointments/lawyer/"+lawyer.User.ID+"/pending", c.Token, nil)
	if code != http.StatusForbidden {
		t.Errorf("pending as client: %d", code)
	}

	code, _ = do(t, srv, http.MethodPatch, "/api/appointments/"+id+"/respond", c.Token, map[string]string{"status": "confirmed"})
	if code != http.StatusForbidden {
		t.Errorf("client responding: %d", code)
	}
	code, body = do(t, srv, http.MethodPatch, "/api/appointments/"+id+"/respond", lawyer.Token, map[string]string{
		"status": "confirmed", "responseMessage": "ok",
	})
	if code != http.StatusOK {
		t.Fatalf("respond: %d %s", code, body)
	}
	got := decodeMap(t, body)
	if got["status"] != "confirmed" || got["respondedAt"] == nil {
		t.Errorf("after respond: %s", body)
	}

	code, body = do(t, srv, http.MethodPatch, "/api/appointments/"+id+"/respond", lawyer.Token, map[string]string{"status": "rejected"})
	if code != http.StatusBadRequest || decodeMap(t, body)["error"] != "InvalidTransition" {
		t.Errorf("second respond: %d %s", code, body)
	}

	code, body = do(t, srv, http.MethodPost, "/api/appointments/request", d.Token, map[string]any{
		"lawyerId": lawyer.User.ID,
		"clientId": d.User.ID,
		"start":    "2025-11-03T11:00:00Z",
	})
	if code != http.StatusCreated {
		t.Errorf("adjacent request: %d %s", code, body)
	}
}

func TestDurationOverLimit(t *testing.T) {
	srv := setup(t)
	lawyer := register(t, srv, "lawyer")
	c := register(t, srv, "client")

	code, body := do(t, srv, http.MethodPost, "/api/appointments/request", c.Token, map[string]any{
		"lawyerId":        lawyer.User.ID,
		"clientId":        c.User.ID,
		"start":           "2025-11-03T10:00:00Z",
		"durationMinutes": schedule.MaxDurationMinutes + 1,
	})
	if code != http.StatusBadRequest || decodeMap(t, body)["error"] != "ValidationError" {
		t.Errorf("over limit: %d %s", code, body)
	}

	code, body = do(t, srv, http.MethodPost, "/api/appointments/request", c.Token, map[string]any{
		"lawyerId":        lawyer.User.ID,
		"clientId":        c.User.ID,
		"start":           "2025-11-03T10:00:00Z",
		"durationMinutes": schedule.MaxDurationMinutes,
	})
	if code != http.StatusCreated {
		t.Errorf("at limit: %d %s", code, body)
	}
}

func TestEditCancelDelete(t *testing.T) {
	srv := setup(t)
	lawyer := register(t, srv, "lawyer")
	c := register(t, srv, "client")
	other := register(t, srv, "client")

	code, body := do(t, srv, http.MethodPost, "/api/appointments", lawyer.Token, map[string]any{
		"lawyerId": lawyer.User.ID,
		"clientId": c.User.ID,
		"start":    "2025-11-04T09:00:00Z",
		"title":    "Will signing",
	})
	if code != http.StatusCreated {
		t.Fatalf("create: %d %s", code, body)
	}
	id := decodeMap(t, body)["id"].(string)

	code, body = do(t, srv, http.MethodPatch, "/api/appointments/"+id, c.Token, map[string]any{"location": "Office 2"})
	if code != http.StatusOK || decodeMap(t, body)["location"] != "Office 2" {
		t.Errorf("edit: %d %s", code, body)
	}
	code, body = do(t, srv, http.MethodPatch, "/api/appointments/"+id, c.Token, map[string]any{"status": "confirmed"})
	if code != http.StatusBadRequest || decodeMap(t, body)["error"] != "InvalidTransition" {
		t.Errorf("status edit: %d %s", code, body)
	}
	code, _ = do(t, srv, http.MethodPatch, "/api/appointments/"+id, other.Token, map[string]any{"title": "x"})
	if code != http.StatusForbidden {
		t.Errorf("stranger edit: %d", code)
	}

	code, body = do(t, srv, http.MethodPatch, "/api/appointments/"+id+"/cancel", c.Token, nil)
	if code != http.StatusOK || decodeMap(t, body)["status"] != "cancelled" {
		t.Errorf("cancel: %d %s", code, body)
	}

	code, body = do(t, srv, http.MethodGet, "/api/appointments/user/"+c.User.ID, c.Token, nil)
	if code != http.StatusOK || !strings.Contains(string(body), id) {
		t.Errorf("byUser: %d %s", code, body)
	}

	code, body = do(t, srv, http.MethodDelete, "/api/appointments/"+id, lawyer.Token, nil)
	if code != http.StatusOK {
		t.Fatalf("delete: %d %s", code, body)
	}
	del := decodeMap(t, body)
	if del["success"] != true || del["id"] != id {
		t.Errorf("delete body: %s", body)
	}

	code, body = do(t, srv, http.MethodGet, "/api/appointments/"+id, lawyer.Token, nil)
	if code != http.StatusNotFound || decodeMap(t, body)["error"] != "NotFound" {
		t.Errorf("get after delete: %d %s", code, body)
	}
}

func TestMergedCalendar(t *testing.T) {
	srv := setup(t)
	lawyer := register(t, srv, "lawyer")
	c := register(t, srv, "client")
	d := register(t, srv, "client")

	for _, b := range []struct {
		who   session
		start string
	}{
		{c, "2025-11-03T09:00:00Z"},
		{d, "2025-11-03T13:00:00Z"},
	} {
		code, body := do(t, srv, http.MethodPost, "/api/appointments/request", b.who.Token, map[string]any{
			"lawyerId": lawyer.User.ID, "clientId": b.who.User.ID, "start": b.start, "title": "private",
		})
		if code != http.StatusCreated {
			t.Fatalf("request: %d %s", code, body)
		}
	}

	code, body := do(t, srv, http.MethodGet,
		"/api/appointments/user/"+c.User.ID+"?lawyerId="+lawyer.User.ID, c.Token, nil)
	if code != http.StatusOK {
		t.Fatalf("merged: %d %s", code, body)
	}
	var views []map[string]any
	if err := json.Unmarshal(body, &views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 {
		t.Fatalf("merged calendar has %d entries: %s", len(views), body)
	}
	if views[0]["label"] != "private" || views[1]["label"] != "occupied" {
		t.Errorf("labels = %v, %v", views[0]["label"], views[1]["label"])
	}
	if _, ok := views[1]["clientId"]; ok {
		t.Errorf("foreign slot exposes clientId: %v", views[1])
	}
}

func TestHealthz(t *testing.T) {
	srv := setup(t)
	code, body := do(t, srv, http.MethodGet, "/healthz", "", nil)
	if code != http.StatusOK || !strings.Contains(string(body), "ok") {
		t.Errorf("healthz: %d %s", code, body)
	}
}

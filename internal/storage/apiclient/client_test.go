package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/devdash/internal/model"
)

func TestLoad_NoTokenSkipsNetwork(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), nil, ts.URL, "")
	state, err := c.Load(context.Background())
	if err != nil || state != nil {
		t.Fatalf("Load = %v, %v; want nil, nil", state, err)
	}
	if err := c.Save(context.Background(), model.NewDashboardState()); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Save err = %v, want ErrNotAuthenticated", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("server hit %d times, want 0", hits)
	}
}

func TestLoad_Success(t *testing.T) {
	updated := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dashboard" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"userId": "u1",
			"categories": []map[string]any{{
				"id": "coding", "name": "Coding", "icon": "fas fa-code", "color": "red",
				"items": []map[string]any{{
					"id": "i1", "title": "Go Tour", "url": "https://go.dev/tour", "type": "website",
					"notes": "", "completed": false, "addedAt": "2026-02-01T00:00:00Z",
				}},
			}},
			"settings": map[string]any{"theme": "dark", "lastUpdated": updated.Format(time.RFC3339)},
		})
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), nil, ts.URL, "tok")
	state, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state == nil || len(state.Categories) != 1 || len(state.Categories[0].Items) != 1 {
		t.Fatalf("unexpected state: %+v", state)
	}
	if !state.LastUpdated.Equal(updated) {
		t.Errorf("LastUpdated = %v, want %v", state.LastUpdated, updated)
	}
}

func TestLoad_FailuresAreAbsent(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"Dashboard not found"}`))
		}},
		{"forbidden", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}},
		{"malformed", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"categories":[{"name":"no id"}]}`))
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			c := NewClient(ts.Client(), nil, ts.URL, "tok")
			state, err := c.Load(context.Background())
			if err != nil || state != nil {
				t.Errorf("Load = %v, %v; want nil, nil", state, err)
			}
		})
	}
}

func TestSave(t *testing.T) {
	var got model.DashboardUpdate
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/dashboard" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	state := model.NewDashboardState()
	state.Categories = append(state.Categories, &model.Category{ID: "c1", Name: "Books", Items: []*model.Item{}})

	c := NewClient(ts.Client(), nil, ts.URL, "tok")
	if err := c.Save(context.Background(), state); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(got.Categories) != 1 || got.Categories[0].Name != "Books" {
		t.Errorf("server received %+v", got)
	}
}

func TestSave_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"Invalid or expired token"}`))
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), nil, ts.URL, "expired")
	err := c.Save(context.Background(), model.NewDashboardState())
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if se.StatusCode != http.StatusForbidden || se.Message != "Invalid or expired token" {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestLogin(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Invalid credentials"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": "Login successful",
			"token":   "jwt-token",
			"user":    map[string]string{"id": "u1", "username": "alice", "email": body["email"]},
		})
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), nil, ts.URL, "")
	if _, err := c.Login(context.Background(), "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if c.Authenticated() {
		t.Error("failed login must not set a token")
	}

	res, err := c.Login(context.Background(), "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token != "jwt-token" || res.User.Username != "alice" {
		t.Errorf("LoginResult = %+v", res)
	}
	if !c.Authenticated() {
		t.Error("token should be kept after login")
	}
}

func TestRegister(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message":"User created successfully","userId":"u42"}`))
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), nil, ts.URL+"/", "")
	id, err := c.Register(context.Background(), "alice", "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id != "u42" {
		t.Errorf("userId = %q, want u42", id)
	}
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"trivia-quiz-service/internal/domain"
)

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.StatusCode, body)
	}
}

func TestRegisterLoginAndResults(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.server.URL+"/auth/register", map[string]string{
		"name": "Ann", "email": "ann@example.com", "password": "secret1", "confirmPassword": "secret1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d", resp.StatusCode)
	}
	var registered authResponse
	decode(t, resp, &registered)
	if registered.Token == "" || registered.User.ID == "" {
		t.Fatalf("unexpected register response %+v", registered)
	}

	resp = postJSON(t, env.server.URL+"/auth/register", map[string]string{
		"name": "Ann", "email": "ann@example.com", "password": "secret1", "confirmPassword": "secret1",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, env.server.URL+"/auth/login", map[string]string{"email": "ann@example.com", "password": "nope123"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, env.server.URL+"/auth/login", map[string]string{"email": "ann@example.com", "password": "secret1"})
	var logged authResponse
	decode(t, resp, &logged)

	_ = env.results.Record(context.Background(), logged.User.ID, domain.QuizResult{TotalQuestions: 5, CorrectAnswers: 1, Score: 20})

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/results", nil)
	req.Header.Set("Authorization", "Bearer "+logged.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	var results []domain.RecordedResult
	decode(t, resp, &results)
	if len(results) != 1 || results[0].Result.Score != 20 {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestResultsRequireToken(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.server.URL + "/results")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", resp.StatusCode)
	}
}

type failingCategories struct{}

func (failingCategories) Categories(context.Context) ([]domain.Category, error) {
	return nil, errors.New("upstream down")
}

func TestCategoriesFallback(t *testing.T) {
	h := &apiHandler{cfg: RouterConfig{
		Categories: failingCategories{},
		Fallback:   []domain.Category{{ID: 9, Name: "General Knowledge"}},
		Log:        quietLogger(),
	}}
	rec := httptest.NewRecorder()
	h.categories(rec, httptest.NewRequest(http.MethodGet, "/categories", nil))

	var got []domain.Category
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusOK || len(got) != 1 || got[0].ID != 9 {
		t.Fatalf("unexpected fallback response %d %+v", rec.Code, got)
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

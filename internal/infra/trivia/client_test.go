package trivia

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"trivia-quiz-service/internal/domain"
)

func TestFetchQuestionsDecodesAndShuffles(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api.php" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"response_code":0,"results":[
			{"type":"multiple","difficulty":"easy","category":"Science &amp; Nature",
			 "question":"What is &quot;H2O&quot;?","correct_answer":"Water",
			 "incorrect_answers":["Salt","Sand","Rock &amp; Roll"]},
			{"type":"boolean","difficulty":"easy","category":"History",
			 "question":"Rome was built in a day.","correct_answer":"False",
			 "incorrect_answers":["True"]}]}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithSeed(1), WithLogger(quietLogger()))
	questions, err := client.FetchQuestions(context.Background(), domain.QuizConfig{
		Amount:     2,
		Category:   17,
		Difficulty: domain.DifficultyEasy,
		Type:       domain.QuestionMultipleChoice,
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotQuery != "amount=2&category=17&difficulty=easy&type=multiple" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}

	q := questions[0]
	if q.Prompt != `What is "H2O"?` || q.Category != "Science & Nature" {
		t.Fatalf("entities not decoded: %+v", q)
	}
	if q.Type != domain.QuestionMultipleChoice || questions[1].Type != domain.QuestionBoolean {
		t.Fatalf("unexpected types %s %s", q.Type, questions[1].Type)
	}
	if len(q.AllAnswers) != 4 || !contains(q.AllAnswers, "Water") || !contains(q.AllAnswers, "Rock & Roll") {
		t.Fatalf("unexpected answers %v", q.AllAnswers)
	}
	if q.ID == "" || q.ID == questions[1].ID {
		t.Fatalf("expected distinct ids, got %q and %q", q.ID, questions[1].ID)
	}
}

func TestFetchQuestionsClassifiesResponseCodes(t *testing.T) {
	cases := []struct {
		body string
		want error
	}{
		{`{"response_code":1,"results":[]}`, domain.ErrNotEnoughQuestions},
		{`{"response_code":2,"results":[]}`, domain.ErrInvalidParameter},
		{`{"response_code":3,"results":[]}`, domain.ErrTokenNotFound},
		{`{"response_code":4,"results":[]}`, domain.ErrTokenExhausted},
		{`{"response_code":5,"results":[]}`, domain.ErrFetchFailed},
		{`{"response_code":0,"results":[]}`, domain.ErrNoQuestions},
		{`not json`, domain.ErrFetchFailed},
	}
	for _, tc := range cases {
		body := tc.body
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		client := NewClient(WithBaseURL(srv.URL), WithLogger(quietLogger()))
		_, err := client.FetchQuestions(context.Background(), domain.QuizConfig{Amount: 5})
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("body %s: expected %v, got %v", body, tc.want, err)
		}
	}
}

func TestFetchQuestionsFailsOnHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithLogger(quietLogger()))
	if _, err := client.FetchQuestions(context.Background(), domain.QuizConfig{Amount: 5}); !errors.Is(err, domain.ErrFetchFailed) {
		t.Fatalf("expected fetch failure, got %v", err)
	}
}

func TestFetchQuestionsRejectsBadConfigWithoutCalling(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	if _, err := client.FetchQuestions(context.Background(), domain.QuizConfig{Amount: 51}); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected invalid parameter, got %v", err)
	}
	if called {
		t.Fatalf("expected no upstream request")
	}
}

func TestLoadCategories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api_category.php" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"trivia_categories":[{"id":9,"name":"General Knowledge"},{"id":10,"name":"Entertainment: Books"}]}`))
	}))
	defer srv.Close()

	categories, err := NewClient(WithBaseURL(srv.URL)).LoadCategories(context.Background())
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(categories) != 2 || categories[1].Name != "Entertainment: Books" {
		t.Fatalf("unexpected categories %+v", categories)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

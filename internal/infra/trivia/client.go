package trivia

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"trivia-quiz-service/internal/domain"
)

// DefaultBaseURL is the public Open Trivia DB endpoint.
const DefaultBaseURL = "https://opentdb.com"

// PopularCategories is offered when the category list cannot be loaded.
var PopularCategories = []domain.Category{
	{ID: 9, Name: "General Knowledge"},
	{ID: 17, Name: "Science & Nature"},
	{ID: 18, Name: "Science: Computers"},
	{ID: 21, Name: "Sports"},
	{ID: 22, Name: "Geography"},
	{ID: 23, Name: "History"},
	{ID: 11, Name: "Entertainment: Film"},
	{ID: 12, Name: "Entertainment: Music"},
}

// Client talks to the Open Trivia DB HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	newID   func() string
	log     logrus.FieldLogger

	mu  sync.Mutex
	rnd *rand.Rand
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSeed makes answer shuffling reproducible.
func WithSeed(seed int64) Option {
	return func(c *Client) { c.rnd = rand.New(rand.NewSource(seed)) }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		newID:   uuid.NewString,
		log:     logrus.StandardLogger(),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rawQuestion struct {
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Category         string   `json:"category"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

type questionsResponse struct {
	ResponseCode int           `json:"response_code"`
	Results      []rawQuestion `json:"results"`
}

// FetchQuestions downloads a batch matching cfg. Failures are classified into
// the domain's question-source errors.
func (c *Client) FetchQuestions(ctx context.Context, cfg domain.QuizConfig) ([]domain.Question, error) {
	if err := cfg.Validate(); err != nil {
		return nil, domain.ErrInvalidParameter
	}

	var resp questionsResponse
	if err := c.getJSON(ctx, "/api.php", questionParams(cfg), &resp); err != nil {
		return nil, err
	}

	switch resp.ResponseCode {
	case 0:
	case 1:
		return nil, domain.ErrNotEnoughQuestions
	case 2:
		return nil, domain.ErrInvalidParameter
	case 3:
		return nil, domain.ErrTokenNotFound
	case 4:
		return nil, domain.ErrTokenExhausted
	default:
		return nil, fmt.Errorf("%w: response code %d", domain.ErrFetchFailed, resp.ResponseCode)
	}
	if len(resp.Results) == 0 {
		return nil, domain.ErrNoQuestions
	}

	questions := make([]domain.Question, 0, len(resp.Results))
	for _, raw := range resp.Results {
		questions = append(questions, c.process(raw))
	}
	return questions, nil
}

func questionParams(cfg domain.QuizConfig) url.Values {
	params := url.Values{}
	params.Set("amount", strconv.Itoa(cfg.Amount))
	if cfg.Category > 0 {
		params.Set("category", strconv.Itoa(cfg.Category))
	}
	if cfg.Difficulty != "" {
		params.Set("difficulty", string(cfg.Difficulty))
	}
	switch cfg.Type {
	case domain.QuestionMultipleChoice:
		params.Set("type", "multiple")
	case domain.QuestionBoolean:
		params.Set("type", "boolean")
	}
	return params
}

func (c *Client) process(raw rawQuestion) domain.Question {
	answers := make([]string, 0, len(raw.IncorrectAnswers)+1)
	answers = append(answers, html.UnescapeString(raw.CorrectAnswer))
	for _, a := range raw.IncorrectAnswers {
		answers = append(answers, html.UnescapeString(a))
	}
	c.shuffle(answers)

	qType := domain.QuestionMultipleChoice
	if raw.Type == "boolean" {
		qType = domain.QuestionBoolean
	}

	return domain.Question{
		ID:            c.newID(),
		Category:      html.UnescapeString(raw.Category),
		Type:          qType,
		Difficulty:    domain.Difficulty(raw.Difficulty),
		Prompt:        html.UnescapeString(raw.Question),
		CorrectAnswer: html.UnescapeString(raw.CorrectAnswer),
		AllAnswers:    answers,
	}
}

// shuffle is a Fisher-Yates pass over answers.
func (c *Client) shuffle(answers []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(answers) - 1; i > 0; i-- {
		j := c.rnd.Intn(i + 1)
		answers[i], answers[j] = answers[j], answers[i]
	}
}

type categoriesResponse struct {
	TriviaCategories []domain.Category `json:"trivia_categories"`
}

// LoadCategories lists every category the API knows.
func (c *Client) LoadCategories(ctx context.Context) ([]domain.Category, error) {
	var resp categoriesResponse
	if err := c.getJSON(ctx, "/api_category.php", nil, &resp); err != nil {
		return nil, err
	}
	return resp.TriviaCategories, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	res, err := c.http.Do(req)
	if err != nil {
		c.log.WithError(err).WithField("path", path).Warn("trivia request failed")
		return fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		c.log.WithFields(logrus.Fields{"path": path, "status": res.StatusCode}).Warn("trivia request rejected")
		return fmt.Errorf("%w: status %d", domain.ErrFetchFailed, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", domain.ErrFetchFailed, err)
	}
	return nil
}

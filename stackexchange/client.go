package stackexchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.stackexchange.com/2.2"

// Excerpt item types.
const (
	ItemQuestion = "question"
	ItemAnswer   = "answer"
)

// DefaultFilter includes post bodies, vote counts and favorite counts.
const DefaultFilter = "!*i5nbupzVkd_nFQ_R3K24wS_Ib*wHM4j*K*R(VlvYEcL57*XBFrX*Dy-.zQW_5V9GMDr_."

// Owner is the shallow user attached to a post.
type Owner struct {
	DisplayName string `json:"display_name"`
	Link        string `json:"link"`
	UserType    string `json:"user_type"`
}

// Item is a question, answer or search excerpt. Fields the filter omits stay
// at their zero value.
type Item struct {
	ItemType      string   `json:"item_type"`
	QuestionID    int64    `json:"question_id"`
	AnswerID      int64    `json:"answer_id"`
	Title         string   `json:"title"`
	Link          string   `json:"link"`
	Body          string   `json:"body"`
	Tags          []string `json:"tags"`
	Owner         *Owner   `json:"owner"`
	CreationDate  int64    `json:"creation_date"`
	IsAccepted    bool     `json:"is_accepted"`
	UpVoteCount   int      `json:"up_vote_count"`
	DownVoteCount int      `json:"down_vote_count"`
	FavoriteCount *int     `json:"favorite_count"`
	AnswerCount   int      `json:"answer_count"`
}

// Response is the common wrapper around every API result.
type Response struct {
	Items          []Item `json:"items"`
	HasMore        bool   `json:"has_more"`
	QuotaRemaining int    `json:"quota_remaining"`
	Backoff        int    `json:"backoff"`
	ErrorID        int    `json:"error_id"`
	ErrorName      string `json:"error_name"`
	ErrorMessage   string `json:"error_message"`
}

// APIError is an error reported by the API.
type APIError struct {
	StatusCode int
	ID         int
	Name       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("stackexchange: unexpected status: %d", e.StatusCode)
	}
	return fmt.Sprintf("stackexchange: %s (%d): %s", e.Name, e.ID, e.Message)
}

// Client provides access to the Stack Exchange API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	key        string
	filter     string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithKey sets the app key, which raises the request quota.
func WithKey(key string) Option {
	return func(c *Client) {
		c.key = key
	}
}

// WithFilter sets the response filter. An empty filter keeps DefaultFilter.
func WithFilter(filter string) Option {
	return func(c *Client) {
		if filter != "" {
			c.filter = filter
		}
	}
}

// NewClient creates a new Stack Exchange API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		filter:     DefaultFilter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search finds questions matching query, most relevant first.
func (c *Client) Search(ctx context.Context, site, query string, page, pageSize int) (*Response, error) {
	params := pageParams(site, page, pageSize)
	params.Set("q", query)
	params.Set("sort", "relevance")
	params.Set("order", "desc")
	return c.get(ctx, "search/advanced", params)
}

// Answers lists the answers to a question, highest voted first.
func (c *Client) Answers(ctx context.Context, site string, questionID int64, page, pageSize int) (*Response, error) {
	params := pageParams(site, page, pageSize)
	params.Set("sort", "votes")
	params.Set("order", "desc")
	return c.get(ctx, "questions/"+strconv.FormatInt(questionID, 10)+"/answers", params)
}

// Excerpts searches questions and answers together.
func (c *Client) Excerpts(ctx context.Context, site, query string, pageSize int) (*Response, error) {
	params := pageParams(site, 1, pageSize)
	params.Set("q", query)
	params.Set("sort", "relevance")
	params.Set("order", "desc")
	return c.get(ctx, "search/excerpts", params)
}

// QuestionsByID fetches questions by id.
func (c *Client) QuestionsByID(ctx context.Context, site string, ids []int64) (*Response, error) {
	return c.get(ctx, "questions/"+joinIDs(ids), pageParams(site, 1, len(ids)))
}

// AnswersByID fetches answers by id.
func (c *Client) AnswersByID(ctx context.Context, site string, ids []int64) (*Response, error) {
	return c.get(ctx, "answers/"+joinIDs(ids), pageParams(site, 1, len(ids)))
}

// SearchPosts runs an excerpt search and replaces every excerpt with the full
// question or answer, keeping relevance order. Posts deleted between the two
// calls are dropped.
func (c *Client) SearchPosts(ctx context.Context, site, query string, limit int) ([]Item, error) {
	excerpts, err := c.Excerpts(ctx, site, query, limit)
	if err != nil {
		return nil, err
	}

	var questionIDs, answerIDs []int64
	for _, e := range excerpts.Items {
		switch e.ItemType {
		case ItemQuestion:
			questionIDs = append(questionIDs, e.QuestionID)
		case ItemAnswer:
			answerIDs = append(answerIDs, e.AnswerID)
		}
	}

	questions := make(map[int64]Item, len(questionIDs))
	if len(questionIDs) > 0 {
		resp, err := c.QuestionsByID(ctx, site, questionIDs)
		if err != nil {
			return nil, err
		}
		for _, it := range resp.Items {
			questions[it.QuestionID] = it
		}
	}

	answers := make(map[int64]Item, len(answerIDs))
	if len(answerIDs) > 0 {
		resp, err := c.AnswersByID(ctx, site, answerIDs)
		if err != nil {
			return nil, err
		}
		for _, it := range resp.Items {
			answers[it.AnswerID] = it
		}
	}

	posts := make([]Item, 0, len(excerpts.Items))
	for _, e := range excerpts.Items {
		var it Item
		var ok bool
		switch e.ItemType {
		case ItemQuestion:
			it, ok = questions[e.QuestionID]
		case ItemAnswer:
			it, ok = answers[e.AnswerID]
		}
		if !ok {
			continue
		}
		it.ItemType = e.ItemType
		posts = append(posts, it)
	}
	return posts, nil
}

func (c *Client) get(ctx context.Context, method string, params url.Values) (*Response, error) {
	params.Set("filter", c.filter)
	if c.key != "" {
		params.Set("key", c.key)
	}
	endpoint := c.baseURL + "/" + method + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", method, err)
	}
	defer resp.Body.Close()

	var result Response
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode != http.StatusOK || result.ErrorID != 0 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ID:         result.ErrorID,
			Name:       result.ErrorName,
			Message:    result.ErrorMessage,
		}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}

	return &result, nil
}

func pageParams(site string, page, pageSize int) url.Values {
	params := url.Values{}
	params.Set("site", site)
	params.Set("page", strconv.Itoa(page))
	params.Set("pagesize", strconv.Itoa(pageSize))
	return params
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ";")
}

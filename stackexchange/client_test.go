package stackexchange

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/advanced" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		want := map[string]string{
			"q":        "go channels",
			"site":     "stackoverflow",
			"page":     "2",
			"pagesize": "1",
			"sort":     "relevance",
			"order":    "desc",
			"filter":   DefaultFilter,
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("param %s = %q, want %q", k, got, v)
			}
		}
		if q.Has("key") {
			t.Error("key should not be sent when unset")
		}

		favorites := 12
		json.NewEncoder(w).Encode(Response{
			Items: []Item{{
				QuestionID:    123,
				Title:         "How do channels work?",
				Link:          "https://stackoverflow.com/q/123",
				Body:          "<p>body</p>",
				Tags:          []string{"go"},
				Owner:         &Owner{DisplayName: "gopher", Link: "https://stackoverflow.com/users/1"},
				CreationDate:  1609459200,
				UpVoteCount:   10,
				FavoriteCount: &favorites,
				AnswerCount:   3,
			}},
			HasMore: true,
		})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithTimeout(5*time.Second))

	resp, err := client.Search(context.Background(), "stackoverflow", "go channels", 2, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !resp.HasMore {
		t.Error("HasMore should be true")
	}
	if len(resp.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(resp.Items))
	}
	item := resp.Items[0]
	if item.QuestionID != 123 || item.Title != "How do channels work?" {
		t.Errorf("unexpected item: %+v", item)
	}
	if item.FavoriteCount == nil || *item.FavoriteCount != 12 {
		t.Errorf("FavoriteCount = %v, want 12", item.FavoriteCount)
	}
	if item.Owner == nil || item.Owner.DisplayName != "gopher" {
		t.Errorf("Owner = %+v", item.Owner)
	}
}

func TestAnswers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/questions/123/answers" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("sort"); got != "votes" {
			t.Errorf("sort = %q, want votes", got)
		}
		if got := r.URL.Query().Get("key"); got != "secret" {
			t.Errorf("key = %q, want secret", got)
		}
		if got := r.URL.Query().Get("filter"); got != "withbody" {
			t.Errorf("filter = %q, want withbody", got)
		}
		w.Write([]byte(`{"items":[{"answer_id":456,"question_id":123,"is_accepted":true,"body":"<p>a</p>"}],"has_more":false}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithKey("secret"), WithFilter("withbody"))

	resp, err := client.Answers(context.Background(), "stackoverflow", 123, 1, 1)
	if err != nil {
		t.Fatalf("Answers failed: %v", err)
	}
	if resp.HasMore {
		t.Error("HasMore should be false")
	}
	if len(resp.Items) != 1 || resp.Items[0].AnswerID != 456 || !resp.Items[0].IsAccepted {
		t.Errorf("unexpected items: %+v", resp.Items)
	}
	if resp.Items[0].FavoriteCount != nil {
		t.Error("absent favorite_count should decode as nil")
	}
}

func TestByID(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if got := r.URL.Query().Get("pagesize"); got != "2" {
			t.Errorf("pagesize = %q, want 2", got)
		}
		w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	ctx := context.Background()

	if _, err := client.QuestionsByID(ctx, "superuser", []int64{1, 2}); err != nil {
		t.Fatalf("QuestionsByID failed: %v", err)
	}
	if _, err := client.AnswersByID(ctx, "superuser", []int64{3, 4}); err != nil {
		t.Fatalf("AnswersByID failed: %v", err)
	}

	want := []string{"/questions/1;2", "/answers/3;4"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestExcerpts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/excerpts" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("pagesize"); got != "10" {
			t.Errorf("pagesize = %q, want 10", got)
		}
		w.Write([]byte(`{"items":[{"item_type":"question","question_id":1},{"item_type":"answer","answer_id":2,"question_id":1}]}`))
	}))
	defer server.Close()

	resp, err := NewClient(WithBaseURL(server.URL)).Excerpts(context.Background(), "stackoverflow", "mutex", 10)
	if err != nil {
		t.Fatalf("Excerpts failed: %v", err)
	}
	if len(resp.Items) != 2 || resp.Items[1].ItemType != "answer" {
		t.Errorf("unexpected items: %+v", resp.Items)
	}
}

func TestAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error_id":400,"error_name":"bad_parameter","error_message":"site is required"}`))
	}))
	defer server.Close()

	_, err := NewClient(WithBaseURL(server.URL)).Search(context.Background(), "", "x", 1, 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got: %v", err)
	}
	if apiErr.Name != "bad_parameter" || apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(WithBaseURL(server.URL)).Search(context.Background(), "stackoverflow", "x", 1, 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected APIError with status 502, got: %v", err)
	}
}

func TestInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := NewClient(WithBaseURL(server.URL)).Search(context.Background(), "stackoverflow", "x", 1, 1)
	if err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(WithBaseURL(server.URL)).Search(ctx, "stackoverflow", "x", 1, 1)
	if err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestSearchPosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/excerpts":
			w.Write([]byte(`{"items":[
				{"item_type":"answer","answer_id":20,"question_id":1},
				{"item_type":"question","question_id":1},
				{"item_type":"question","question_id":2},
				{"item_type":"answer","answer_id":21,"question_id":3}]}`))
		case "/questions/1;2":
			// question 2 was deleted in between
			w.Write([]byte(`{"items":[{"question_id":1,"title":"Q1","tags":["go"]}]}`))
		case "/answers/20;21":
			w.Write([]byte(`{"items":[{"answer_id":21,"title":"Q3"},{"answer_id":20,"title":"Q1"}]}`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	posts, err := NewClient(WithBaseURL(server.URL)).SearchPosts(context.Background(), "stackoverflow", "mutex", 10)
	if err != nil {
		t.Fatalf("SearchPosts failed: %v", err)
	}

	want := []struct {
		itemType string
		id       int64
	}{
		{ItemAnswer, 20},
		{ItemQuestion, 1},
		{ItemAnswer, 21},
	}
	if len(posts) != len(want) {
		t.Fatalf("got %d posts, want %d: %+v", len(posts), len(want), posts)
	}
	for i, w := range want {
		id := posts[i].QuestionID
		if w.itemType == ItemAnswer {
			id = posts[i].AnswerID
		}
		if posts[i].ItemType != w.itemType || id != w.id {
			t.Errorf("posts[%d] = %s %d, want %s %d", i, posts[i].ItemType, id, w.itemType, w.id)
		}
	}
	if posts[1].Title != "Q1" || len(posts[1].Tags) != 1 {
		t.Errorf("question not hydrated: %+v", posts[1])
	}
}

func TestSearchPostsNoResults(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	posts, err := NewClient(WithBaseURL(server.URL)).SearchPosts(context.Background(), "stackoverflow", "zzz", 10)
	if err != nil {
		t.Fatalf("SearchPosts failed: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("got %d posts, want 0", len(posts))
	}
	if calls != 1 {
		t.Errorf("made %d requests, want 1", calls)
	}
}

func TestWithEmptyFilterKeepsDefault(t *testing.T) {
	if c := NewClient(WithFilter("")); c.filter != DefaultFilter {
		t.Errorf("filter = %q, want DefaultFilter", c.filter)
	}
}

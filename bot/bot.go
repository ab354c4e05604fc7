package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"so-telegram-bot/render"
	"so-telegram-bot/session"
)

const (
	helpText = "Hello! 👋\n\n" +
		"Send me a question and I will look it up on Stack Overflow.\n" +
		"Start with a site alias to search another site, e.g. \"su ssh tunnel\" or \"askubuntu apt lock\".\n\n" +
		"You can also mention me in any chat to search inline."
	notFoundText       = "Not found 😞"
	noAnswersText      = "No answers 😔"
	noMoreAnswersText  = "No more answers 😏"
	answersTotalFormat = "%s answers in total😎"
	expiredText        = "This search has expired, please search again"
	notImplementedText = "Not implemented yet 😥"
	searchFailedText   = "Search failed, please try again later."
)

// errNoQuestion means an answer page was requested before any question was shown.
var errNoQuestion = errors.New("session has no current question")

// Outgoing is a chat message to deliver.
type Outgoing struct {
	ChatID   int64
	Text     string
	HTML     bool
	Keyboard *tgbotapi.InlineKeyboardMarkup
}

// Callback is a pressed inline keyboard button.
type Callback struct {
	ID        string
	ChatID    int64
	MessageID int
	Data      string
}

// Transport delivers messages to the chat service.
type Transport interface {
	Send(ctx context.Context, msg *Outgoing) (int, error)
	ClearKeyboard(ctx context.Context, chatID int64, messageID int) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	AnswerInline(ctx context.Context, queryID string, results []tgbotapi.InlineQueryResultArticle) error
}

// Page is one item of a paginated result. Post is nil when the page is empty.
type Page struct {
	Post    *render.Post
	HasMore bool
}

// Searcher fetches posts from the Q&A service.
type Searcher interface {
	SearchQuestion(ctx context.Context, site, query string, page int) (*Page, error)
	Answer(ctx context.Context, site string, questionID int64, page int) (*Page, error)
	Excerpts(ctx context.Context, site, query string, limit int) ([]*render.Post, error)
}

// Sessions tracks pagination state per search.
type Sessions interface {
	Create(ctx context.Context, chatID int64, query, site string) (*session.Session, error)
	Apply(ctx context.Context, data string) (session.Action, *session.Session, error)
	Save(ctx context.Context, s *session.Session) error
}

// Composer renders a post into a chat message.
type Composer interface {
	Compose(p *render.Post) (string, error)
}

// Handler reacts to chat messages, button presses and inline queries.
type Handler struct {
	transport   Transport
	searcher    Searcher
	sessions    Sessions
	composer    Composer
	sites       SiteTable
	inlineCount int
}

// Option configures a Handler.
type Option func(*Handler)

// WithSites sets the alias table used to pick the target site.
func WithSites(sites SiteTable) Option {
	return func(h *Handler) {
		h.sites = sites
	}
}

// WithInlineResultCount sets how many posts an inline query returns.
func WithInlineResultCount(n int) Option {
	return func(h *Handler) {
		h.inlineCount = n
	}
}

// NewHandler creates a new handler.
func NewHandler(transport Transport, searcher Searcher, sessions Sessions, composer Composer, opts ...Option) *Handler {
	h := &Handler{
		transport:   transport,
		searcher:    searcher,
		sessions:    sessions,
		composer:    composer,
		sites:       SiteTable{DefaultSite: session.DefaultSite},
		inlineCount: 10,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleMessage handles a text message: /start and /help print usage,
// anything else starts a new search.
func (h *Handler) HandleMessage(ctx context.Context, chatID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	switch commandName(text) {
	case "start", "help":
		return h.send(ctx, &Outgoing{ChatID: chatID, Text: helpText})
	}

	site, query := h.sites.Detect(text)
	if query == "" {
		return h.send(ctx, &Outgoing{ChatID: chatID, Text: helpText})
	}

	if err := h.search(ctx, chatID, query, site); err != nil {
		if sendErr := h.send(ctx, &Outgoing{ChatID: chatID, Text: searchFailedText}); sendErr != nil {
			slog.Warn("failed to report search failure", "chat_id", chatID, "error", sendErr)
		}
		return err
	}
	return nil
}

func (h *Handler) search(ctx context.Context, chatID int64, query, site string) error {
	s, err := h.sessions.Create(ctx, chatID, query, site)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	slog.Info("search started", "chat_id", chatID, "site", site, "query", query)

	if err := h.showQuestion(ctx, s); err != nil {
		return err
	}
	if err := h.sessions.Save(ctx, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// HandleCallback handles a pressed inline keyboard button.
func (h *Handler) HandleCallback(ctx context.Context, cb *Callback) error {
	if cb.Data == NotImplementedData {
		return h.transport.AnswerCallback(ctx, cb.ID, notImplementedText)
	}

	action, s, err := h.sessions.Apply(ctx, cb.Data)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		slog.Warn("callback for unknown session", "data", cb.Data)
		return h.transport.AnswerCallback(ctx, cb.ID, expiredText)
	case errors.Is(err, session.ErrMalformedAction):
		slog.Warn("ignoring callback", "data", cb.Data, "error", err)
		return h.transport.AnswerCallback(ctx, cb.ID, "")
	case err != nil:
		h.answerCallback(ctx, cb.ID, searchFailedText)
		return fmt.Errorf("apply %q: %w", cb.Data, err)
	}

	switch action {
	case session.AdvanceQuestion:
		err = h.showQuestion(ctx, s)
	case session.AdvanceAnswer:
		err = h.showAnswer(ctx, s)
	}
	if errors.Is(err, errNoQuestion) {
		return h.transport.AnswerCallback(ctx, cb.ID, expiredText)
	}
	if err != nil {
		h.answerCallback(ctx, cb.ID, searchFailedText)
		return err
	}

	if err := h.sessions.Save(ctx, s); err != nil {
		h.answerCallback(ctx, cb.ID, searchFailedText)
		return fmt.Errorf("save session: %w", err)
	}

	switch action {
	case session.AdvanceQuestion:
		if err := h.transport.ClearKeyboard(ctx, cb.ChatID, cb.MessageID); err != nil {
			slog.Warn("failed to clear keyboard", "chat_id", cb.ChatID, "message_id", cb.MessageID, "error", err)
		}
	case session.AdvanceAnswer:
		if err := h.transport.Delete(ctx, cb.ChatID, cb.MessageID); err != nil {
			slog.Debug("failed to delete summary message", "chat_id", cb.ChatID, "message_id", cb.MessageID, "error", err)
		}
	}

	return h.transport.AnswerCallback(ctx, cb.ID, "")
}

// showQuestion sends the question under the session's question cursor and
// then its current answer page.
func (h *Handler) showQuestion(ctx context.Context, s *session.Session) error {
	page, err := h.searcher.SearchQuestion(ctx, s.Site, s.Query, s.QuestionCursor)
	if err != nil {
		return fmt.Errorf("search questions: %w", err)
	}

	more := page.HasMore
	s.HasMoreQuestions = &more

	if page.Post == nil {
		return h.send(ctx, &Outgoing{ChatID: s.ChatID, Text: notFoundText})
	}

	if err := h.sendPost(ctx, s.ChatID, page.Post); err != nil {
		return err
	}

	id := page.Post.ID
	count := page.Post.AnswerCount
	s.QuestionID = &id
	s.AnswerCount = &count

	return h.showAnswer(ctx, s)
}

// showAnswer sends the answer under the session's answer cursor followed by
// a summary carrying the navigation buttons.
func (h *Handler) showAnswer(ctx context.Context, s *session.Session) error {
	if s.QuestionID == nil {
		return errNoQuestion
	}

	page, err := h.searcher.Answer(ctx, s.Site, *s.QuestionID, s.AnswerCursor)
	if err != nil {
		return fmt.Errorf("fetch answers: %w", err)
	}

	if page.Post != nil {
		if err := h.sendPost(ctx, s.ChatID, page.Post); err != nil {
			return err
		}
	}

	var summary string
	moreAnswers := false
	switch {
	case page.Post == nil:
		summary = noAnswersText
	case !page.HasMore:
		summary = noMoreAnswersText
	default:
		summary = fmt.Sprintf(answersTotalFormat, answerTotal(s.AnswerCount))
		moreAnswers = true
	}

	return h.send(ctx, &Outgoing{
		ChatID:   s.ChatID,
		Text:     summary,
		Keyboard: navigationKeyboard(s, moreAnswers),
	})
}

func (h *Handler) sendPost(ctx context.Context, chatID int64, p *render.Post) error {
	text, err := h.composer.Compose(p)
	if err != nil {
		return fmt.Errorf("compose %s %d: %w", p.Kind, p.ID, err)
	}
	kb := PostKeyboard(p)
	return h.send(ctx, &Outgoing{ChatID: chatID, Text: text, HTML: true, Keyboard: &kb})
}

func (h *Handler) send(ctx context.Context, msg *Outgoing) error {
	if _, err := h.transport.Send(ctx, msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (h *Handler) answerCallback(ctx context.Context, id, text string) {
	if err := h.transport.AnswerCallback(ctx, id, text); err != nil {
		slog.Warn("failed to answer callback", "callback_id", id, "error", err)
	}
}

// commandName returns the bot command in text without its leading slash and
// any @botname suffix, or "" when text is not a command.
func commandName(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name := strings.Fields(text)[0][1:]
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name)
}

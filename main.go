package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"so-telegram-bot/bot"
	"so-telegram-bot/config"
	"so-telegram-bot/render"
	"so-telegram-bot/scheduler"
	"so-telegram-bot/session"
	"so-telegram-bot/stackexchange"
	"so-telegram-bot/storage"
)

func main() {
	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	slog.Info("starting Stack Exchange Telegram Bot")

	// Load configuration
	configPath := config.GetConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	slog.Info("config loaded", "path", configPath, "log_level", cfg.LogLevel)

	// Initialize database
	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		slog.Error("failed to initialize database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database initialized", "path", cfg.DBPath)

	// Initialize Telegram bot
	tgBot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		slog.Error("failed to initialize Telegram bot", "error", err)
		os.Exit(1)
	}
	slog.Info("telegram bot initialized", "username", tgBot.Self.UserName)

	// Initialize components
	seClient := stackexchange.NewClient(
		stackexchange.WithTimeout(time.Duration(cfg.FetchTimeoutSecs)*time.Second),
		stackexchange.WithKey(cfg.StackExchangeKey),
		stackexchange.WithFilter(cfg.StackExchangeFilter),
	)
	composer := render.NewComposer(render.WithLocation(cfg.Location()))
	sessions := session.NewManager(&sessionStore{db}, session.WithDefaultSite(cfg.DefaultSite))

	handler := bot.NewHandler(
		&telegramTransport{tgBot},
		&searchAdapter{seClient},
		sessions,
		composer,
		bot.WithSites(bot.SiteTable{Aliases: cfg.Sites, DefaultSite: cfg.DefaultSite}),
		bot.WithInlineResultCount(cfg.InlineResultCount),
	)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Sessions never expire unless a TTL is configured
	if ttl := cfg.SessionTTL(); ttl > 0 {
		sched, err := scheduler.NewScheduler(cfg.Timezone)
		if err != nil {
			slog.Error("failed to initialize scheduler", "timezone", cfg.Timezone, "error", err)
			os.Exit(1)
		}

		interval := time.Duration(cfg.SessionSweepIntervalMins) * time.Minute
		if err := sched.Every(interval, func() {
			expireSessions(ctx, sessions, db, ttl)
		}); err != nil {
			slog.Error("failed to schedule session sweep", "error", err)
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
		slog.Info("session sweep scheduled", "ttl", ttl.String(), "interval", interval.String())
	}

	app := &App{
		cfg:     cfg,
		tgBot:   tgBot,
		handler: handler,
	}

	// Run the bot
	slog.Info("starting bot polling")
	app.run(ctx)
	slog.Info("bot stopped")
}

// App holds all application dependencies.
type App struct {
	cfg      *config.Config
	tgBot    *tgbotapi.BotAPI
	handler  *bot.Handler
	inFlight sync.WaitGroup
}

func (a *App) run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = a.cfg.PollTimeoutSecs
	updates := a.tgBot.GetUpdatesChan(u)

	defer a.inFlight.Wait()

	for {
		select {
		case <-ctx.Done():
			a.tgBot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			a.inFlight.Add(1)
			go func() {
				defer a.inFlight.Done()
				a.handleUpdate(ctx, &update)
			}()
		}
	}
}

func (a *App) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	switch {
	case update.Message != nil:
		msg := update.Message
		if msg.Text == "" {
			return
		}
		slog.Info("received message", "chat_id", msg.Chat.ID, "text", msg.Text)
		if err := a.handler.HandleMessage(ctx, msg.Chat.ID, msg.Text); err != nil {
			slog.Warn("failed to handle message", "chat_id", msg.Chat.ID, "error", err)
		}

	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		cb := &bot.Callback{ID: cq.ID, Data: cq.Data}
		if cq.Message != nil {
			cb.ChatID = cq.Message.Chat.ID
			cb.MessageID = cq.Message.MessageID
		}
		slog.Debug("received callback", "chat_id", cb.ChatID, "data", cb.Data)
		if err := a.handler.HandleCallback(ctx, cb); err != nil {
			slog.Warn("failed to handle callback", "chat_id", cb.ChatID, "data", cb.Data, "error", err)
		}

	case update.InlineQuery != nil:
		iq := update.InlineQuery
		slog.Debug("received inline query", "query", iq.Query)
		if err := a.handler.HandleInlineQuery(ctx, iq.ID, iq.Query); err != nil {
			slog.Warn("failed to handle inline query", "query", iq.Query, "error", err)
		}
	}
}

// sessionCounter reports how many sessions are stored.
type sessionCounter interface {
	CountSessions(ctx context.Context) (int, error)
}

func expireSessions(ctx context.Context, sessions *session.Manager, counter sessionCounter, ttl time.Duration) {
	n, err := sessions.Expire(ctx, ttl)
	if err != nil {
		slog.Error("session sweep failed", "error", err)
		return
	}

	remaining, err := counter.CountSessions(ctx)
	if err != nil {
		slog.Warn("failed to count sessions", "error", err)
		return
	}
	slog.Info("session sweep finished", "expired", n, "remaining", remaining)
}

// Adapter types to bridge between the bot interfaces and concrete clients

type telegramTransport struct {
	api *tgbotapi.BotAPI
}

func (t *telegramTransport) Send(ctx context.Context, out *bot.Outgoing) (int, error) {
	msg := tgbotapi.NewMessage(out.ChatID, out.Text)
	if out.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	msg.DisableWebPagePreview = true
	if out.Keyboard != nil {
		msg.ReplyMarkup = *out.Keyboard
	}

	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (t *telegramTransport) ClearKeyboard(ctx context.Context, chatID int64, messageID int) error {
	empty := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	_, err := t.api.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, empty))
	return err
}

func (t *telegramTransport) Delete(ctx context.Context, chatID int64, messageID int) error {
	_, err := t.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

func (t *telegramTransport) AnswerCallback(ctx context.Context, callbackID, text string) error {
	_, err := t.api.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

func (t *telegramTransport) AnswerInline(ctx context.Context, queryID string, results []tgbotapi.InlineQueryResultArticle) error {
	items := make([]interface{}, 0, len(results))
	for _, r := range results {
		items = append(items, r)
	}
	_, err := t.api.Request(tgbotapi.InlineConfig{
		InlineQueryID: queryID,
		Results:       items,
		CacheTime:     1,
	})
	return err
}

type searchAdapter struct {
	client *stackexchange.Client
}

func (s *searchAdapter) SearchQuestion(ctx context.Context, site, query string, page int) (*bot.Page, error) {
	resp, err := s.client.Search(ctx, site, query, page, 1)
	if err != nil {
		return nil, err
	}
	return firstPost(resp, render.Question), nil
}

func (s *searchAdapter) Answer(ctx context.Context, site string, questionID int64, page int) (*bot.Page, error) {
	resp, err := s.client.Answers(ctx, site, questionID, page, 1)
	if err != nil {
		return nil, err
	}
	return firstPost(resp, render.Answer), nil
}

func (s *searchAdapter) Excerpts(ctx context.Context, site, query string, limit int) ([]*render.Post, error) {
	items, err := s.client.SearchPosts(ctx, site, query, limit)
	if err != nil {
		return nil, err
	}

	posts := make([]*render.Post, 0, len(items))
	for _, it := range items {
		kind := render.Question
		if it.ItemType == stackexchange.ItemAnswer {
			kind = render.Answer
		}
		posts = append(posts, toPost(kind, &it))
	}
	return posts, nil
}

func firstPost(resp *stackexchange.Response, kind render.PostKind) *bot.Page {
	page := &bot.Page{HasMore: resp.HasMore}
	if len(resp.Items) > 0 {
		page.Post = toPost(kind, &resp.Items[0])
	}
	return page
}

func toPost(kind render.PostKind, it *stackexchange.Item) *render.Post {
	p := &render.Post{
		Kind:          kind,
		ID:            it.QuestionID,
		Title:         it.Title,
		Link:          it.Link,
		Body:          it.Body,
		Tags:          it.Tags,
		CreationDate:  it.CreationDate,
		IsAccepted:    it.IsAccepted,
		UpVoteCount:   it.UpVoteCount,
		DownVoteCount: it.DownVoteCount,
		FavoriteCount: it.FavoriteCount,
		AnswerCount:   it.AnswerCount,
	}
	if kind == render.Answer {
		p.ID = it.AnswerID
	}
	if it.Owner != nil {
		p.Owner = &render.Owner{DisplayName: it.Owner.DisplayName, Link: it.Owner.Link}
	}
	return p
}

type sessionStore struct {
	db *storage.DB
}

func (s *sessionStore) GetSession(ctx context.Context, token string) (*session.Session, error) {
	stored, err := s.db.GetSession(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session.Session{
		Token:            stored.Token,
		ChatID:           stored.ChatID,
		Query:            stored.Query,
		Site:             stored.Site,
		QuestionCursor:   stored.QuestionCursor,
		AnswerCursor:     stored.AnswerCursor,
		QuestionID:       stored.QuestionID,
		AnswerCount:      stored.AnswerCount,
		HasMoreQuestions: stored.HasMoreQuestions,
		LastActivity:     stored.LastActivity,
	}, nil
}

func (s *sessionStore) PutSession(ctx context.Context, sess *session.Session) error {
	return s.db.PutSession(ctx, &storage.Session{
		Token:            sess.Token,
		ChatID:           sess.ChatID,
		Query:            sess.Query,
		Site:             sess.Site,
		QuestionCursor:   sess.QuestionCursor,
		AnswerCursor:     sess.AnswerCursor,
		QuestionID:       sess.QuestionID,
		AnswerCount:      sess.AnswerCount,
		HasMoreQuestions: sess.HasMoreQuestions,
		LastActivity:     sess.LastActivity,
	})
}

func (s *sessionStore) DeleteSessionsInactiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.db.DeleteSessionsInactiveSince(ctx, cutoff)
}

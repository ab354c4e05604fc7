package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"so-telegram-bot/render"
)

const inlineDescriptionLength = 100

// HandleInlineQuery answers an inline query with one article per matching
// question or answer.
func (h *Handler) HandleInlineQuery(ctx context.Context, queryID, text string) error {
	site, query := h.sites.Detect(text)
	if query == "" {
		return h.transport.AnswerInline(ctx, queryID, nil)
	}

	posts, err := h.searcher.Excerpts(ctx, site, query, h.inlineCount)
	if err != nil {
		return fmt.Errorf("search excerpts: %w", err)
	}

	results := make([]tgbotapi.InlineQueryResultArticle, 0, len(posts))
	for _, p := range posts {
		article, err := h.inlineArticle(p)
		if err != nil {
			slog.Warn("skipping inline result", "kind", p.Kind.String(), "post_id", p.ID, "error", err)
			continue
		}
		results = append(results, article)
	}

	slog.Debug("answering inline query", "site", site, "query", query, "results", len(results))
	return h.transport.AnswerInline(ctx, queryID, results)
}

func (h *Handler) inlineArticle(p *render.Post) (tgbotapi.InlineQueryResultArticle, error) {
	text, err := h.composer.Compose(p)
	if err != nil {
		return tgbotapi.InlineQueryResultArticle{}, err
	}
	description, err := render.Truncate(render.PlainText(p.Body), inlineDescriptionLength, "...", render.RuneLength)
	if err != nil {
		return tgbotapi.InlineQueryResultArticle{}, err
	}

	kb := PostKeyboard(p)
	article := tgbotapi.NewInlineQueryResultArticleHTML(inlineResultID(p), render.PlainText(p.Title), text)
	article.InputMessageContent = tgbotapi.InputTextMessageContent{
		Text:                  text,
		ParseMode:             tgbotapi.ModeHTML,
		DisableWebPagePreview: true,
	}
	article.ReplyMarkup = &kb
	article.URL = p.Link
	article.Description = description
	return article, nil
}

// inlineResultID keeps question and answer ids apart; they share one
// number space per kind only.
func inlineResultID(p *render.Post) string {
	prefix := "q"
	if p.Kind == render.Answer {
		prefix = "a"
	}
	return prefix + strconv.FormatInt(p.ID, 10)
}

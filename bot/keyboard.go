package bot

import (
	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"so-telegram-bot/render"
	"so-telegram-bot/session"
)

// NotImplementedData is the callback data of the vote and favorite buttons.
const NotImplementedData = "not_implemented"

const (
	nextAnswerLabel   = "▶ Next answer"
	nextQuestionLabel = "➡ Next question"
)

// PostKeyboard builds the vote/favorite row shown under a post.
func PostKeyboard(p *render.Post) tgbotapi.InlineKeyboardMarkup {
	up := "0"
	if p.UpVoteCount != 0 {
		up = "+" + humanize.Comma(int64(p.UpVoteCount))
	}
	down := "0"
	if p.DownVoteCount != 0 {
		down = "−" + humanize.Comma(int64(p.DownVoteCount))
	}

	row := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("\U0001F53A "+up, NotImplementedData),
		tgbotapi.NewInlineKeyboardButtonData("\U0001F53B "+down, NotImplementedData),
	)
	if p.FavoriteCount != nil {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("⭐ "+humanize.Comma(int64(*p.FavoriteCount)), NotImplementedData))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// navigationKeyboard returns nil when there is nowhere to go.
func navigationKeyboard(s *session.Session, moreAnswers bool) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	if moreAnswers {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(nextAnswerLabel, s.ActionData(session.AdvanceAnswer)),
		))
	}
	if s.HasMoreQuestions != nil && *s.HasMoreQuestions {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(nextQuestionLabel, s.ActionData(session.AdvanceQuestion)),
		))
	}
	if len(rows) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func answerTotal(n *int) string {
	if n == nil {
		return "?"
	}
	return humanize.Comma(int64(*n))
}

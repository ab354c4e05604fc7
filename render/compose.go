package render

import (
	"fmt"
	"strings"
	"time"
)

// MaxMessageLength is Telegram's limit on message text.
const MaxMessageLength = 4096

const (
	questionHeader = "<b>Question</b> <a href=\"%s\">%s</a>\n\n"
	questionFooter = "\n\ntags: %s\nasked %s by %s"
	answerHeader   = "%s<b>Answer</b> to <a href=\"%s\">%s</a>\n\n"
	answerFooter   = "\n\nanswered %s by %s"

	acceptedMark = "✅ "
	ellipsis     = "..."
)

// Composer builds Telegram message text for posts.
type Composer struct {
	location *time.Location
	now      func() time.Time
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithLocation sets the time zone used to decide "today" and "yesterday".
func WithLocation(loc *time.Location) ComposerOption {
	return func(c *Composer) {
		c.location = loc
	}
}

// WithClock overrides the current time (for testing).
func WithClock(now func() time.Time) ComposerOption {
	return func(c *Composer) {
		c.now = now
	}
}

// NewComposer creates a Composer that works in UTC by default.
func NewComposer(opts ...ComposerOption) *Composer {
	c := &Composer{
		location: time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose renders a post as a header, a body trimmed to fit the message
// limit, and a footer.
//
// The limit is enforced with ClearLength, which does not count tag bytes, so
// the raw text may exceed MaxMessageLength by the size of the markup.
func (c *Composer) Compose(p *Post) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	created := HumanizeDate(time.Unix(p.CreationDate, 0), c.now(), c.location)
	owner := ownerMarkup(p.Owner)
	link := textEscaper.Replace(p.Link)

	var header, footer string
	switch p.Kind {
	case Question:
		header = fmt.Sprintf(questionHeader, link, p.Title)
		footer = fmt.Sprintf(questionFooter, tagList(p.Tags), created, owner)
	case Answer:
		mark := ""
		if p.IsAccepted {
			mark = acceptedMark
		}
		header = fmt.Sprintf(answerHeader, mark, link, p.Title)
		footer = fmt.Sprintf(answerFooter, created, owner)
	}

	budget := MaxMessageLength - ClearLength(header) - ClearLength(footer)
	body, err := Truncate(strings.TrimSpace(Transduce(p.Body)), budget, ellipsis, ClearLength)
	if err != nil {
		return "", fmt.Errorf("truncate %s %d: %w", p.Kind, p.ID, err)
	}

	return header + CloseTrailingTag(body) + footer, nil
}

// HumanizeDate renders created relative to now as "today", "yesterday",
// "Jan 2" within the same year, or "Jan 2 '06" otherwise.
func HumanizeDate(created, now time.Time, loc *time.Location) string {
	created = created.In(loc)
	now = now.In(loc)

	switch days := dayNumber(now) - dayNumber(created); {
	case days == 0:
		return "today"
	case days == 1:
		return "yesterday"
	case created.Year() == now.Year():
		return created.Format("Jan 2")
	default:
		return created.Format("Jan 2 '06")
	}
}

// dayNumber counts calendar days since the epoch for t's wall-clock date.
func dayNumber(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix() / 86400
}

func ownerMarkup(o *Owner) string {
	if o == nil {
		return "No author"
	}
	name := o.DisplayName
	if name == "" {
		name = "Anonymous"
	}
	if o.Link != "" {
		return `<a href="` + textEscaper.Replace(o.Link) + `">` + name + `</a>`
	}
	return name
}

func tagList(tags []string) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = "[<b>" + t + "</b>]"
	}
	return strings.Join(parts, ", ")
}

package render

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Telegram accepts only these tags, and never nested inside one another.
var inlineTags = map[string]string{
	"b":      "b",
	"strong": "b",
	"h1":     "b",
	"h2":     "b",
	"h3":     "b",
	"i":      "i",
	"em":     "i",
	"code":   "code",
	"kbd":    "code",
	"pre":    "pre",
	"a":      "a",
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

	// A word joiner after # and @ stops clients from autolinking hashtags and mentions.
	autolinkDefuser = strings.NewReplacer("#", "#\u2060", "@", "@\u2060")
)

const bullet = "\u2022 "

type listFrame struct {
	ordered bool
	counter int
}

// transducer holds the state of a single streaming conversion.
type transducer struct {
	out    strings.Builder
	active string // open inline tag, "" when none
	lists  []listFrame
}

// Transduce converts a Stack Exchange HTML body into Telegram's HTML subset.
// It never fails: unknown or misplaced tags are dropped and their text kept.
func Transduce(src string) string {
	t := &transducer{}
	z := html.NewTokenizer(strings.NewReader(src))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return t.out.String()
		case html.StartTagToken:
			t.start(z.Token())
		case html.SelfClosingTagToken:
			tok := z.Token()
			t.start(tok)
			t.end(tok.Data)
		case html.EndTagToken:
			t.end(z.Token().Data)
		case html.TextToken:
			t.text(z.Token().Data)
		}
	}
}

func (t *transducer) start(tok html.Token) {
	if t.active != "" {
		return
	}

	switch tok.Data {
	case "a":
		if href, ok := attr(tok, "href"); ok {
			t.out.WriteString(`<a href="` + textEscaper.Replace(href) + `">`)
			t.active = "a"
		}
	case "br":
		t.out.WriteByte('\n')
	case "ol", "ul":
		t.lists = append(t.lists, listFrame{ordered: tok.Data == "ol"})
	case "li":
		if len(t.lists) == 0 {
			return
		}
		top := &t.lists[len(t.lists)-1]
		top.counter++
		if top.ordered {
			t.out.WriteString(strconv.Itoa(top.counter) + ". ")
		} else {
			t.out.WriteString(bullet)
		}
	case "img":
		src, hasSrc := attr(tok, "src")
		alt, hasAlt := attr(tok, "alt")
		if hasSrc && hasAlt {
			t.out.WriteString(`<a href="` + textEscaper.Replace(src) + `">` + textEscaper.Replace(alt) + `</a>`)
		}
	default:
		if tag, ok := inlineTags[tok.Data]; ok {
			t.out.WriteString("<" + tag + ">")
			t.active = tag
		}
	}
}

func (t *transducer) end(name string) {
	if tag, ok := inlineTags[name]; ok && tag == t.active {
		t.out.WriteString("</" + tag + ">")
		t.active = ""
	}

	if name == "ol" || name == "ul" {
		if n := len(t.lists); n > 0 && t.lists[n-1].ordered == (name == "ol") {
			t.lists = t.lists[:n-1]
		}
	}

	if name == "p" || name == "li" || name == "pre" {
		if t.endsWithText() {
			t.out.WriteString("\n\n")
		}
	}
}

func (t *transducer) text(s string) {
	if t.active == "pre" {
		s = strings.TrimRightFunc(s, unicode.IsSpace)
	} else {
		s = strings.ReplaceAll(s, "\n", "")
	}
	s = textEscaper.Replace(s)
	if t.active == "" {
		s = autolinkDefuser.Replace(s)
	}
	t.out.WriteString(s)
}

func (t *transducer) endsWithText() bool {
	r, size := utf8.DecodeLastRuneInString(t.out.String())
	return size > 0 && !unicode.IsSpace(r)
}

func attr(tok html.Token, key string) (string, bool) {
	for _, a := range tok.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

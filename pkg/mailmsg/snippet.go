package mailmsg

import (
	"io"
	"regexp"
	"strings"

	"github.com/emersion/go-message/mail"
)

const snippetLength = 200

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// Snippet collapses whitespace, strips tags and truncates text to a preview
func Snippet(text string, isHTML bool) string {
	if isHTML {
		text = htmlTag.ReplaceAllString(text, " ")
		text = strings.ReplaceAll(text, "&nbsp;", " ")
		text = strings.ReplaceAll(text, "&lt;", "<")
		text = strings.ReplaceAll(text, "&gt;", ">")
		text = strings.ReplaceAll(text, "&amp;", "&")
		text = strings.ReplaceAll(text, "&quot;", "\"")
	}
	text = strings.Join(strings.Fields(text), " ")
	if runes := []rune(text); len(runes) > snippetLength {
		text = string(runes[:snippetLength]) + "..."
	}
	return text
}

// SnippetFromMessage reads a raw message and returns a preview of its first text part.
// Plain text is preferred over HTML.
func SnippetFromMessage(r io.Reader) (string, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", err
	}
	defer mr.Close()

	var htmlBody string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		data, err := io.ReadAll(p.Body)
		if err != nil {
			return "", err
		}
		switch contentType {
		case "text/plain":
			return Snippet(string(data), false), nil
		case "text/html":
			if htmlBody == "" {
				htmlBody = string(data)
			}
		}
	}
	return Snippet(htmlBody, true), nil
}

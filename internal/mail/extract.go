// File: internal/mail/extract.go
// Description: Reset-link extraction from raw mailbox messages. The link
// patterns match the provider's single-use resetpassword URLs; first match
// wins.
package mail

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	gomail "github.com/emersion/go-message/mail"
	"golang.org/x/net/html"
)

// ResetLink is the single-use URL extracted from a reset message. It is
// ephemeral and consumed at most once per run.
type ResetLink struct {
	URL         string
	ExtractedAt time.Time
}

// Ordered: the global signin host first, then account-scoped subdomains.
var resetLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https://signin\.aws\.amazon\.com/resetpassword\?token=[A-Za-z0-9\-_]+`),
	regexp.MustCompile(`https://[a-z0-9\-]+\.signin\.aws\.amazon\.com/resetpassword\?token=[A-Za-z0-9\-_]+`),
}

// ExtractResetLink scans a message body for a reset URL. Returns the exact
// matched URL and true, or "" and false when no pattern matches.
func ExtractResetLink(body string) (string, bool) {
	for _, pattern := range resetLinkPatterns {
		if match := pattern.FindString(body); match != "" {
			return match, true
		}
	}
	return "", false
}

// ExtractBody renders a raw RFC 822 message to plain text. Multipart
// messages prefer the text/plain part; text/html parts are stripped to text
// as a fallback. Non-MIME input degrades to everything after the header
// block.
func ExtractBody(raw []byte) (string, error) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return bodyAfterHeaders(raw), nil
	}
	defer mr.Close()

	var plain, htmlText string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read message part: %w", err)
		}

		header, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue // attachments carry no reset link we trust
		}
		contentType, _, err := header.ContentType()
		if err != nil {
			continue
		}

		switch contentType {
		case "text/plain":
			if data, err := io.ReadAll(part.Body); err == nil {
				plain = string(data)
			}
		case "text/html":
			if data, err := io.ReadAll(part.Body); err == nil {
				htmlText = htmlToText(string(data))
			}
		}
	}

	if plain != "" {
		return plain, nil
	}
	return htmlText, nil
}

// htmlToText strips markup, keeping text content with whitespace separators.
func htmlToText(s string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				sb.Write(tokenizer.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

// bodyAfterHeaders is the degraded path for messages the MIME reader cannot
// parse: return whatever follows the header block.
func bodyAfterHeaders(raw []byte) string {
	text := string(raw)
	for _, sep := range []string{"\r\n\r\n", "\n\n"} {
		if _, body, found := strings.Cut(text, sep); found {
			return body
		}
	}
	return text
}

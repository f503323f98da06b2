package tabular

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const fence = "```"

// StripCodeFence removes a markdown code fence around model output.
//
// The text is NFC-normalised and a leading byte order mark is dropped. When
// the output opens with a fence, the opening line (with its optional
// language tag such as "csv" or "sql") and a closing fence are removed. When
// a fenced block appears after some chatter, the contents of the first block
// are returned. Unfenced text is returned trimmed.
func StripCodeFence(s string) string {
	s = norm.NFC.String(s)
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, fence) {
		return strings.TrimSpace(unfence(s))
	}

	if i := strings.Index(s, "\n"+fence); i >= 0 {
		return strings.TrimSpace(unfence(s[i+1:]))
	}

	return s
}

// unfence expects s to start with a fence.
func unfence(s string) string {
	body := s[len(fence):]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(body[:nl]); isFenceTag(tag) {
			body = body[nl+1:]
		}
	}
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	return body
}

func isFenceTag(tag string) bool {
	for _, r := range tag {
		if !isLetter(r) && r != '-' && r != '+' {
			return false
		}
	}
	return true
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

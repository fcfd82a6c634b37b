// Package render substitutes message variables into template content.
//
// Tokens use the #{변수명} form; the legacy #[변수명] spelling resolves
// through the same registry. Unknown tokens are left verbatim so a pre-send
// validation step can surface them.
package render

import (
	"regexp"
	"time"
)

// Recipient is the per-message recipient data available to tokens.
type Recipient struct {
	Name  string
	Phone string
}

// Sender is the owner-side data available to tokens.
type Sender struct {
	Phone   string
	Company string
	Manager string
}

// fallbackName replaces #{이름} when the recipient has no recorded name.
const fallbackName = "고객님"

var koreanDays = [...]string{"일", "월", "화", "수", "목", "금", "토"}

type resolver func(r Recipient, s Sender, now time.Time) string

// registry is the closed token vocabulary. Adding a token means adding an
// entry here and nothing else.
var registry = map[string]resolver{
	"이름": func(r Recipient, _ Sender, _ time.Time) string {
		if r.Name == "" {
			return fallbackName
		}
		return r.Name
	},
	"전화번호": func(r Recipient, _ Sender, _ time.Time) string { return r.Phone },
	"오늘날짜": func(_ Recipient, _ Sender, now time.Time) string { return now.Format("2006-01-02") },
	"현재시간": func(_ Recipient, _ Sender, now time.Time) string { return now.Format("15:04") },
	"요일": func(_ Recipient, _ Sender, now time.Time) string {
		return koreanDays[int(now.Weekday())]
	},
	"발신번호": func(_ Recipient, s Sender, _ time.Time) string { return s.Phone },
	"회사명":  func(_ Recipient, s Sender, _ time.Time) string { return s.Company },
	"담당자명": func(_ Recipient, s Sender, _ time.Time) string { return s.Manager },
}

var tokenPattern = regexp.MustCompile(`#\{([^{}]+)\}|#\[([^\[\]]+)\]`)

// Render substitutes every registered token in content using the wall clock
// for date/time tokens.
func Render(content string, r Recipient, s Sender) string {
	return RenderAt(content, r, s, time.Now())
}

// RenderAt is Render with an explicit timestamp for the date/time tokens.
func RenderAt(content string, r Recipient, s Sender, now time.Time) string {
	return tokenPattern.ReplaceAllStringFunc(content, func(match string) string {
		res, ok := registry[tokenName(match)]
		if !ok {
			return match
		}
		return res(r, s, now)
	})
}

// UnresolvedTokens returns the distinct tokens still present in content,
// in order of first appearance. Run it on rendered output to detect
// placeholders the registry does not know.
func UnresolvedTokens(content string) []string {
	matches := tokenPattern.FindAllString(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Tokens lists the registered token names.
func Tokens() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}

// tokenName strips #{...} or #[...] down to the bare variable name.
func tokenName(match string) string {
	return match[len("#{") : len(match)-1]
}

package speech

import (
	"regexp"
	"strings"
)

var (
	listBulletPattern  = regexp.MustCompile(`(?m)^\s*(?:[-*+•]|\d+[.)])\s+`)
	asidePattern       = regexp.MustCompile(`\([^()]*\)|（[^（）]*）|\[[^\[\]]*\]|【[^【】]*】`)
	headingPattern     = regexp.MustCompile(`#+`)
	emphasisPattern    = regexp.MustCompile("[*_~`]+")
	whitespacePattern  = regexp.MustCompile(`\s+`)
	punctuationSpacing = regexp.MustCompile(`\s+([,.!?;:，。！？；：、])`)
)

// Sanitize strips markdown formatting and bracketed asides so only the
// spoken words reach the synthesizer.
func Sanitize(text string) string {
	out := listBulletPattern.ReplaceAllString(text, "")
	// 由内向外剥除嵌套的括号旁白。
	for {
		next := asidePattern.ReplaceAllString(out, "")
		if next == out {
			break
		}
		out = next
	}
	out = headingPattern.ReplaceAllString(out, "")
	out = emphasisPattern.ReplaceAllString(out, "")
	out = whitespacePattern.ReplaceAllString(out, " ")
	out = punctuationSpacing.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out)
}

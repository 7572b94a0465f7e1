package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// minTitleLength is the shortest accepted title in runes.
const minTitleLength = 4

// uiPhrases are navigation and chrome strings that every stage rejects as
// event titles.
var uiPhrases = map[string]struct{}{
	"home": {}, "menu": {}, "search": {}, "login": {}, "sign in": {},
	"sign up": {}, "subscribe": {}, "next": {}, "previous": {}, "back": {},
	"more": {}, "read more": {}, "see more": {}, "view all": {}, "see all": {},
	"learn more": {}, "buy tickets": {}, "book now": {}, "contact us": {},
	"about us": {}, "privacy policy": {}, "terms of use": {}, "cookie policy": {},
	"share": {}, "print": {}, "download": {}, "skip to content": {},
}

// languageTokens are language-selector labels common on multilingual sites.
var languageTokens = map[string]struct{}{
	"en": {}, "pt": {}, "zh": {}, "english": {}, "português": {},
	"portugues": {}, "中文": {}, "繁體中文": {}, "简体中文": {}, "繁體": {}, "简体": {},
}

var digitPunctOnly = regexp.MustCompile(`^[\d\s\p{P}\p{S}]+$`)

// ValidTitle reports whether text is plausible as an event title: not a
// language-selector token, not a navigation phrase, not digits/punctuation
// only, and at least minTitleLength runes.
func ValidTitle(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	lower := strings.ToLower(t)
	if _, ok := languageTokens[lower]; ok {
		return false
	}
	if _, ok := uiPhrases[lower]; ok {
		return false
	}
	if digitPunctOnly.MatchString(t) {
		return false
	}
	return utf8.RuneCountInString(t) >= minTitleLength
}

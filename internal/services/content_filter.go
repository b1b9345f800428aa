package services

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var BannedWords = []string{
	"fuck", "fucking", "fucker", "shit", "shitty", "bullshit",
	"asshole", "bastard", "bitch", "cunt",
	"nigger", "nigga", "chink", "spic", "kike", "faggot", "fag",
	"retard", "retarded", "tranny",
	"porn", "porno", "nude", "nudes",
	"scammer", "phishing", "malware",
}

// ContentFilter screens text submitted by anonymous visitors. Links and contact details
// are expected in community listings, so only language and spam heuristics apply.
type ContentFilter struct {
	bannedWordRegexps   []*regexp.Regexp
	repeatedCharPattern *regexp.Regexp
	allCapsPattern      *regexp.Regexp
	compiled            bool
	mu                  sync.RWMutex
}

func NewContentFilter() *ContentFilter {
	f := &ContentFilter{}
	f.compilePatterns()
	return f
}

func (f *ContentFilter) compilePatterns() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.compiled {
		return
	}

	f.bannedWordRegexps = make([]*regexp.Regexp, 0, len(BannedWords))
	for _, word := range BannedWords {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
		if err == nil {
			f.bannedWordRegexps = append(f.bannedWordRegexps, re)
		}
	}

	f.repeatedCharPattern = regexp.MustCompile(`(?i)(a{6,}|e{6,}|i{6,}|o{6,}|u{6,}|!{5,}|\?{5,}|\${4,})`)
	f.allCapsPattern = regexp.MustCompile(`\b[A-Z]{6,}\b`)
	f.compiled = true
}

// FilterContent reports whether text is acceptable and, if not, why.
func (f *ContentFilter) FilterContent(text string) (bool, string) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if strings.TrimSpace(text) == "" {
		return true, ""
	}
	for _, re := range f.bannedWordRegexps {
		if re.MatchString(text) {
			return false, "inappropriate_language"
		}
	}
	if f.repeatedCharPattern.MatchString(text) {
		return false, "spam_detected"
	}
	if len(f.allCapsPattern.FindAllString(text, -1)) > 4 {
		return false, "excessive_caps"
	}
	return true, ""
}

func (f *ContentFilter) GetRejectionMessage(reason string) string {
	messages := map[string]string{
		"inappropriate_language": "Your submission contains inappropriate language.",
		"spam_detected":          "Your submission appears to be spam.",
		"excessive_caps":         "Please avoid using excessive capital letters.",
	}
	if msg, ok := messages[reason]; ok {
		return msg
	}
	return "Your submission does not meet our content guidelines."
}

// CheckPayload runs the filter over every string value in a JSON object.
func (f *ContentFilter) CheckPayload(payload []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s, ok := fields[k].(string)
		if !ok {
			continue
		}
		if ok, reason := f.FilterContent(s); !ok {
			return &ContentRejectedError{Reason: reason, Message: f.GetRejectionMessage(reason)}
		}
	}
	return nil
}

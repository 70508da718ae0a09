package analyzer

import (
	"context"
	"strings"
	"unicode"
)

// Brush-off keywords. Chinese entries match as substrings, English entries
// as whole words.
var (
	chineseKeywords = []string{"呵呵", "嗯", "哦", "洗澡", "忙", "哈哈", "好的", "可以"}
	englishKeywords = []string{"lol", "ok", "k", "hmm", "oh", "shower", "busy", "haha", "sure", "fine"}
)

// Replies that are a single sound
var oneWordReplies = map[string]bool{
	"嗯": true, "哦": true, "k": true, "ok": true, "hmm": true, "oh": true,
}

const (
	perfunctoryHits = 3
	shortChatLines  = 5
	maxLaughs       = 2
)

// KeywordClassifier applies a fixed rule set to the chat text
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

func (k *KeywordClassifier) Name() string {
	return ProviderKeyword
}

// Analyze never fails. Requests with images and no text get a placeholder
// since screenshots cannot be read without a model.
func (k *KeywordClassifier) Analyze(ctx context.Context, req Request) (Result, error) {
	result := k.classify(req)
	observe(k.Name(), nil)
	return result, nil
}

func (k *KeywordClassifier) classify(req Request) Result {
	if strings.TrimSpace(req.Text) == "" && len(req.Images) > 0 {
		return Result{
			Cause:      "Image analysis unavailable",
			Suggestion: "Configure the claude provider to read screenshots",
			Keywords:   []string{},
			Details:    "The keyword classifier only reads text",
		}
	}

	text := strings.ToLower(req.Text)
	found := matchKeywords(text)
	lines := countLines(text)
	laughs := strings.Count(text, "哈哈") + strings.Count(text, "haha")

	result := Result{Keywords: found}
	switch {
	case len(found) >= perfunctoryHits:
		result.Cause = "Perfunctory replies"
		result.Suggestion = "They can't even be bothered to type properly. Block them."
		result.Details = "Several brush-off keywords detected, interest is clearly low"
	case lines < shortChatLines:
		result.Cause = "Cold shoulder"
		result.Suggestion = "They won't spare more than a few words. Light a candle for this one."
		result.Details = "The conversation is too short, they may not want to keep talking"
	case laughs > maxLaughs:
		result.Cause = "Read and rambled"
		result.Suggestion = "Laughing until there's nothing left. How is this different from a paid chat companion?"
		result.Details = "Excessive laughter is usually a sign of awkwardness"
	case hasOneWordReply(found):
		result.Cause = "One-word reply syndrome"
		result.Suggestion = "Why use two words when one will do"
		result.Details = "Single-word replies are the classic not-interested signal"
	default:
		result.Cause = "Not interested in you"
		result.Suggestion = "Wake up and stop moving yourself to tears"
		result.Details = "Overall the signs point to low interest"
	}

	return result
}

func matchKeywords(text string) []string {
	found := make([]string, 0)
	for _, keyword := range chineseKeywords {
		if strings.Contains(text, keyword) {
			found = append(found, keyword)
		}
	}

	words := make(map[string]bool)
	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[word] = true
	}
	for _, keyword := range englishKeywords {
		if words[keyword] {
			found = append(found, keyword)
		}
	}

	return found
}

func countLines(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}

func hasOneWordReply(found []string) bool {
	for _, keyword := range found {
		if oneWordReplies[keyword] {
			return true
		}
	}
	return false
}

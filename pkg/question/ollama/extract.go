package ollama

import (
	"errors"
	"regexp"
	"strings"
)

var (
	thinkBlockRe    = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeBlockRe     = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")
	rawObjectRe     = regexp.MustCompile(`(?s)\{.*\}`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON pulls a JSON object out of raw model output. It strips
// reasoning tags, prefers fenced code blocks, falls back to the outermost
// brace pair, and removes trailing commas that commonly break decoding.
func ExtractJSON(text string) (string, error) {
	text = thinkBlockRe.ReplaceAllString(text, "")

	if m := codeBlockRe.FindStringSubmatch(text); m != nil {
		return removeTrailingCommas(strings.TrimSpace(m[1])), nil
	}
	if m := rawObjectRe.FindString(text); m != "" {
		return removeTrailingCommas(m), nil
	}
	return "", errors.New("no JSON found in response")
}

func removeTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

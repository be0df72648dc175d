package utils

// CountTokens estimates the number of tokens in text at roughly four
// characters per token. Any non-empty text counts as at least one token.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateToTokenLimit cuts text to roughly fit within limit tokens, marking
// the cut with suffix.
func TruncateToTokenLimit(text string, limit int, suffix string) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	charLimit := limit * 4
	if charLimit >= len(runes) {
		return text
	}
	keep := charLimit - len([]rune(suffix))
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + suffix
}

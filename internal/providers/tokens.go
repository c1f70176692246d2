package providers

// EstimateTokens approximates the token count of a text using the usual
// 4-characters-per-token heuristic. Used only for pre-call budget estimates;
// actual usage comes from the vendor response.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// EstimateMessageTokens sums the heuristic estimate over a conversation.
func EstimateMessageTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateTokens(m.Content)
	}
	return total
}

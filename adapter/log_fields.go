package adapter

import "strings"

func maskChatID(chatID string) string {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return ""
	}
	const keep = 4
	if len(chatID) <= keep {
		return chatID
	}
	return strings.Repeat("*", len(chatID)-keep) + chatID[len(chatID)-keep:]
}

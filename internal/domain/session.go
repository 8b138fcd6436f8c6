package domain

import "time"

type Session struct {
	ID                string
	Intent            string
	VerifiedDocuments []VerifiedDocument
	Revision          int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LatestUserMessage returns the content of the last message with role "user".
func LatestUserMessage(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

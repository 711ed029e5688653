package domain

import "time"

// Conversation is a durable chat between two or more participants. It is never
// hard-deleted: Active flips to false once and stays false.
type Conversation struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipants returns every participant except the given user.
func (c Conversation) OtherParticipants(userID string) []string {
	others := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != userID {
			others = append(others, p)
		}
	}
	return others
}

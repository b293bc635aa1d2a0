package shop

import (
	"strings"
	"time"
)

// MaxSearchHistory is the number of searches kept in a session
const MaxSearchHistory = 50

// Session is the shopping state of a chat
type Session struct {
	ChatID        string   `json:"chat_id" yaml:"chat_id"`
	Cart          Cart     `json:"cart" yaml:"cart"`
	SearchHistory []string `json:"search_history,omitempty" yaml:"search_history,omitempty"`
	// TotalSearches counts all recorded searches, including the dropped ones
	TotalSearches int       `json:"total_searches,omitempty" yaml:"total_searches,omitempty"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewSession returns an empty session
func NewSession(chatID string) *Session {
	return &Session{
		ChatID:    chatID,
		UpdatedAt: time.Now().UTC(),
	}
}

// RecordSearch appends the query to the history,
// only the last MaxSearchHistory entries are kept.
func (s *Session) RecordSearch(q string) {
	q = strings.TrimSpace(q)
	if q == "" {
		return
	}
	s.TotalSearches = s.SearchCount() + 1
	s.SearchHistory = append(s.SearchHistory, q)
	if over := len(s.SearchHistory) - MaxSearchHistory; over > 0 {
		s.SearchHistory = append([]string(nil), s.SearchHistory[over:]...)
	}
}

// SearchCount returns the number of recorded searches
func (s *Session) SearchCount() int {
	return max(s.TotalSearches, len(s.SearchHistory))
}

// RecentSearches returns the last n searches, oldest first
func (s *Session) RecentSearches(n int) []string {
	if n <= 0 || len(s.SearchHistory) == 0 {
		return nil
	}
	start := max(len(s.SearchHistory)-n, 0)
	return append([]string(nil), s.SearchHistory[start:]...)
}

// Touch updates the modification time
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

package session

import "time"

// Profile is the parsed user profile uploaded for a session.
type Profile struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Text        string    `json:"text"`
	ParsedAt    time.Time `json:"parsedAt"`
}

package session

// Response is returned by the upload and job description endpoints.
type Response struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

package models

import "time"

// Consultation completed questionnaire, as logged to PostgreSQL
type Consultation struct {
	SessionID      string    `json:"session_id"`
	Complaint      string    `json:"complaint"`
	Questions      []string  `json:"questions"`
	Answers        []string  `json:"answers"`
	Recommendation string    `json:"recommendation"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
}

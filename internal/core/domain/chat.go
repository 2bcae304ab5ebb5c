package domain

import "time"

// AnswerMode records whether an answer was grounded in document excerpts.
type AnswerMode string

// Answer modes.
const (
	AnswerGrounded AnswerMode = "grounded"
	AnswerGeneral  AnswerMode = "general"
)

// ChatExchange is one persisted question and answer. Exchanges are
// append-only and never modified after creation.
type ChatExchange struct {
	ID         string
	UserID     string
	DocumentID string // empty when the question was not scoped
	Query      string
	Answer     string
	Mode       AnswerMode
	CreatedAt  time.Time
}

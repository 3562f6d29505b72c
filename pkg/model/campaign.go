package model

import (
	"time"

	"github.com/google/uuid"
)

type CampaignID string

// NewCampaignID generates a new unique CampaignID
func NewCampaignID() CampaignID {
	return CampaignID(uuid.New().String())
}

// EmailDraft is generated marketing copy for one target.
type EmailDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	// Structured is false when the LLM output could not be parsed and the
	// draft was built from plain text.
	Structured  bool      `json:"structured"`
	Target      *Target   `json:"target"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Text renders the draft as a plain-text email.
func (d *EmailDraft) Text() string {
	return "Subject: " + d.Subject + "\n\n" + d.Body
}

// Campaign is a saved draft in the campaign history.
type Campaign struct {
	ID         CampaignID `json:"id" firestore:"id"`
	TargetName string     `json:"target" firestore:"target"`
	PersonID   PersonID   `json:"person_id" firestore:"person_id"`
	EventID    EventID    `json:"event_id" firestore:"event_id"`
	RiskLevel  RiskLevel  `json:"risk_level" firestore:"risk_level"`
	Subject    string     `json:"subject" firestore:"subject"`
	Body       string     `json:"body" firestore:"body"`
	CreatedAt  time.Time  `json:"timestamp" firestore:"created_at"`
}

// Text renders the saved campaign as a plain-text email.
func (c *Campaign) Text() string {
	return "Subject: " + c.Subject + "\n\n" + c.Body
}

package model

import "time"

type Status string

const (
	StatusDraft         Status = "Draft"
	StatusSent          Status = "Sent"
	StatusFailed        Status = "Failed"
	StatusPartiallySent Status = "Partially Sent"
)

type MessageType string

const (
	Transactional MessageType = "Transactional"
	Promotional   MessageType = "Promotional"
)

// LogRecord is one delivery-outcome row per recipient. Records are
// insert-only: a resend creates new rows rather than updating old ones.
type LogRecord struct {
	ID           int64
	MobileNumber string
	Message      string
	Status       Status
	APIResponse  string
	RefDocType   string
	RefName      string
	CreatedAt    time.Time
}

// Outcome is the batch-level result of one dispatch call. All recipients
// in a dispatch share the same terminal status because the gateway is
// called once for the whole batch.
type Outcome struct {
	Status         Status   `json:"status"`
	Response       string   `json:"response"`
	MessageID      string   `json:"message_id"`
	SentCount      int      `json:"sent_count"`
	FailedCount    int      `json:"failed_count"`
	RecipientCount int      `json:"recipient_count"`
	Invalid        []string `json:"invalid,omitempty"`
	Duplicates     []string `json:"duplicates,omitempty"`
}

// Aggregate is derived from the latest log record per distinct recipient
// of a referenced business record.
type Aggregate struct {
	Total  int    `json:"total_recipients"`
	Sent   int    `json:"sent_recipients"`
	Failed int    `json:"failed_recipients"`
	Status Status `json:"status"`
}

type Broadcast struct {
	ID              int64
	Message         string
	TemplateName    string
	TemplateValues  string
	RecipientInput  string
	MessageType     MessageType
	DLRURL          string
	MessageID       string
	RenderedMessage string
	LastResponse    string
	SentOn          *time.Time
	Total           int
	Sent            int
	Failed          int
	Status          Status
}

type Template struct {
	Name    string
	Content string
	Active  bool
}

// Rule binds a document event to an SMS dispatch. Condition matching is a
// plain field/value equality check evaluated against the event document.
type Rule struct {
	ID               int64
	DocumentType     string
	TriggerEvent     string
	ValueChangeField string
	ConditionField   string
	ConditionValue   string
	RecipientField   string
	StaticNumbers    string
	TemplateName     string
	MessageType      MessageType
	DLRURL           string
	Enabled          bool
}

// Event is a document lifecycle notification from the host platform.
type Event struct {
	DocumentType string         `json:"document_type"`
	Name         string         `json:"name"`
	Event        string         `json:"event"`
	Doc          map[string]any `json:"doc"`
	Previous     map[string]any `json:"previous,omitempty"`
}

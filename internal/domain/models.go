// Package domain defines the persistence models for processed-message markers,
// conversation turns, and user profile facts, plus the ephemeral values that
// flow through one pipeline run. The persisted types are mapped with GORM and
// form the core data layer of the assistant.
package domain

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ProcessedMessage marks a transport message as having entered processing.
// The composite primary key (chat_id, message_id) makes a repeated insert a
// no-op, which is what guards against processing a re-delivery twice.
//
// Rows are never deleted.
type ProcessedMessage struct {
	ChatID    int64     `json:"chat_id"    gorm:"primaryKey;autoIncrement:false"`
	MessageID int64     `json:"message_id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
}

// TableName returns the database table name for ProcessedMessage.
func (ProcessedMessage) TableName() string { return "processed_messages" }

// Turn is one stored message of a conversation, authored either by the
// "user" or by the "assistant". Turns are append-only and ordered by
// CreatedAt (ID breaks ties) within a chat.
//
// Fields:
//   - ID: autoincrement primary key.
//   - ChatID / UserID: transport identifiers of the conversation and author.
//   - Role: "user" or "assistant" (enforced by DB constraint).
//   - Text: full text of the turn.
//   - Metadata: free-form JSON map (sender name, intent, confidence, tools).
//   - CreatedAt: insertion timestamp (UTC).
type Turn struct {
	ID        uint              `json:"id"         gorm:"primaryKey;autoIncrement"`
	ChatID    int64             `json:"chat_id"    gorm:"not null;index:idx_messages_chat_created,priority:1"`
	UserID    int64             `json:"user_id"    gorm:"not null"`
	Role      string            `json:"role"       gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Text      string            `json:"text"       gorm:"type:text;not null"`
	Metadata  datatypes.JSONMap `json:"metadata"   gorm:"column:metadata"`
	CreatedAt time.Time         `json:"created_at" gorm:"not null;index:idx_messages_chat_created,priority:2"`
}

// TableName returns the database table name for Turn.
func (Turn) TableName() string { return "messages" }

// ContextLine renders the turn the way it is fed to the planner and the
// response generator ("role: text").
func (t Turn) ContextLine() string { return t.Role + ": " + t.Text }

// ProfileFact is a timestamped, confidence-scored attribute inferred about a
// user. Facts are append-only; several rows may share a key and all of
// them are eligible for recall.
type ProfileFact struct {
	ID         uint      `json:"id"         gorm:"primaryKey;autoIncrement"`
	UserID     int64     `json:"user_id"    gorm:"not null;index:idx_profile_user_created,priority:1"`
	FactKey    string    `json:"fact_key"   gorm:"type:varchar(64);not null"`
	FactValue  string    `json:"fact_value" gorm:"type:text;not null"`
	Confidence float64   `json:"confidence" gorm:"not null;check:confidence >= 0 AND confidence <= 1"`
	CreatedAt  time.Time `json:"created_at" gorm:"not null;index:idx_profile_user_created,priority:2"`
}

// TableName returns the database table name for ProfileFact.
func (ProfileFact) TableName() string { return "profile_facts" }

// String formats the fact as "key: value (conf=0.85)".
func (f ProfileFact) String() string {
	return fmt.Sprintf("%s: %s (conf=%.2f)", f.FactKey, f.FactValue, f.Confidence)
}

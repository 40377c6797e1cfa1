package models

import (
	"strings"
	"time"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type MessageType string

const (
	TypeText        MessageType = "text"
	TypeTemplate    MessageType = "template"
	TypeButtonClick MessageType = "button_click"
	TypeMedia       MessageType = "media"
)

// Disposition is how an inbound message was resolved. The zero value is unset.
type Disposition string

const (
	DispositionUnset           Disposition = ""
	DispositionAutoReplied     Disposition = "auto_replied"
	DispositionManualOnly      Disposition = "manual_only"
	DispositionFlaggedForAgent Disposition = "flagged_for_agent"
)

// Delivery statuses in the stored vocabulary.
const (
	StatusQueued    = "queued"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// NormalizeStatus maps a provider status onto the stored vocabulary.
func NormalizeStatus(providerStatus string) string {
	s := strings.ToLower(strings.TrimSpace(providerStatus))
	if s == "undelivered" {
		return StatusFailed
	}
	return s
}

// Message is one inbound or outbound WhatsApp message
type Message struct {
	ID                string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt         time.Time   `gorm:"not null;index:idx_messages_phone_created,priority:2" json:"created_at"`
	CustomerID        *string     `gorm:"type:varchar(36);index" json:"customer_id"`
	PhoneNumber       string      `gorm:"type:varchar(32);not null;index:idx_messages_phone_created,priority:1" json:"phone_number"`
	DisplayName       *string     `gorm:"type:varchar(255)" json:"display_name"`
	Body              string      `gorm:"type:text" json:"body"`
	ProviderMessageID *string     `gorm:"type:varchar(64);uniqueIndex" json:"provider_message_id"`
	Type              MessageType `gorm:"type:varchar(20);not null" json:"type"`
	Direction         Direction   `gorm:"type:varchar(10);not null;index" json:"direction"`
	ButtonPayload     *string     `gorm:"type:varchar(255)" json:"button_payload"`
	ButtonText        *string     `gorm:"type:varchar(255)" json:"button_text"`
	Status            *string     `gorm:"type:varchar(20)" json:"status"`
	IsAIResponse      bool        `gorm:"not null;default:false" json:"is_ai_response"`
	NeedsReview       bool        `gorm:"not null;default:false" json:"needs_review"`
	Disposition       Disposition `gorm:"type:varchar(20);not null;index" json:"disposition"`
}

func (Message) TableName() string {
	return "messages"
}

// IsAgentReply reports whether m was sent by a human agent.
func (m Message) IsAgentReply() bool {
	return m.Direction == DirectionOutbound && !m.IsAIResponse
}

type CustomerResponse string

const (
	ResponseYesReceived   CustomerResponse = "yes_received"
	ResponseNoNotReceived CustomerResponse = "no_not_received"
)

const (
	CustomerStatusNew     = "new"
	SourceWhatsAppInbound = "whatsapp_inbound"
)

// Customer is a lead known to the business
type Customer struct {
	ID                  string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name                string            `gorm:"type:varchar(255)" json:"name"`
	PhoneNumber         string            `gorm:"type:varchar(32);index" json:"phone_number"`
	AlternatePhone      string            `gorm:"type:varchar(32);index" json:"alternate_phone"`
	PreferredPackage    string            `gorm:"type:varchar(255)" json:"preferred_package"`
	Response            *CustomerResponse `gorm:"type:varchar(32);index" json:"response"`
	RespondedAt         *time.Time        `json:"responded_at"`
	PackageReceived     *bool             `json:"package_received"`
	DeliveryConfirmedAt *time.Time        `json:"delivery_confirmed_at"`
	LastButtonText      string            `gorm:"type:varchar(255)" json:"last_button_text"`
	ButtonClickedAt     *time.Time        `json:"button_clicked_at"`
	Status              *string           `gorm:"type:varchar(20)" json:"status"`
	Source              *string           `gorm:"type:varchar(50)" json:"source"`
	FollowUpSentAt      *time.Time        `json:"follow_up_sent_at"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

func (Customer) TableName() string {
	return "customers"
}

// ContactPhone returns the number to message. The alternate number wins when
// both are set since it is more often the WhatsApp-registered one.
func (c Customer) ContactPhone() string {
	if c.AlternatePhone != "" {
		return c.AlternatePhone
	}
	return c.PhoneNumber
}

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobRunning    JobStatus = "running"
	JobDone       JobStatus = "done"
	JobSkipped    JobStatus = "skipped"
	JobFailed     JobStatus = "failed"
	JobSuperseded JobStatus = "superseded"
)

// ReplyJob is a durable "reply to this message no earlier than NotBefore" entry
type ReplyJob struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	MessageID   string    `gorm:"type:varchar(36);not null;index" json:"message_id"`
	PhoneNumber string    `gorm:"type:varchar(32)" json:"phone_number"`
	NotBefore   time.Time `gorm:"not null;index:idx_reply_jobs_due,priority:2" json:"not_before"`
	Status      JobStatus `gorm:"type:varchar(20);not null;index:idx_reply_jobs_due,priority:1" json:"status"`
	Attempts    int       `gorm:"not null;default:0" json:"attempts"`
	LastError   string    `gorm:"type:text" json:"last_error"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (ReplyJob) TableName() string {
	return "reply_jobs"
}

// SystemSetting stores configuration that can be changed without a redeploy
type SystemSetting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}

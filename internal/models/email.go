package models

import "time"

const EmailTypeReceived = "received"

// Email mirrors one remote mail message.
type Email struct {
	ID          string    `gorm:"column:id;primaryKey" bson:"_id"`
	UserID      string    `gorm:"column:user_id;index" bson:"user_id"`
	ProviderID  *string   `gorm:"column:provider_id" bson:"provider_id,omitempty"`
	Source      Source    `gorm:"column:source" bson:"source"`
	ThreadID    string    `gorm:"column:thread_id" bson:"thread_id"`
	From        string    `gorm:"column:sender" bson:"sender"`
	To          string    `gorm:"column:recipients" bson:"recipients"`
	Cc          string    `gorm:"column:cc" bson:"cc"`
	Bcc         string    `gorm:"column:bcc" bson:"bcc"`
	Subject     string    `gorm:"column:subject" bson:"subject"`
	Body        string    `gorm:"column:body" bson:"body"`
	BodyText    string    `gorm:"column:body_text" bson:"body_text"`
	Snippet     string    `gorm:"column:snippet" bson:"snippet"`
	Labels      string    `gorm:"column:labels" bson:"labels"` // Comma separated provider labels
	IsRead      bool      `gorm:"column:is_read" bson:"is_read"`
	IsImportant bool      `gorm:"column:is_important" bson:"is_important"`
	EmailType   string    `gorm:"column:email_type" bson:"email_type"`
	ReceivedAt  time.Time `gorm:"column:received_at;index" bson:"received_at"`
	CreatedAt   time.Time `gorm:"column:created_at" bson:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" bson:"updated_at"`
}

// TableName specifies the table name for GORM
func (Email) TableName() string {
	return "emails"
}

// EmailAttachment holds attachment metadata and, for small attachments, the bytes.
type EmailAttachment struct {
	ID                   string    `gorm:"column:id;primaryKey" bson:"_id"`
	EmailID              string    `gorm:"column:email_id;index" bson:"email_id"`
	ProviderAttachmentID string    `gorm:"column:provider_attachment_id" bson:"provider_attachment_id"`
	Filename             string    `gorm:"column:filename" bson:"filename"`
	MimeType             string    `gorm:"column:mime_type" bson:"mime_type"`
	SizeBytes            int64     `gorm:"column:size_bytes" bson:"size_bytes"`
	ContentID            string    `gorm:"column:content_id" bson:"content_id"`
	IsInline             bool      `gorm:"column:is_inline" bson:"is_inline"`
	Data                 []byte    `gorm:"column:data" bson:"data,omitempty" json:"-"`
	CreatedAt            time.Time `gorm:"column:created_at" bson:"created_at"`
}

// TableName specifies the table name for GORM
func (EmailAttachment) TableName() string {
	return "email_attachments"
}

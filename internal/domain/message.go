package domain

import "time"

// Message source tags.
const (
	SourcePanel    = "panel"
	SourceWhatsapp = "whatsapp"
)

// Message content types.
const (
	MsgTypeText     = "text"
	MsgTypeImage    = "image"
	MsgTypeVideo    = "video"
	MsgTypeAudio    = "audio"
	MsgTypeDocument = "document"
)

// Delivery statuses.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusReceived  = "received"
	StatusFailed    = "failed"
)

// WaMessage is one network message. WaMessageId is the network-assigned
// identifier and is globally unique (a network-layer guarantee, relied on
// but not enforced here). Rows are immutable after creation in this core;
// delivery status updates come from the webhook collaborator.
type WaMessage struct {
	ID                 int64     `json:"id,string" gorm:"primaryKey"`
	DeviceId           string    `json:"device_id" gorm:"size:64;index"`
	ChatId             int64     `json:"chat_id,string" gorm:"index"`
	WaMessageId        string    `json:"wa_message_id" gorm:"size:192;uniqueIndex"`
	ContextWaMessageId string    `json:"context_wa_message_id" gorm:"size:192"` // resolved reply target, empty if none
	FromMe             bool      `json:"from_me"`
	Source             string    `json:"source"`   // panel or whatsapp
	MsgType            string    `json:"msg_type"` // text/image/video/audio/document
	Text               string    `json:"text"`
	MediaPath          string    `json:"media_path"`
	Timestamp          time.Time `json:"timestamp" gorm:"index"`
	Status             string    `json:"status"`
	RawJson            string    `json:"-" gorm:"type:text"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (WaMessage) TableName() string {
	return "wa_message"
}

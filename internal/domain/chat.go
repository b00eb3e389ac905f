package domain

import "time"

// WaChat is a conversation thread, unique per (device, remote chat id).
// CustomName is operator-assigned and sticky: network name updates never
// overwrite it.
type WaChat struct {
	ID              int64     `json:"id,string" gorm:"primaryKey"`
	DeviceId        string    `json:"device_id" gorm:"size:64;uniqueIndex:idx_wa_chat_device_remote"`
	WaChatId        string    `json:"wa_chat_id" gorm:"size:128;uniqueIndex:idx_wa_chat_device_remote"`
	Name            string    `json:"name"`        // network-reported
	CustomName      string    `json:"custom_name"` // operator-set, sticky
	IsGroup         bool      `json:"is_group"`
	UnreadCount     int       `json:"unread_count"`
	LastMessageAt   time.Time `json:"last_message_at" gorm:"index"`
	ProfilePhotoUrl string    `json:"profile_photo_url"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (WaChat) TableName() string {
	return "wa_chat"
}

package domain

import "time"

// MsgTemplate is a canned reply with an optional slash shortcut.
type MsgTemplate struct {
	ID         int64     `json:"id,string" gorm:"primaryKey"`
	Name       string    `json:"name" form:"name"`
	Content    string    `json:"content" form:"content" gorm:"type:text"`
	Category   string    `json:"category" form:"category" gorm:"index"`
	Shortcut   string    `json:"shortcut" form:"shortcut" gorm:"index"`
	UsageCount int64     `json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (MsgTemplate) TableName() string {
	return "msg_template"
}

// ChatLabel is an operator-defined tag for chats.
type ChatLabel struct {
	ID        int64     `json:"id,string" gorm:"primaryKey"`
	Name      string    `json:"name" form:"name" gorm:"index"`
	Color     string    `json:"color" form:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ChatLabel) TableName() string {
	return "chat_label"
}

// ChatLabelLink assigns a label to a chat of a device.
type ChatLabelLink struct {
	ID        int64     `json:"id,string" gorm:"primaryKey"`
	LabelId   int64     `json:"label_id,string" gorm:"uniqueIndex:idx_chat_label_link"`
	DeviceId  string    `json:"device_id" gorm:"size:64;uniqueIndex:idx_chat_label_link"`
	WaChatId  string    `json:"wa_chat_id" gorm:"size:128;uniqueIndex:idx_chat_label_link"`
	CreatedAt time.Time `json:"created_at"`
}

func (ChatLabelLink) TableName() string {
	return "chat_label_link"
}

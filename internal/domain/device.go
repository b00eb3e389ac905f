package domain

import "time"

// Provider variants. A device is bound to exactly one backend.
const (
	VariantCloud   = "CLOUD"
	VariantSession = "SESSION"
)

// WaDevice is one managed WhatsApp identity. The id is operator-assigned
// and referenced by every chat and message row. The core treats this
// table as read-only; device management writes it.
type WaDevice struct {
	ID                  string    `json:"id" gorm:"primaryKey;size:64"`
	Name                string    `json:"name" form:"name"`
	Variant             string    `json:"variant" form:"variant" gorm:"index"` // CLOUD or SESSION
	CloudPhoneNumberId  string    `json:"cloud_phone_number_id" form:"cloud_phone_number_id" gorm:"index"`
	CloudAccessTokenEnc string    `json:"-"`      // AES-GCM sealed, base64
	Jid                 string    `json:"jid"`    // populated after pairing (session variant)
	Status              string    `json:"status"` // e.g., created, connected, stopped
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (WaDevice) TableName() string {
	return "wa_device"
}

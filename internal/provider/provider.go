package provider

import (
	"context"
	"errors"
	"time"

	"github.com/nmoller/wapanel/internal/domain"
	"gorm.io/gorm"
)

// GroupAction selects one of the four participant mutations behind
// UpdateGroupParticipants. Callers never see the four separately.
type GroupAction string

const (
	GroupActionAdd     GroupAction = "add"
	GroupActionRemove  GroupAction = "remove"
	GroupActionPromote GroupAction = "promote"
	GroupActionDemote  GroupAction = "demote"
)

// GroupSuffix marks a remote chat id as a group conversation.
const GroupSuffix = "@g.us"

// UserSuffix is the remote domain of direct conversations.
const UserSuffix = "@s.whatsapp.net"

type SendTextArgs struct {
	DeviceId        string
	ChatId          string
	Text            string
	QuotedMessageId string
}

type SendMediaArgs struct {
	DeviceId        string
	ChatId          string
	Data            []byte
	MimeType        string
	Caption         string
	IsVoiceNote     bool
	QuotedMessageId string
}

// SendResult is the backend-shaped outcome of a send.
type SendResult struct {
	MessageId string `json:"message_id"`
}

type CleanResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ChatSummary struct {
	Id                string     `json:"id"`
	Name              string     `json:"name"`
	OriginalName      string     `json:"original_name"`
	CustomName        string     `json:"custom_name"`
	LastMessageTime   int64      `json:"last_message_time"`
	UnreadCount       int        `json:"unread_count"`
	IsGroup           bool       `json:"is_group"`
	ProfilePhotoUrl   string     `json:"profile_photo_url"`
	LastMessage       string     `json:"last_message"`
	LastMessageType   string     `json:"last_message_type"`
	LastMessageFromMe bool       `json:"last_message_from_me"`
	LastMessageMedia  *MediaHint `json:"last_message_media"`
}

type MediaHint struct {
	MimeType string `json:"mime_type,omitempty"`
	Url      string `json:"url,omitempty"`
}

type QuotedRef struct {
	Id   string `json:"id"`
	Text string `json:"text,omitempty"`
}

type MessageView struct {
	Id            string     `json:"id"`
	Text          string     `json:"text"`
	FromMe        bool       `json:"from_me"`
	Timestamp     int64      `json:"timestamp"`
	Source        string     `json:"source"`
	Media         *MediaHint `json:"media"`
	SenderName    string     `json:"sender_name,omitempty"`
	QuotedMessage *QuotedRef `json:"quoted_message"`
}

type SearchOptions struct {
	ChatId string
	Limit  int
	FromMe *bool
}

type SearchHit struct {
	Id             string `json:"id"`
	ChatId         string `json:"chat_id"`
	ChatName       string `json:"chat_name"`
	Text           string `json:"text"`
	FromMe         bool   `json:"from_me"`
	Timestamp      int64  `json:"timestamp"`
	MatchHighlight string `json:"match_highlight"`
}

type GroupParticipant struct {
	Id      string `json:"id"`
	IsAdmin bool   `json:"is_admin"`
}

type GroupInfo struct {
	Id           string             `json:"id"`
	Subject      string             `json:"subject"`
	Description  string             `json:"description"`
	Participants []GroupParticipant `json:"participants,omitempty"`
}

// Provider is the uniform capability contract implemented once per
// backend variant. Every operation takes the device id and either
// succeeds with a backend-shaped result or fails with a *ProviderError;
// operations a variant cannot serve fail fast with NOT_SUPPORTED.
type Provider interface {
	Variant() string

	InitDevice(ctx context.Context, deviceId string, mode string) error
	RequestPairingCode(ctx context.Context, deviceId string, phoneNumber string) (string, error)
	StopDevice(ctx context.Context, deviceId string) error
	DisconnectAndClean(ctx context.Context, deviceId string) (*CleanResult, error)

	SendText(ctx context.Context, args SendTextArgs) (*SendResult, error)
	SendMedia(ctx context.Context, args SendMediaArgs) (*SendResult, error)

	GetChats(ctx context.Context, deviceId string) ([]ChatSummary, error)
	GetChatMessages(ctx context.Context, deviceId string, chatId string, limit int) ([]MessageView, error)
	SearchMessages(ctx context.Context, deviceId string, query string, opts SearchOptions) ([]SearchHit, error)

	CreateGroup(ctx context.Context, deviceId string, name string, participants []string) (*GroupInfo, error)
	GetGroups(ctx context.Context, deviceId string) ([]GroupInfo, error)
	GetGroupMetadata(ctx context.Context, deviceId string, groupId string) (*GroupInfo, error)
	UpdateGroupParticipants(ctx context.Context, deviceId string, groupId string, participants []string, action GroupAction) error
	UpdateGroupSubject(ctx context.Context, deviceId string, groupId string, subject string) error
	UpdateGroupDescription(ctx context.Context, deviceId string, groupId string, description string) error
	LeaveGroup(ctx context.Context, deviceId string, groupId string) error

	ImportChatProfilePhoto(ctx context.Context, deviceId string, chatId string) (string, error)
}

// Registry resolves the provider variant for a device. The store handle
// is injected at construction; there is no package-level singleton.
type Registry struct {
	db      *gorm.DB
	cloud   *CloudProvider
	session *SessionProvider
}

func NewRegistry(db *gorm.DB, cloud *CloudProvider, session *SessionProvider) *Registry {
	return &Registry{db: db, cloud: cloud, session: session}
}

// ForDevice returns the provider serving the device's configured variant.
func (r *Registry) ForDevice(ctx context.Context, deviceId string) (Provider, error) {
	var dev domain.WaDevice
	err := r.db.WithContext(ctx).Select("id", "variant").Where("id = ?", deviceId).First(&dev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotConfigured("unknown device: " + deviceId)
	}
	if err != nil {
		return nil, err
	}
	switch dev.Variant {
	case domain.VariantCloud:
		if r.cloud == nil {
			return nil, ErrNotConfigured("cloud backend not initialized")
		}
		return r.cloud, nil
	case domain.VariantSession:
		if r.session == nil {
			return nil, ErrNotConfigured("session engine not attached")
		}
		return r.session, nil
	default:
		return nil, ErrNotConfigured("device has no backend variant assigned")
	}
}

// clampLimit bounds page sizes for history reads.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

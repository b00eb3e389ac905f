package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nmoller/wapanel/internal/domain"
	"github.com/nmoller/wapanel/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatRepository handles chat materialization for the stateless variant.
type ChatRepository interface {
	// UpsertOnActivity creates or refreshes the chat for (deviceId,
	// waChatId) and returns its durable id. The operator custom name is
	// sticky: networkName only lands when no custom name is set.
	UpsertOnActivity(ctx context.Context, deviceId, waChatId, networkName string, at time.Time) (int64, error)

	// GetByRemoteId retrieves a chat by its composite identity.
	GetByRemoteId(ctx context.Context, deviceId, waChatId string) (*domain.WaChat, error)

	// ListActive retrieves chats with activity at or after cutoff,
	// newest first.
	ListActive(ctx context.Context, deviceId string, cutoff time.Time) ([]*domain.WaChat, error)

	// SetCustomName sets or clears the operator display name.
	SetCustomName(ctx context.Context, deviceId, waChatId, customName string) error
}

// MessageRecord is the input of MessageRepository.Record.
type MessageRecord struct {
	DeviceId           string
	ChatDbId           int64
	WaChatId           string
	WaMessageId        string
	ContextWaMessageId string // reply target network id, resolved best-effort
	FromMe             bool
	Source             string
	MsgType            string
	Text               string
	MediaPath          string
	MediaMimeType      string
	Timestamp          time.Time
	Status             string
	RawJson            string
	SenderName         string
}

// MessageRepository handles idempotent message materialization and the
// live-update emission that follows a first write.
type MessageRepository interface {
	// Record upserts by the network message id: create-if-absent, no-op
	// on conflict. Returns whether a row was created; the live event is
	// emitted only on that path, so retried deliveries stay silent.
	Record(ctx context.Context, rec MessageRecord) (bool, error)

	// ResolveWaMessageId reports whether a network message id exists in
	// the store (reply-target resolution).
	ResolveWaMessageId(ctx context.Context, waMessageId string) (bool, error)

	// LastInChat returns the newest message of a chat at or after
	// cutoff, or nil.
	LastInChat(ctx context.Context, chatDbId int64, cutoff time.Time) (*domain.WaMessage, error)

	// ListByChat returns chat history at or after cutoff, timestamp
	// ascending, capped at limit.
	ListByChat(ctx context.Context, deviceId string, chatDbId int64, cutoff time.Time, limit int) ([]*domain.WaMessage, error)

	// Search returns text matches at or after cutoff, newest first.
	Search(ctx context.Context, deviceId, query string, opts SearchOptions, cutoff time.Time) ([]*domain.WaMessage, error)

	// UpdateStatus applies a delivery-status transition reported by the
	// network. Message rows are otherwise immutable.
	UpdateStatus(ctx context.Context, waMessageId, status string) error
}

// GormChatRepository is the GORM implementation of ChatRepository.
type GormChatRepository struct {
	db *gorm.DB
}

func NewGormChatRepository(db *gorm.DB) *GormChatRepository {
	return &GormChatRepository{db: db}
}

func (r *GormChatRepository) UpsertOnActivity(ctx context.Context, deviceId, waChatId, networkName string, at time.Time) (int64, error) {
	assign := map[string]interface{}{
		"last_message_at": at,
		"updated_at":      time.Now(),
	}
	var existing domain.WaChat
	err := r.db.WithContext(ctx).
		Select("id", "custom_name").
		Where("device_id = ? AND wa_chat_id = ?", deviceId, waChatId).
		First(&existing).Error
	found := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	if networkName != "" && (!found || existing.CustomName == "") {
		assign["name"] = networkName
	}
	chat := &domain.WaChat{
		ID:            common.UUIDint64(),
		DeviceId:      deviceId,
		WaChatId:      waChatId,
		IsGroup:       strings.HasSuffix(waChatId, GroupSuffix),
		UnreadCount:   0,
		LastMessageAt: at,
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}, {Name: "wa_chat_id"}},
		DoUpdates: clause.Assignments(assign),
	}).Create(chat).Error
	if err != nil {
		return 0, err
	}
	if found {
		return existing.ID, nil
	}
	// a concurrent writer may have won the insert; read back the row id
	var row domain.WaChat
	err = r.db.WithContext(ctx).
		Select("id").
		Where("device_id = ? AND wa_chat_id = ?", deviceId, waChatId).
		First(&row).Error
	if err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (r *GormChatRepository) GetByRemoteId(ctx context.Context, deviceId, waChatId string) (*domain.WaChat, error) {
	var chat domain.WaChat
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND wa_chat_id = ?", deviceId, waChatId).
		First(&chat).Error
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *GormChatRepository) ListActive(ctx context.Context, deviceId string, cutoff time.Time) ([]*domain.WaChat, error) {
	var chats []*domain.WaChat
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND last_message_at >= ?", deviceId, cutoff).
		Order("last_message_at DESC").
		Find(&chats).Error
	return chats, err
}

func (r *GormChatRepository) SetCustomName(ctx context.Context, deviceId, waChatId, customName string) error {
	return r.db.WithContext(ctx).
		Model(&domain.WaChat{}).
		Where("device_id = ? AND wa_chat_id = ?", deviceId, waChatId).
		Update("custom_name", customName).Error
}

// GormMessageRepository is the GORM implementation of MessageRepository.
type GormMessageRepository struct {
	db  *gorm.DB
	bus EventSink
}

func NewGormMessageRepository(db *gorm.DB, bus EventSink) *GormMessageRepository {
	return &GormMessageRepository{db: db, bus: bus}
}

func (r *GormMessageRepository) Record(ctx context.Context, rec MessageRecord) (bool, error) {
	contextId := rec.ContextWaMessageId
	if contextId != "" {
		ok, err := r.ResolveWaMessageId(ctx, contextId)
		if err != nil {
			return false, err
		}
		if !ok {
			// reply linkage is best-effort, never fail the record
			contextId = ""
		}
	}
	msg := &domain.WaMessage{
		ID:                 common.UUIDint64(),
		DeviceId:           rec.DeviceId,
		ChatId:             rec.ChatDbId,
		WaMessageId:        rec.WaMessageId,
		ContextWaMessageId: contextId,
		FromMe:             rec.FromMe,
		Source:             rec.Source,
		MsgType:            rec.MsgType,
		Text:               rec.Text,
		MediaPath:          rec.MediaPath,
		Timestamp:          rec.Timestamp,
		Status:             rec.Status,
		RawJson:            rec.RawJson,
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wa_message_id"}},
		DoNothing: true,
	}).Create(msg)
	if result.Error != nil {
		return false, result.Error
	}
	created := result.RowsAffected > 0
	if created {
		r.emitNew(rec)
	}
	return created, nil
}

func (r *GormMessageRepository) emitNew(rec MessageRecord) {
	if r.bus == nil {
		return
	}
	var media *MediaHint
	if rec.MediaPath != "" || rec.MediaMimeType != "" {
		media = &MediaHint{MimeType: rec.MediaMimeType, Url: rec.MediaPath}
	}
	r.bus.Publish(TopicMessageNew, MessageEvent{
		DeviceId: rec.DeviceId,
		ChatId:   rec.WaChatId,
		Msg: MessagePayload{
			Id:         rec.WaMessageId,
			Text:       rec.Text,
			FromMe:     rec.FromMe,
			Timestamp:  toMillis(rec.Timestamp),
			Media:      media,
			Location:   nil,
			Source:     rec.Source,
			SenderName: rec.SenderName,
		},
	})
	zap.L().Debug("message event emitted",
		zap.String("device_id", rec.DeviceId),
		zap.String("wa_message_id", rec.WaMessageId))
}

func (r *GormMessageRepository) ResolveWaMessageId(ctx context.Context, waMessageId string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.WaMessage{}).
		Where("wa_message_id = ?", waMessageId).
		Count(&count).Error
	return count > 0, err
}

func (r *GormMessageRepository) LastInChat(ctx context.Context, chatDbId int64, cutoff time.Time) (*domain.WaMessage, error) {
	var msg domain.WaMessage
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND timestamp >= ?", chatDbId, cutoff).
		Order("timestamp DESC").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *GormMessageRepository) ListByChat(ctx context.Context, deviceId string, chatDbId int64, cutoff time.Time, limit int) ([]*domain.WaMessage, error) {
	var msgs []*domain.WaMessage
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND chat_id = ? AND timestamp >= ?", deviceId, chatDbId, cutoff).
		Order("timestamp ASC").
		Limit(clampLimit(limit)).
		Find(&msgs).Error
	return msgs, err
}

func (r *GormMessageRepository) Search(ctx context.Context, deviceId, query string, opts SearchOptions, cutoff time.Time) ([]*domain.WaMessage, error) {
	q := r.db.WithContext(ctx).
		Where("device_id = ? AND timestamp >= ?", deviceId, cutoff).
		Where("text LIKE ?", "%"+query+"%")
	if opts.ChatId != "" {
		var chat domain.WaChat
		err := r.db.WithContext(ctx).
			Select("id").
			Where("device_id = ? AND wa_chat_id = ?", deviceId, opts.ChatId).
			First(&chat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		q = q.Where("chat_id = ?", chat.ID)
	}
	if opts.FromMe != nil {
		q = q.Where("from_me = ?", *opts.FromMe)
	}
	var msgs []*domain.WaMessage
	err := q.Order("timestamp DESC").Limit(clampLimit(opts.Limit)).Find(&msgs).Error
	return msgs, err
}

func (r *GormMessageRepository) UpdateStatus(ctx context.Context, waMessageId, status string) error {
	return r.db.WithContext(ctx).
		Model(&domain.WaMessage{}).
		Where("wa_message_id = ?", waMessageId).
		Update("status", status).Error
}

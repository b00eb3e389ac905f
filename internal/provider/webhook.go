package provider

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/nmoller/wapanel/internal/domain"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Cloud webhook envelope, trimmed to the fields the panel materializes.
type webhookEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value webhookValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookValue struct {
	Metadata struct {
		PhoneNumberId string `json:"phone_number_id"`
	} `json:"metadata"`
	Contacts []struct {
		WaId    string `json:"wa_id"`
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
	} `json:"contacts"`
	Messages []webhookMessage `json:"messages"`
	Statuses []struct {
		Id     string `json:"id"`
		Status string `json:"status"`
	} `json:"statuses"`
}

type webhookMessage struct {
	From      string `json:"from"`
	Id        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      struct {
		Body string `json:"body"`
	} `json:"text"`
	Context struct {
		Id string `json:"id"`
	} `json:"context"`
	Image    *webhookMedia `json:"image"`
	Video    *webhookMedia `json:"video"`
	Audio    *webhookMedia `json:"audio"`
	Document *webhookMedia `json:"document"`
}

type webhookMedia struct {
	Id       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
}

// WebhookProcessor ingests cloud webhook deliveries. Envelopes fan out
// to a bounded worker pool; a malformed or unattributable item is logged
// and skipped so the remote side always gets its ACK and keeps
// delivering. Redelivered messages dedupe on the network message id.
type WebhookProcessor struct {
	db       *gorm.DB
	chats    ChatRepository
	messages MessageRepository
	pool     *ants.Pool
}

func NewWebhookProcessor(db *gorm.DB, bus EventSink, workers int) (*WebhookProcessor, error) {
	if workers <= 0 {
		workers = 8
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	return &WebhookProcessor{
		db:       db,
		chats:    NewGormChatRepository(db),
		messages: NewGormMessageRepository(db, bus),
		pool:     pool,
	}, nil
}

func (p *WebhookProcessor) Release() {
	p.pool.Release()
}

// Process parses one delivery and applies every change it carries. It
// returns only on transport-level garbage; item-level failures never
// propagate.
func (p *WebhookProcessor) Process(ctx context.Context, body []byte) error {
	var envelope webhookEnvelope
	if err := jsoniter.Unmarshal(body, &envelope); err != nil {
		return ErrBadRequest("malformed webhook payload")
	}
	wg := &sync.WaitGroup{}
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			value := change.Value
			wg.Add(1)
			if err := p.pool.Submit(func() {
				defer wg.Done()
				p.applyChange(ctx, value)
			}); err != nil {
				wg.Done()
				zap.L().Error("webhook pool submit failed", zap.Error(err))
			}
		}
	}
	wg.Wait()
	return nil
}

func (p *WebhookProcessor) applyChange(ctx context.Context, value webhookValue) {
	phoneNumberId := strings.TrimSpace(value.Metadata.PhoneNumberId)
	if phoneNumberId == "" {
		return
	}
	deviceId, err := p.deviceFor(ctx, phoneNumberId)
	if err != nil {
		zap.L().Warn("webhook for unknown phone number id",
			zap.String("phone_number_id", phoneNumberId), zap.Error(err))
		return
	}
	names := map[string]string{}
	for _, c := range value.Contacts {
		if c.WaId != "" && c.Profile.Name != "" {
			names[c.WaId] = c.Profile.Name
		}
	}
	for _, msg := range value.Messages {
		if err := p.applyMessage(ctx, deviceId, msg, names[msg.From]); err != nil {
			zap.L().Error("webhook message ingest failed",
				zap.String("device_id", deviceId),
				zap.String("wa_message_id", msg.Id),
				zap.Error(err))
		}
	}
	for _, st := range value.Statuses {
		status := mapDeliveryStatus(st.Status)
		if st.Id == "" || status == "" {
			continue
		}
		if err := p.messages.UpdateStatus(ctx, st.Id, status); err != nil {
			zap.L().Error("webhook status update failed",
				zap.String("wa_message_id", st.Id), zap.Error(err))
		}
	}
}

func (p *WebhookProcessor) deviceFor(ctx context.Context, phoneNumberId string) (string, error) {
	var dev domain.WaDevice
	err := p.db.WithContext(ctx).
		Select("id").
		Where("variant = ? AND cloud_phone_number_id = ?", domain.VariantCloud, phoneNumberId).
		First(&dev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotConfigured("no cloud device bound to phone number id")
	}
	if err != nil {
		return "", err
	}
	return dev.ID, nil
}

func (p *WebhookProcessor) applyMessage(ctx context.Context, deviceId string, msg webhookMessage, senderName string) error {
	if msg.Id == "" || msg.From == "" {
		return ErrBadRequest("webhook message without id or sender")
	}
	ts := time.Unix(cast.ToInt64(msg.Timestamp), 0)
	if ts.IsZero() || ts.Unix() <= 0 {
		ts = time.Now()
	}
	waChatId := msg.From + UserSuffix
	chatDbId, err := p.chats.UpsertOnActivity(ctx, deviceId, waChatId, senderName, ts)
	if err != nil {
		return err
	}

	msgType, text, media := classifyWebhookMessage(msg)
	raw, _ := jsoniter.MarshalToString(msg)
	rec := MessageRecord{
		DeviceId:           deviceId,
		ChatDbId:           chatDbId,
		WaChatId:           waChatId,
		WaMessageId:        msg.Id,
		ContextWaMessageId: msg.Context.Id,
		FromMe:             false,
		Source:             domain.SourceWhatsapp,
		MsgType:            msgType,
		Text:               text,
		Timestamp:          ts,
		Status:             domain.StatusReceived,
		RawJson:            raw,
		SenderName:         senderName,
	}
	if media != nil {
		rec.MediaMimeType = media.MimeType
	}
	_, err = p.messages.Record(ctx, rec)
	return err
}

func classifyWebhookMessage(msg webhookMessage) (msgType, text string, media *webhookMedia) {
	switch msg.Type {
	case "image":
		return domain.MsgTypeImage, captionOf(msg.Image), msg.Image
	case "video":
		return domain.MsgTypeVideo, captionOf(msg.Video), msg.Video
	case "audio":
		return domain.MsgTypeAudio, "", msg.Audio
	case "document":
		return domain.MsgTypeDocument, captionOf(msg.Document), msg.Document
	default:
		return domain.MsgTypeText, msg.Text.Body, nil
	}
}

func captionOf(m *webhookMedia) string {
	if m == nil {
		return ""
	}
	return m.Caption
}

func mapDeliveryStatus(status string) string {
	switch status {
	case "sent":
		return domain.StatusSent
	case "delivered":
		return domain.StatusDelivered
	case "read":
		return domain.StatusRead
	case "failed":
		return domain.StatusFailed
	default:
		return ""
	}
}

package provider

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	jsoniter "github.com/json-iterator/go"
	"github.com/nmoller/wapanel/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const msgNoGroups = "cloud API does not support groups in this panel"

// GraphClient is the transport adapter of the stateless variant: bearer
// authenticated POSTs against the remote graph API.
type GraphClient struct {
	endpoint string
	version  string
}

func NewGraphClient(endpoint, version string) *GraphClient {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		endpoint = "https://graph.facebook.com"
	}
	version = strings.TrimSpace(version)
	if version == "" {
		version = "v21.0"
	}
	return &GraphClient{endpoint: endpoint, version: version}
}

type graphMessageRef struct {
	Id string `json:"id"`
}

type graphResponse struct {
	Id       string            `json:"id"`
	Messages []graphMessageRef `json:"messages"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func decodeGraphBody(body []byte) *graphResponse {
	resp := &graphResponse{}
	if len(body) > 0 {
		_ = jsoniter.Unmarshal(body, resp)
	}
	return resp
}

// graphError wraps a non-2xx response: the remote error message when the
// body parses, the raw text otherwise, or a generic HTTP status fallback.
func graphError(code int, body []byte) *ProviderError {
	if resp := decodeGraphBody(body); resp.Error != nil && resp.Error.Message != "" {
		return ErrUpstream(resp.Error.Message)
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return ErrUpstream(text)
	}
	return ErrUpstream(fmt.Sprintf("HTTP %d", code))
}

func (g *GraphClient) url(phoneNumberId, resource string) string {
	return fmt.Sprintf("%s/%s/%s/%s", g.endpoint, g.version, phoneNumberId, resource)
}

// PostMessage sends a message payload and returns the assigned id.
func (g *GraphClient) PostMessage(ctx context.Context, cfg *CloudConfig, payload map[string]interface{}) (string, error) {
	var body []byte
	var code int
	err := gout.POST(g.url(cfg.PhoneNumberId, "messages")).
		WithContext(ctx).
		SetHeader(gout.H{"authorization": "Bearer " + cfg.AccessToken}).
		SetJSON(payload).
		Code(&code).
		BindBody(&body).
		Do()
	if err != nil {
		return "", ErrUpstream(err.Error())
	}
	if code < 200 || code >= 300 {
		return "", graphError(code, body)
	}
	resp := decodeGraphBody(body)
	if len(resp.Messages) == 0 || strings.TrimSpace(resp.Messages[0].Id) == "" {
		return "", ErrUpstream("could not send message")
	}
	return strings.TrimSpace(resp.Messages[0].Id), nil
}

// UploadMedia uploads a binary as multipart form data and returns the
// media handle referenced by a later message payload.
func (g *GraphClient) UploadMedia(ctx context.Context, cfg *CloudConfig, data []byte, mimeType string) (string, error) {
	buf := &bytes.Buffer{}
	form := multipart.NewWriter(buf)
	if err := form.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", err
	}
	if err := form.WriteField("type", mimeType); err != nil {
		return "", err
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="file"`)
	header.Set("Content-Type", mimeType)
	part, err := form.CreatePart(header)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	var body []byte
	var code int
	err = gout.POST(g.url(cfg.PhoneNumberId, "media")).
		WithContext(ctx).
		SetHeader(gout.H{
			"authorization": "Bearer " + cfg.AccessToken,
			"content-type":  form.FormDataContentType(),
		}).
		SetBody(buf.Bytes()).
		Code(&code).
		BindBody(&body).
		Do()
	if err != nil {
		return "", ErrUpstream(err.Error())
	}
	if code < 200 || code >= 300 {
		return "", graphError(code, body)
	}
	resp := decodeGraphBody(body)
	if strings.TrimSpace(resp.Id) == "" {
		return "", ErrUpstream("could not upload media")
	}
	return strings.TrimSpace(resp.Id), nil
}

// CloudOptions configures the stateless variant.
type CloudOptions struct {
	GraphEndpoint string
	GraphVersion  string
	RetentionDays int
	EncryptionKey string
}

// CloudProvider is the stateless backend variant. It holds no live
// session: sends go straight to the graph API and the local store is the
// only source of truth for history, bounded by the retention policy.
type CloudProvider struct {
	db        *gorm.DB
	config    *cloudConfigResolver
	graph     *GraphClient
	chats     ChatRepository
	messages  MessageRepository
	retention RetentionPolicy
}

func NewCloudProvider(db *gorm.DB, bus EventSink, opts CloudOptions) *CloudProvider {
	return &CloudProvider{
		db:        db,
		config:    &cloudConfigResolver{db: db, encryptionKey: opts.EncryptionKey},
		graph:     NewGraphClient(opts.GraphEndpoint, opts.GraphVersion),
		chats:     NewGormChatRepository(db),
		messages:  NewGormMessageRepository(db, bus),
		retention: NewRetentionPolicy(opts.RetentionDays),
	}
}

func (p *CloudProvider) Variant() string {
	return domain.VariantCloud
}

func (p *CloudProvider) InitDevice(ctx context.Context, deviceId string, mode string) error {
	return ErrNotSupported("cloud API does not use QR or pairing to connect")
}

func (p *CloudProvider) RequestPairingCode(ctx context.Context, deviceId string, phoneNumber string) (string, error) {
	return "", ErrNotSupported("cloud API does not support pairing codes")
}

func (p *CloudProvider) StopDevice(ctx context.Context, deviceId string) error {
	return nil
}

func (p *CloudProvider) DisconnectAndClean(ctx context.Context, deviceId string) (*CleanResult, error) {
	return &CleanResult{Success: true, Message: "cloud API keeps no local session to clean"}, nil
}

// cloudRecipient normalizes a chat id to the remote recipient address:
// the local part before the domain separator. Group ids are rejected
// before any network call.
func cloudRecipient(chatId string) (string, error) {
	id := strings.TrimSpace(chatId)
	if id == "" {
		return "", ErrBadRequest("invalid chat id")
	}
	if strings.HasSuffix(id, GroupSuffix) {
		return "", ErrNotSupported(msgNoGroups)
	}
	if idx := strings.Index(id, "@"); idx >= 0 {
		id = id[:idx]
	}
	if id == "" {
		return "", ErrBadRequest("invalid chat id")
	}
	return id, nil
}

// resolveQuoted returns the reply target only when it exists locally;
// unresolvable targets are dropped from the outbound payload.
func (p *CloudProvider) resolveQuoted(ctx context.Context, quotedMessageId string) (string, error) {
	if quotedMessageId == "" {
		return "", nil
	}
	ok, err := p.messages.ResolveWaMessageId(ctx, quotedMessageId)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return quotedMessageId, nil
}

func (p *CloudProvider) SendText(ctx context.Context, args SendTextArgs) (*SendResult, error) {
	cfg, err := p.config.Resolve(ctx, args.DeviceId)
	if err != nil {
		return nil, err
	}
	to, err := cloudRecipient(args.ChatId)
	if err != nil {
		return nil, err
	}
	contextId, err := p.resolveQuoted(ctx, args.QuotedMessageId)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]interface{}{"body": args.Text},
	}
	if contextId != "" {
		payload["context"] = map[string]interface{}{"message_id": contextId}
	}

	msgId, err := p.graph.PostMessage(ctx, cfg, payload)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	waChatId := to + UserSuffix
	chatDbId, err := p.chats.UpsertOnActivity(ctx, args.DeviceId, waChatId, "", now)
	if err != nil {
		return nil, err
	}
	_, err = p.messages.Record(ctx, MessageRecord{
		DeviceId:           args.DeviceId,
		ChatDbId:           chatDbId,
		WaChatId:           waChatId,
		WaMessageId:        msgId,
		ContextWaMessageId: contextId,
		FromMe:             true,
		Source:             domain.SourcePanel,
		MsgType:            domain.MsgTypeText,
		Text:               args.Text,
		Timestamp:          now,
		Status:             domain.StatusSent,
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("cloud text sent",
		zap.String("device_id", args.DeviceId),
		zap.String("wa_chat_id", waChatId),
		zap.String("wa_message_id", msgId))
	return &SendResult{MessageId: msgId}, nil
}

func mediaTypeForMime(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return domain.MsgTypeImage
	case strings.HasPrefix(mimeType, "video/"):
		return domain.MsgTypeVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return domain.MsgTypeAudio
	default:
		return domain.MsgTypeDocument
	}
}

func (p *CloudProvider) SendMedia(ctx context.Context, args SendMediaArgs) (*SendResult, error) {
	cfg, err := p.config.Resolve(ctx, args.DeviceId)
	if err != nil {
		return nil, err
	}
	to, err := cloudRecipient(args.ChatId)
	if err != nil {
		return nil, err
	}
	contextId, err := p.resolveQuoted(ctx, args.QuotedMessageId)
	if err != nil {
		return nil, err
	}

	mimeType := strings.TrimSpace(args.MimeType)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	mediaId, err := p.graph.UploadMedia(ctx, cfg, args.Data, mimeType)
	if err != nil {
		return nil, err
	}

	msgType := mediaTypeForMime(mimeType)
	media := map[string]interface{}{"id": mediaId}
	switch msgType {
	case domain.MsgTypeImage, domain.MsgTypeVideo:
		if args.Caption != "" {
			media["caption"] = args.Caption
		}
	case domain.MsgTypeAudio:
		if args.IsVoiceNote {
			media["voice"] = true
		}
	default:
		if args.Caption != "" {
			media["caption"] = args.Caption
		}
		media["filename"] = "file"
	}
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              msgType,
		msgType:             media,
	}
	if contextId != "" {
		payload["context"] = map[string]interface{}{"message_id": contextId}
	}

	msgId, err := p.graph.PostMessage(ctx, cfg, payload)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	waChatId := to + UserSuffix
	chatDbId, err := p.chats.UpsertOnActivity(ctx, args.DeviceId, waChatId, "", now)
	if err != nil {
		return nil, err
	}
	_, err = p.messages.Record(ctx, MessageRecord{
		DeviceId:           args.DeviceId,
		ChatDbId:           chatDbId,
		WaChatId:           waChatId,
		WaMessageId:        msgId,
		ContextWaMessageId: contextId,
		FromMe:             true,
		Source:             domain.SourcePanel,
		MsgType:            msgType,
		Text:               args.Caption,
		MediaMimeType:      mimeType,
		Timestamp:          now,
		Status:             domain.StatusSent,
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("cloud media sent",
		zap.String("device_id", args.DeviceId),
		zap.String("wa_chat_id", waChatId),
		zap.String("type", msgType),
		zap.String("wa_message_id", msgId))
	return &SendResult{MessageId: msgId}, nil
}

func (p *CloudProvider) GetChats(ctx context.Context, deviceId string) ([]ChatSummary, error) {
	cutoff := p.retention.Cutoff()
	chats, err := p.chats.ListActive(ctx, deviceId, cutoff)
	if err != nil {
		return nil, err
	}
	out := make([]ChatSummary, 0, len(chats))
	for _, c := range chats {
		summary := ChatSummary{
			Id:              c.WaChatId,
			Name:            c.CustomName,
			OriginalName:    c.Name,
			CustomName:      c.CustomName,
			LastMessageTime: toMillis(c.LastMessageAt),
			UnreadCount:     c.UnreadCount,
			IsGroup:         c.IsGroup,
			ProfilePhotoUrl: c.ProfilePhotoUrl,
			LastMessageType: domain.MsgTypeText,
		}
		if summary.Name == "" {
			summary.Name = c.Name
		}
		last, err := p.messages.LastInChat(ctx, c.ID, cutoff)
		if err != nil {
			return nil, err
		}
		if last != nil {
			summary.LastMessage = last.Text
			summary.LastMessageType = last.MsgType
			summary.LastMessageFromMe = last.FromMe
			if last.MediaPath != "" {
				summary.LastMessageMedia = &MediaHint{Url: last.MediaPath}
			}
		}
		out = append(out, summary)
	}
	return out, nil
}

func (p *CloudProvider) GetChatMessages(ctx context.Context, deviceId string, chatId string, limit int) ([]MessageView, error) {
	chat, err := p.chats.GetByRemoteId(ctx, deviceId, chatId)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return []MessageView{}, nil
		}
		return nil, err
	}
	msgs, err := p.messages.ListByChat(ctx, deviceId, chat.ID, p.retention.Cutoff(), limit)
	if err != nil {
		return nil, err
	}
	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		view := MessageView{
			Id:        m.WaMessageId,
			Text:      m.Text,
			FromMe:    m.FromMe,
			Timestamp: toMillis(m.Timestamp),
			Source:    m.Source,
		}
		if view.Source == "" {
			view.Source = domain.SourceWhatsapp
		}
		if m.MediaPath != "" {
			view.Media = &MediaHint{Url: m.MediaPath}
		}
		if m.ContextWaMessageId != "" {
			view.QuotedMessage = &QuotedRef{Id: m.ContextWaMessageId}
		}
		out = append(out, view)
	}
	return out, nil
}

func (p *CloudProvider) SearchMessages(ctx context.Context, deviceId string, query string, opts SearchOptions) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []SearchHit{}, nil
	}
	msgs, err := p.messages.Search(ctx, deviceId, query, opts, p.retention.Cutoff())
	if err != nil {
		return nil, err
	}
	chatNames := map[int64]*domain.WaChat{}
	hits := make([]SearchHit, 0, len(msgs))
	for _, m := range msgs {
		chat, ok := chatNames[m.ChatId]
		if !ok {
			var row domain.WaChat
			if err := p.db.WithContext(ctx).Select("id", "wa_chat_id", "name", "custom_name").First(&row, m.ChatId).Error; err == nil {
				chat = &row
			}
			chatNames[m.ChatId] = chat
		}
		hit := SearchHit{
			Id:             m.WaMessageId,
			Text:           m.Text,
			FromMe:         m.FromMe,
			Timestamp:      toMillis(m.Timestamp),
			MatchHighlight: m.Text,
		}
		if chat != nil {
			hit.ChatId = chat.WaChatId
			hit.ChatName = strings.TrimSpace(chat.CustomName)
			if hit.ChatName == "" {
				hit.ChatName = strings.TrimSpace(chat.Name)
			}
			if hit.ChatName == "" {
				hit.ChatName = strings.SplitN(chat.WaChatId, "@", 2)[0]
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (p *CloudProvider) CreateGroup(ctx context.Context, deviceId string, name string, participants []string) (*GroupInfo, error) {
	return nil, ErrNotSupported(msgNoGroups)
}

func (p *CloudProvider) GetGroups(ctx context.Context, deviceId string) ([]GroupInfo, error) {
	return nil, ErrNotSupported(msgNoGroups)
}

func (p *CloudProvider) GetGroupMetadata(ctx context.Context, deviceId string, groupId string) (*GroupInfo, error) {
	return nil, ErrNotSupported(msgNoGroups)
}

func (p *CloudProvider) UpdateGroupParticipants(ctx context.Context, deviceId string, groupId string, participants []string, action GroupAction) error {
	return ErrNotSupported(msgNoGroups)
}

func (p *CloudProvider) UpdateGroupSubject(ctx context.Context, deviceId string, groupId string, subject string) error {
	return ErrNotSupported(msgNoGroups)
}

func (p *CloudProvider) UpdateGroupDescription(ctx context.Context, deviceId string, groupId string, description string) error {
	return ErrNotSupported(msgNoGroups)
}

func (p *CloudProvider) LeaveGroup(ctx context.Context, deviceId string, groupId string) error {
	return ErrNotSupported(msgNoGroups)
}

func (p *CloudProvider) ImportChatProfilePhoto(ctx context.Context, deviceId string, chatId string) (string, error) {
	return "", ErrNotSupported("cloud API does not support profile photo import")
}

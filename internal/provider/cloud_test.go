package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nmoller/wapanel/internal/domain"
	"github.com/nmoller/wapanel/pkg/common"
	"gorm.io/gorm"
)

const testEncryptionKey = "unit-test-encryption-key"

func seedCloudDevice(t *testing.T, db *gorm.DB, id, phoneNumberId, token string) {
	t.Helper()
	sealed, err := common.EncryptSecret(testEncryptionKey, token)
	if err != nil {
		t.Fatalf("seal token: %v", err)
	}
	err = db.Create(&domain.WaDevice{
		ID:                  id,
		Name:                "test device",
		Variant:             domain.VariantCloud,
		CloudPhoneNumberId:  phoneNumberId,
		CloudAccessTokenEnc: sealed,
		Status:              "created",
	}).Error
	if err != nil {
		t.Fatalf("seed device: %v", err)
	}
}

func newGraphServer(t *testing.T, requests *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v21.0/PHONE1/messages", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		if r.Header.Get("Authorization") != "Bearer token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"bad token"}}`))
			return
		}
		w.Write([]byte(`{"messages":[{"id":"wamid.ABC"}]}`))
	})
	mux.HandleFunc("/v21.0/PHONE1/media", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		w.Write([]byte(`{"id":"MEDIA1"}`))
	})
	return httptest.NewServer(mux)
}

func newCloudForTest(t *testing.T, db *gorm.DB, bus EventSink, endpoint string) *CloudProvider {
	t.Helper()
	return NewCloudProvider(db, bus, CloudOptions{
		GraphEndpoint: endpoint,
		GraphVersion:  "v21.0",
		RetentionDays: 7,
		EncryptionKey: testEncryptionKey,
	})
}

func kindOf(t *testing.T, err error) ErrorKind {
	t.Helper()
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %T: %v", err, err)
	}
	return pe.Kind
}

func TestCloudSendTextEndToEnd(t *testing.T) {
	db := newTestDB(t)
	seedCloudDevice(t, db, "dev1", "PHONE1", "token-1")
	var requests int32
	srv := newGraphServer(t, &requests)
	defer srv.Close()
	bus := &captureBus{}
	cloud := newCloudForTest(t, db, bus, srv.URL)

	result, err := cloud.SendText(context.Background(), SendTextArgs{
		DeviceId: "dev1",
		ChatId:   "598955555@s.whatsapp.net",
		Text:     "Hola",
	})
	if err != nil {
		t.Fatalf("send text: %v", err)
	}
	if result.MessageId != "wamid.ABC" {
		t.Fatalf("unexpected message id %q", result.MessageId)
	}

	var chat domain.WaChat
	if err := db.Where("device_id = ? AND wa_chat_id = ?", "dev1", "598955555@s.whatsapp.net").First(&chat).Error; err != nil {
		t.Fatalf("chat not materialized: %v", err)
	}
	var msg domain.WaMessage
	if err := db.Where("wa_message_id = ?", "wamid.ABC").First(&msg).Error; err != nil {
		t.Fatalf("message not materialized: %v", err)
	}
	if !msg.FromMe || msg.Source != domain.SourcePanel || msg.Status != domain.StatusSent {
		t.Fatalf("unexpected message attributes: fromMe=%v source=%q status=%q", msg.FromMe, msg.Source, msg.Status)
	}
	if msg.ChatId != chat.ID {
		t.Fatalf("message not linked to chat row")
	}
	if len(bus.events) != 1 {
		t.Fatalf("expected 1 live event, got %d", len(bus.events))
	}
}

func TestCloudSendTextRejectsGroupsBeforeNetwork(t *testing.T) {
	db := newTestDB(t)
	seedCloudDevice(t, db, "dev1", "PHONE1", "token-1")
	var requests int32
	srv := newGraphServer(t, &requests)
	defer srv.Close()
	cloud := newCloudForTest(t, db, nil, srv.URL)

	_, err := cloud.SendText(context.Background(), SendTextArgs{
		DeviceId: "dev1",
		ChatId:   "12036304@g.us",
		Text:     "hello group",
	})
	if kindOf(t, err) != KindNotSupported {
		t.Fatalf("expected NOT_SUPPORTED, got %v", err)
	}
	if atomic.LoadInt32(&requests) != 0 {
		t.Fatal("group send must fail before any network call")
	}
	var count int64
	db.Model(&domain.WaMessage{}).Count(&count)
	if count != 0 {
		t.Fatalf("group send must not persist anything, got %d rows", count)
	}
}

func TestCloudGroupOpsNotSupported(t *testing.T) {
	db := newTestDB(t)
	seedCloudDevice(t, db, "dev1", "PHONE1", "token-1")
	var requests int32
	srv := newGraphServer(t, &requests)
	defer srv.Close()
	cloud := newCloudForTest(t, db, nil, srv.URL)
	ctx := context.Background()

	if _, err := cloud.CreateGroup(ctx, "dev1", "team", []string{"1@s.whatsapp.net"}); kindOf(t, err) != KindNotSupported {
		t.Fatalf("CreateGroup: expected NOT_SUPPORTED, got %v", err)
	}
	if _, err := cloud.GetGroups(ctx, "dev1"); kindOf(t, err) != KindNotSupported {
		t.Fatalf("GetGroups: expected NOT_SUPPORTED, got %v", err)
	}
	if err := cloud.UpdateGroupParticipants(ctx, "dev1", "g@g.us", []string{"1"}, GroupActionAdd); kindOf(t, err) != KindNotSupported {
		t.Fatalf("UpdateGroupParticipants: expected NOT_SUPPORTED, got %v", err)
	}
	if atomic.LoadInt32(&requests) != 0 {
		t.Fatal("group operations must not reach the network")
	}
	var chats, msgs int64
	db.Model(&domain.WaChat{}).Count(&chats)
	db.Model(&domain.WaMessage{}).Count(&msgs)
	if chats != 0 || msgs != 0 {
		t.Fatalf("group operations must not mutate the store: chats=%d msgs=%d", chats, msgs)
	}
}

func TestCloudConfigResolution(t *testing.T) {
	db := newTestDB(t)
	var requests int32
	srv := newGraphServer(t, &requests)
	defer srv.Close()
	cloud := newCloudForTest(t, db, nil, srv.URL)
	ctx := context.Background()

	// unknown device
	_, err := cloud.SendText(ctx, SendTextArgs{DeviceId: "ghost", ChatId: "1@s.whatsapp.net", Text: "x"})
	if kindOf(t, err) != KindNotConfigured {
		t.Fatalf("unknown device: expected NOT_CONFIGURED, got %v", err)
	}

	// device without credentials
	db.Create(&domain.WaDevice{ID: "bare", Name: "bare", Variant: domain.VariantCloud})
	_, err = cloud.SendText(ctx, SendTextArgs{DeviceId: "bare", ChatId: "1@s.whatsapp.net", Text: "x"})
	if kindOf(t, err) != KindNotConfigured {
		t.Fatalf("bare device: expected NOT_CONFIGURED, got %v", err)
	}

	// token sealed under a different key fails to decrypt
	sealed, _ := common.EncryptSecret("some-other-key", "token-1")
	db.Create(&domain.WaDevice{
		ID: "badkey", Name: "badkey", Variant: domain.VariantCloud,
		CloudPhoneNumberId: "PHONE1", CloudAccessTokenEnc: sealed,
	})
	_, err = cloud.SendText(ctx, SendTextArgs{DeviceId: "badkey", ChatId: "1@s.whatsapp.net", Text: "x"})
	if kindOf(t, err) != KindNotConfigured {
		t.Fatalf("undecryptable token: expected NOT_CONFIGURED, got %v", err)
	}
	if atomic.LoadInt32(&requests) != 0 {
		t.Fatal("configuration failures must not reach the network")
	}
}

func TestCloudUpstreamErrorCarriesRemoteMessage(t *testing.T) {
	db := newTestDB(t)
	seedCloudDevice(t, db, "dev1", "PHONE1", "token-expired")
	var requests int32
	srv := newGraphServer(t, &requests)
	defer srv.Close()
	cloud := newCloudForTest(t, db, nil, srv.URL)

	_, err := cloud.SendText(context.Background(), SendTextArgs{
		DeviceId: "dev1",
		ChatId:   "1@s.whatsapp.net",
		Text:     "x",
	})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Kind != KindUpstreamError || pe.Message != "bad token" {
		t.Fatalf("expected UPSTREAM_ERROR 'bad token', got %v", pe)
	}
}

func TestCloudRetentionWindowBoundsReads(t *testing.T) {
	db := newTestDB(t)
	seedCloudDevice(t, db, "dev1", "PHONE1", "token-1")
	cloud := newCloudForTest(t, db, nil, "http://unused.invalid")
	chats := NewGormChatRepository(db)
	messages := NewGormMessageRepository(db, nil)
	ctx := context.Background()

	old := time.Now().Add(-8 * 24 * time.Hour)
	recent := time.Now().Add(-6 * 24 * time.Hour)

	staleChat, _ := chats.UpsertOnActivity(ctx, "dev1", "old@s.whatsapp.net", "Old", old)
	activeChat, _ := chats.UpsertOnActivity(ctx, "dev1", "recent@s.whatsapp.net", "Recent", recent)

	messages.Record(ctx, MessageRecord{
		DeviceId: "dev1", ChatDbId: staleChat, WaChatId: "old@s.whatsapp.net",
		WaMessageId: "wamid.OLD", Source: domain.SourceWhatsapp,
		MsgType: domain.MsgTypeText, Text: "too old", Timestamp: old, Status: domain.StatusReceived,
	})
	messages.Record(ctx, MessageRecord{
		DeviceId: "dev1", ChatDbId: activeChat, WaChatId: "recent@s.whatsapp.net",
		WaMessageId: "wamid.RECENT", Source: domain.SourceWhatsapp,
		MsgType: domain.MsgTypeText, Text: "still visible", Timestamp: recent, Status: domain.StatusReceived,
	})

	summaries, err := cloud.GetChats(ctx, "dev1")
	if err != nil {
		t.Fatalf("get chats: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Id != "recent@s.whatsapp.net" {
		t.Fatalf("retention window not applied to chat list: %+v", summaries)
	}

	// the stale rows are filtered from reads but never deleted
	var total int64
	db.Model(&domain.WaMessage{}).Count(&total)
	if total != 2 {
		t.Fatalf("retention must never delete rows, got %d", total)
	}

	views, err := cloud.GetChatMessages(ctx, "dev1", "old@s.whatsapp.net", 50)
	if err != nil {
		t.Fatalf("get chat messages: %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("messages older than the cutoff must not surface, got %d", len(views))
	}
}

func TestCloudGetChatMessagesUnknownChat(t *testing.T) {
	db := newTestDB(t)
	seedCloudDevice(t, db, "dev1", "PHONE1", "token-1")
	cloud := newCloudForTest(t, db, nil, "http://unused.invalid")

	views, err := cloud.GetChatMessages(context.Background(), "dev1", "nobody@s.whatsapp.net", 50)
	if err != nil {
		t.Fatalf("unknown chat should yield empty history, got %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("expected empty history, got %d", len(views))
	}
}

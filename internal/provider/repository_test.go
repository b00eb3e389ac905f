package provider

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nmoller/wapanel/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "wapanel_test.db")),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrator().AutoMigrate(domain.Tables...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type captureBus struct {
	events []MessageEvent
}

func (b *captureBus) Publish(topic string, args ...interface{}) {
	for _, arg := range args {
		if ev, ok := arg.(MessageEvent); ok {
			b.events = append(b.events, ev)
		}
	}
}

func TestRecordIsIdempotentByNetworkId(t *testing.T) {
	db := newTestDB(t)
	bus := &captureBus{}
	chats := NewGormChatRepository(db)
	messages := NewGormMessageRepository(db, bus)
	ctx := context.Background()

	now := time.Now()
	chatId, err := chats.UpsertOnActivity(ctx, "dev1", "598911111@s.whatsapp.net", "Ana", now)
	if err != nil {
		t.Fatalf("upsert chat: %v", err)
	}

	rec := MessageRecord{
		DeviceId:    "dev1",
		ChatDbId:    chatId,
		WaChatId:    "598911111@s.whatsapp.net",
		WaMessageId: "wamid.DUP1",
		Source:      domain.SourceWhatsapp,
		MsgType:     domain.MsgTypeText,
		Text:        "first delivery",
		Timestamp:   now,
		Status:      domain.StatusReceived,
	}
	created, err := messages.Record(ctx, rec)
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	if !created {
		t.Fatal("first record should create a row")
	}

	// redelivery with different content must not change the stored row
	rec.Text = "second delivery"
	created, err = messages.Record(ctx, rec)
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if created {
		t.Fatal("redelivery must not create a second row")
	}

	var count int64
	db.Model(&domain.WaMessage{}).Where("wa_message_id = ?", "wamid.DUP1").Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
	var stored domain.WaMessage
	db.Where("wa_message_id = ?", "wamid.DUP1").First(&stored)
	if stored.Text != "first delivery" {
		t.Fatalf("stored text changed on redelivery: %q", stored.Text)
	}
	if len(bus.events) != 1 {
		t.Fatalf("expected exactly 1 live event, got %d", len(bus.events))
	}
	if bus.events[0].Msg.Id != "wamid.DUP1" {
		t.Fatalf("unexpected event message id %q", bus.events[0].Msg.Id)
	}
}

func TestChatCustomNameIsSticky(t *testing.T) {
	db := newTestDB(t)
	chats := NewGormChatRepository(db)
	ctx := context.Background()

	id, err := chats.UpsertOnActivity(ctx, "dev1", "598922222@s.whatsapp.net", "Network Name", time.Now())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := chats.SetCustomName(ctx, "dev1", "598922222@s.whatsapp.net", "Cliente VIP"); err != nil {
		t.Fatalf("set custom name: %v", err)
	}

	// later activity with a fresh network name must not clobber the
	// operator-assigned one, and name updates stop while it is set
	id2, err := chats.UpsertOnActivity(ctx, "dev1", "598922222@s.whatsapp.net", "Renamed Upstream", time.Now())
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id2 != id {
		t.Fatalf("chat id changed across upserts: %d vs %d", id, id2)
	}

	var chat domain.WaChat
	db.Where("device_id = ? AND wa_chat_id = ?", "dev1", "598922222@s.whatsapp.net").First(&chat)
	if chat.CustomName != "Cliente VIP" {
		t.Fatalf("custom name lost: %q", chat.CustomName)
	}
	// the network name never lands on create and is frozen while a
	// custom name is set, so it is still empty here
	if chat.Name != "" {
		t.Fatalf("network name updated while custom name set: %q", chat.Name)
	}

	// clearing the custom name makes network renames land again
	if err := chats.SetCustomName(ctx, "dev1", "598922222@s.whatsapp.net", ""); err != nil {
		t.Fatalf("clear custom name: %v", err)
	}
	if _, err := chats.UpsertOnActivity(ctx, "dev1", "598922222@s.whatsapp.net", "Renamed Upstream", time.Now()); err != nil {
		t.Fatalf("third upsert: %v", err)
	}
	db.Where("device_id = ? AND wa_chat_id = ?", "dev1", "598922222@s.whatsapp.net").First(&chat)
	if chat.Name != "Renamed Upstream" {
		t.Fatalf("network rename did not land after clearing custom name: %q", chat.Name)
	}
}

func TestRecordDropsUnresolvableReplyTarget(t *testing.T) {
	db := newTestDB(t)
	messages := NewGormMessageRepository(db, nil)
	chats := NewGormChatRepository(db)
	ctx := context.Background()

	chatId, _ := chats.UpsertOnActivity(ctx, "dev1", "598933333@s.whatsapp.net", "", time.Now())
	created, err := messages.Record(ctx, MessageRecord{
		DeviceId:           "dev1",
		ChatDbId:           chatId,
		WaChatId:           "598933333@s.whatsapp.net",
		WaMessageId:        "wamid.REPLY1",
		ContextWaMessageId: "wamid.MISSING",
		Source:             domain.SourcePanel,
		MsgType:            domain.MsgTypeText,
		Text:               "reply to nothing",
		Timestamp:          time.Now(),
		Status:             domain.StatusSent,
	})
	if err != nil || !created {
		t.Fatalf("record failed: created=%v err=%v", created, err)
	}

	var stored domain.WaMessage
	db.Where("wa_message_id = ?", "wamid.REPLY1").First(&stored)
	if stored.ContextWaMessageId != "" {
		t.Fatalf("unresolvable reply target should be dropped, got %q", stored.ContextWaMessageId)
	}
}

func TestUpdateStatus(t *testing.T) {
	db := newTestDB(t)
	messages := NewGormMessageRepository(db, nil)
	chats := NewGormChatRepository(db)
	ctx := context.Background()

	chatId, _ := chats.UpsertOnActivity(ctx, "dev1", "598944444@s.whatsapp.net", "", time.Now())
	_, err := messages.Record(ctx, MessageRecord{
		DeviceId:    "dev1",
		ChatDbId:    chatId,
		WaChatId:    "598944444@s.whatsapp.net",
		WaMessageId: "wamid.ST1",
		Source:      domain.SourcePanel,
		MsgType:     domain.MsgTypeText,
		Text:        "status test",
		Timestamp:   time.Now(),
		Status:      domain.StatusSent,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := messages.UpdateStatus(ctx, "wamid.ST1", domain.StatusRead); err != nil {
		t.Fatalf("update status: %v", err)
	}
	var stored domain.WaMessage
	db.Where("wa_message_id = ?", "wamid.ST1").First(&stored)
	if stored.Status != domain.StatusRead {
		t.Fatalf("status not updated: %q", stored.Status)
	}
}

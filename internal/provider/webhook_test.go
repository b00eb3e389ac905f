package provider

import (
	"context"
	"testing"

	"github.com/nmoller/wapanel/internal/domain"
	"gorm.io/gorm"
)

const webhookTextDelivery = `{
  "entry": [{
    "changes": [{
      "value": {
        "metadata": {"phone_number_id": "PHONE1"},
        "contacts": [{"wa_id": "598966666", "profile": {"name": "Marta"}}],
        "messages": [{
          "from": "598966666",
          "id": "wamid.HOOK1",
          "timestamp": "1756700000",
          "type": "text",
          "text": {"body": "consulta de precio"}
        }]
      }
    }]
  }]
}`

const webhookStatusDelivery = `{
  "entry": [{
    "changes": [{
      "value": {
        "metadata": {"phone_number_id": "PHONE1"},
        "statuses": [{"id": "wamid.HOOK1", "status": "read"}]
      }
    }]
  }]
}`

func newWebhookForTest(t *testing.T, db *gorm.DB, bus EventSink) *WebhookProcessor {
	t.Helper()
	p, err := NewWebhookProcessor(db, bus, 2)
	if err != nil {
		t.Fatalf("webhook processor: %v", err)
	}
	t.Cleanup(p.Release)
	return p
}

func TestWebhookIngestAndRedeliveryDedup(t *testing.T) {
	db := newTestDB(t)
	seedCloudDevice(t, db, "dev1", "PHONE1", "token-1")
	bus := &captureBus{}
	processor := newWebhookForTest(t, db, bus)
	ctx := context.Background()

	if err := processor.Process(ctx, []byte(webhookTextDelivery)); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	// the remote side redelivers on slow ACKs
	if err := processor.Process(ctx, []byte(webhookTextDelivery)); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	var count int64
	db.Model(&domain.WaMessage{}).Where("wa_message_id = ?", "wamid.HOOK1").Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 row after redelivery, got %d", count)
	}
	if len(bus.events) != 1 {
		t.Fatalf("expected 1 live event after redelivery, got %d", len(bus.events))
	}

	var msg domain.WaMessage
	db.Where("wa_message_id = ?", "wamid.HOOK1").First(&msg)
	if msg.FromMe || msg.Source != domain.SourceWhatsapp || msg.Status != domain.StatusReceived {
		t.Fatalf("unexpected attributes: fromMe=%v source=%q status=%q", msg.FromMe, msg.Source, msg.Status)
	}

	var chat domain.WaChat
	db.Where("device_id = ? AND wa_chat_id = ?", "dev1", "598966666@s.whatsapp.net").First(&chat)
	if chat.Name != "Marta" {
		t.Fatalf("contact name not applied to chat: %q", chat.Name)
	}
}

func TestWebhookStatusUpdate(t *testing.T) {
	db := newTestDB(t)
	seedCloudDevice(t, db, "dev1", "PHONE1", "token-1")
	processor := newWebhookForTest(t, db, nil)
	ctx := context.Background()

	if err := processor.Process(ctx, []byte(webhookTextDelivery)); err != nil {
		t.Fatalf("message delivery: %v", err)
	}
	if err := processor.Process(ctx, []byte(webhookStatusDelivery)); err != nil {
		t.Fatalf("status delivery: %v", err)
	}

	var msg domain.WaMessage
	db.Where("wa_message_id = ?", "wamid.HOOK1").First(&msg)
	if msg.Status != domain.StatusRead {
		t.Fatalf("status transition not applied: %q", msg.Status)
	}
}

func TestWebhookUnknownPhoneNumberIsSkipped(t *testing.T) {
	db := newTestDB(t)
	// no device bound to PHONE1
	processor := newWebhookForTest(t, db, nil)

	if err := processor.Process(context.Background(), []byte(webhookTextDelivery)); err != nil {
		t.Fatalf("unattributable delivery must still ACK: %v", err)
	}
	var count int64
	db.Model(&domain.WaMessage{}).Count(&count)
	if count != 0 {
		t.Fatalf("unattributable delivery must not persist rows, got %d", count)
	}
}

func TestWebhookMalformedPayload(t *testing.T) {
	db := newTestDB(t)
	processor := newWebhookForTest(t, db, nil)

	err := processor.Process(context.Background(), []byte("not json"))
	if kindOf(t, err) != KindBadRequest {
		t.Fatalf("expected BAD_REQUEST for garbage, got %v", err)
	}
}

package provider

import (
	"context"
	"errors"
	"testing"
)

// fakeManager records calls and lets tests steer connectivity and errors.
type fakeManager struct {
	connected bool
	lastCall  string
	failWith  error
}

func (m *fakeManager) Connected(deviceId string) bool { return m.connected }

func (m *fakeManager) call(name string) error {
	m.lastCall = name
	return m.failWith
}

func (m *fakeManager) InitDevice(ctx context.Context, deviceId, mode string) error {
	return m.call("InitDevice")
}

func (m *fakeManager) RequestPairingCode(ctx context.Context, deviceId, phoneNumber string) (string, error) {
	return "ABCD-1234", m.call("RequestPairingCode")
}

func (m *fakeManager) StopDevice(ctx context.Context, deviceId string) error {
	return m.call("StopDevice")
}

func (m *fakeManager) DisconnectAndClean(ctx context.Context, deviceId string) (*CleanResult, error) {
	return &CleanResult{Success: true}, m.call("DisconnectAndClean")
}

func (m *fakeManager) SendText(ctx context.Context, args SendTextArgs) (*SendResult, error) {
	return &SendResult{MessageId: "wamid.SESSION"}, m.call("SendText")
}

func (m *fakeManager) SendMedia(ctx context.Context, args SendMediaArgs) (*SendResult, error) {
	return &SendResult{MessageId: "wamid.SESSION"}, m.call("SendMedia")
}

func (m *fakeManager) GetChats(ctx context.Context, deviceId string) ([]ChatSummary, error) {
	return nil, m.call("GetChats")
}

func (m *fakeManager) GetChatMessages(ctx context.Context, deviceId, chatId string, limit int) ([]MessageView, error) {
	return nil, m.call("GetChatMessages")
}

func (m *fakeManager) SearchMessages(ctx context.Context, deviceId, query string, opts SearchOptions) ([]SearchHit, error) {
	return nil, m.call("SearchMessages")
}

func (m *fakeManager) CreateGroup(ctx context.Context, deviceId, name string, participants []string) (*GroupInfo, error) {
	return &GroupInfo{Id: "g1@g.us", Subject: name}, m.call("CreateGroup")
}

func (m *fakeManager) GetGroups(ctx context.Context, deviceId string) ([]GroupInfo, error) {
	return nil, m.call("GetGroups")
}

func (m *fakeManager) GetGroupMetadata(ctx context.Context, deviceId, groupId string) (*GroupInfo, error) {
	return &GroupInfo{Id: groupId}, m.call("GetGroupMetadata")
}

func (m *fakeManager) AddGroupParticipants(ctx context.Context, deviceId, groupId string, participants []string) error {
	return m.call("AddGroupParticipants")
}

func (m *fakeManager) RemoveGroupParticipants(ctx context.Context, deviceId, groupId string, participants []string) error {
	return m.call("RemoveGroupParticipants")
}

func (m *fakeManager) PromoteGroupParticipants(ctx context.Context, deviceId, groupId string, participants []string) error {
	return m.call("PromoteGroupParticipants")
}

func (m *fakeManager) DemoteGroupParticipants(ctx context.Context, deviceId, groupId string, participants []string) error {
	return m.call("DemoteGroupParticipants")
}

func (m *fakeManager) UpdateGroupSubject(ctx context.Context, deviceId, groupId, subject string) error {
	return m.call("UpdateGroupSubject")
}

func (m *fakeManager) UpdateGroupDescription(ctx context.Context, deviceId, groupId, description string) error {
	return m.call("UpdateGroupDescription")
}

func (m *fakeManager) LeaveGroup(ctx context.Context, deviceId, groupId string) error {
	return m.call("LeaveGroup")
}

func (m *fakeManager) ImportChatProfilePhoto(ctx context.Context, deviceId, chatId string) (string, error) {
	return "https://photos/1.jpg", m.call("ImportChatProfilePhoto")
}

func TestSessionGroupActionDispatch(t *testing.T) {
	manager := &fakeManager{connected: true}
	p := NewSessionProvider(manager)
	ctx := context.Background()

	cases := []struct {
		action GroupAction
		want   string
	}{
		{GroupActionAdd, "AddGroupParticipants"},
		{GroupActionRemove, "RemoveGroupParticipants"},
		{GroupActionPromote, "PromoteGroupParticipants"},
		{GroupActionDemote, "DemoteGroupParticipants"},
	}
	for _, tc := range cases {
		err := p.UpdateGroupParticipants(ctx, "dev1", "g1@g.us", []string{"1@s.whatsapp.net"}, tc.action)
		if err != nil {
			t.Fatalf("%s: %v", tc.action, err)
		}
		if manager.lastCall != tc.want {
			t.Fatalf("action %s dispatched to %s", tc.action, manager.lastCall)
		}
	}

	err := p.UpdateGroupParticipants(ctx, "dev1", "g1@g.us", []string{"1"}, GroupAction("explode"))
	if kindOf(t, err) != KindBadRequest {
		t.Fatalf("unknown action: expected BAD_REQUEST, got %v", err)
	}
}

func TestSessionFailsFastWhenDisconnected(t *testing.T) {
	manager := &fakeManager{connected: false}
	p := NewSessionProvider(manager)
	ctx := context.Background()

	_, err := p.SendText(ctx, SendTextArgs{DeviceId: "dev1", ChatId: "1@s.whatsapp.net", Text: "x"})
	if kindOf(t, err) != KindNotConnected {
		t.Fatalf("expected NOT_CONNECTED, got %v", err)
	}
	if manager.lastCall != "" {
		t.Fatalf("disconnected send must not reach the manager, called %s", manager.lastCall)
	}

	if _, err := p.CreateGroup(ctx, "dev1", "team", []string{"1"}); kindOf(t, err) != KindNotConnected {
		t.Fatalf("expected NOT_CONNECTED, got %v", err)
	}
}

func TestSessionWrapsManagerErrors(t *testing.T) {
	manager := &fakeManager{connected: true, failWith: errors.New("socket torn down")}
	p := NewSessionProvider(manager)

	_, err := p.SendText(context.Background(), SendTextArgs{DeviceId: "dev1", ChatId: "1@s.whatsapp.net", Text: "x"})
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Kind != KindUpstreamError {
		t.Fatalf("expected wrapped UPSTREAM_ERROR, got %v", err)
	}

	// classified errors pass through untouched
	manager.failWith = ErrBadRequest("bad jid")
	_, err = p.SendText(context.Background(), SendTextArgs{DeviceId: "dev1", ChatId: "1@s.whatsapp.net", Text: "x"})
	if kindOf(t, err) != KindBadRequest {
		t.Fatalf("expected BAD_REQUEST passthrough, got %v", err)
	}
}

func TestSessionGroupSendAllowed(t *testing.T) {
	manager := &fakeManager{connected: true}
	p := NewSessionProvider(manager)

	result, err := p.SendText(context.Background(), SendTextArgs{
		DeviceId: "dev1",
		ChatId:   "12036304@g.us",
		Text:     "hello group",
	})
	if err != nil {
		t.Fatalf("session variant must allow group sends: %v", err)
	}
	if result.MessageId != "wamid.SESSION" {
		t.Fatalf("unexpected result %+v", result)
	}
}

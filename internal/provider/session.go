package provider

import (
	"context"
	"errors"

	"github.com/nmoller/wapanel/internal/domain"
)

// DeviceManager is the live multi-device session engine behind the
// session variant. It owns connections, the in-session store and group
// capabilities; the panel reaches it only through this contract.
type DeviceManager interface {
	Connected(deviceId string) bool

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
	AddGroupParticipants(ctx context.Context, deviceId string, groupId string, participants []string) error
	RemoveGroupParticipants(ctx context.Context, deviceId string, groupId string, participants []string) error
	PromoteGroupParticipants(ctx context.Context, deviceId string, groupId string, participants []string) error
	DemoteGroupParticipants(ctx context.Context, deviceId string, groupId string, participants []string) error
	UpdateGroupSubject(ctx context.Context, deviceId string, groupId string, subject string) error
	UpdateGroupDescription(ctx context.Context, deviceId string, groupId string, description string) error
	LeaveGroup(ctx context.Context, deviceId string, groupId string) error

	ImportChatProfilePhoto(ctx context.Context, deviceId string, chatId string) (string, error)
}

// SessionProvider adapts a DeviceManager to the Provider contract. It
// keeps no state of its own: every call checks connectivity where the
// operation needs a live session and forwards.
type SessionProvider struct {
	manager DeviceManager
}

func NewSessionProvider(manager DeviceManager) *SessionProvider {
	return &SessionProvider{manager: manager}
}

func (p *SessionProvider) Variant() string {
	return domain.VariantSession
}

// wrapErr normalizes manager failures into the provider taxonomy.
// Already-classified errors pass through unchanged.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return ErrUpstream(err.Error())
}

func (p *SessionProvider) requireConnected(deviceId string) error {
	if !p.manager.Connected(deviceId) {
		return ErrNotConnected("device session is not connected")
	}
	return nil
}

func (p *SessionProvider) InitDevice(ctx context.Context, deviceId string, mode string) error {
	return wrapErr(p.manager.InitDevice(ctx, deviceId, mode))
}

func (p *SessionProvider) RequestPairingCode(ctx context.Context, deviceId string, phoneNumber string) (string, error) {
	code, err := p.manager.RequestPairingCode(ctx, deviceId, phoneNumber)
	return code, wrapErr(err)
}

func (p *SessionProvider) StopDevice(ctx context.Context, deviceId string) error {
	return wrapErr(p.manager.StopDevice(ctx, deviceId))
}

func (p *SessionProvider) DisconnectAndClean(ctx context.Context, deviceId string) (*CleanResult, error) {
	result, err := p.manager.DisconnectAndClean(ctx, deviceId)
	return result, wrapErr(err)
}

func (p *SessionProvider) SendText(ctx context.Context, args SendTextArgs) (*SendResult, error) {
	if err := p.requireConnected(args.DeviceId); err != nil {
		return nil, err
	}
	result, err := p.manager.SendText(ctx, args)
	return result, wrapErr(err)
}

func (p *SessionProvider) SendMedia(ctx context.Context, args SendMediaArgs) (*SendResult, error) {
	if err := p.requireConnected(args.DeviceId); err != nil {
		return nil, err
	}
	result, err := p.manager.SendMedia(ctx, args)
	return result, wrapErr(err)
}

func (p *SessionProvider) GetChats(ctx context.Context, deviceId string) ([]ChatSummary, error) {
	chats, err := p.manager.GetChats(ctx, deviceId)
	return chats, wrapErr(err)
}

func (p *SessionProvider) GetChatMessages(ctx context.Context, deviceId string, chatId string, limit int) ([]MessageView, error) {
	msgs, err := p.manager.GetChatMessages(ctx, deviceId, chatId, clampLimit(limit))
	return msgs, wrapErr(err)
}

func (p *SessionProvider) SearchMessages(ctx context.Context, deviceId string, query string, opts SearchOptions) ([]SearchHit, error) {
	hits, err := p.manager.SearchMessages(ctx, deviceId, query, opts)
	return hits, wrapErr(err)
}

func (p *SessionProvider) CreateGroup(ctx context.Context, deviceId string, name string, participants []string) (*GroupInfo, error) {
	if err := p.requireConnected(deviceId); err != nil {
		return nil, err
	}
	info, err := p.manager.CreateGroup(ctx, deviceId, name, participants)
	return info, wrapErr(err)
}

func (p *SessionProvider) GetGroups(ctx context.Context, deviceId string) ([]GroupInfo, error) {
	if err := p.requireConnected(deviceId); err != nil {
		return nil, err
	}
	groups, err := p.manager.GetGroups(ctx, deviceId)
	return groups, wrapErr(err)
}

func (p *SessionProvider) GetGroupMetadata(ctx context.Context, deviceId string, groupId string) (*GroupInfo, error) {
	if err := p.requireConnected(deviceId); err != nil {
		return nil, err
	}
	info, err := p.manager.GetGroupMetadata(ctx, deviceId, groupId)
	return info, wrapErr(err)
}

// UpdateGroupParticipants fans the single facade operation out to the
// manager's four mutation calls.
func (p *SessionProvider) UpdateGroupParticipants(ctx context.Context, deviceId string, groupId string, participants []string, action GroupAction) error {
	if err := p.requireConnected(deviceId); err != nil {
		return err
	}
	switch action {
	case GroupActionAdd:
		return wrapErr(p.manager.AddGroupParticipants(ctx, deviceId, groupId, participants))
	case GroupActionRemove:
		return wrapErr(p.manager.RemoveGroupParticipants(ctx, deviceId, groupId, participants))
	case GroupActionPromote:
		return wrapErr(p.manager.PromoteGroupParticipants(ctx, deviceId, groupId, participants))
	case GroupActionDemote:
		return wrapErr(p.manager.DemoteGroupParticipants(ctx, deviceId, groupId, participants))
	default:
		return ErrBadRequest("unknown participant action: " + string(action))
	}
}

func (p *SessionProvider) UpdateGroupSubject(ctx context.Context, deviceId string, groupId string, subject string) error {
	if err := p.requireConnected(deviceId); err != nil {
		return err
	}
	return wrapErr(p.manager.UpdateGroupSubject(ctx, deviceId, groupId, subject))
}

func (p *SessionProvider) UpdateGroupDescription(ctx context.Context, deviceId string, groupId string, description string) error {
	if err := p.requireConnected(deviceId); err != nil {
		return err
	}
	return wrapErr(p.manager.UpdateGroupDescription(ctx, deviceId, groupId, description))
}

func (p *SessionProvider) LeaveGroup(ctx context.Context, deviceId string, groupId string) error {
	if err := p.requireConnected(deviceId); err != nil {
		return err
	}
	return wrapErr(p.manager.LeaveGroup(ctx, deviceId, groupId))
}

func (p *SessionProvider) ImportChatProfilePhoto(ctx context.Context, deviceId string, chatId string) (string, error) {
	if err := p.requireConnected(deviceId); err != nil {
		return "", err
	}
	url, err := p.manager.ImportChatProfilePhoto(ctx, deviceId, chatId)
	return url, wrapErr(err)
}

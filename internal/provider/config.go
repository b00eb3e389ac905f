package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/nmoller/wapanel/internal/domain"
	"github.com/nmoller/wapanel/pkg/common"
	"gorm.io/gorm"
)

// CloudConfig is the per-device credential set of the stateless variant.
type CloudConfig struct {
	PhoneNumberId string
	AccessToken   string
}

// cloudConfigResolver loads cloud credentials from the store. Resolution
// runs on every outbound call so credential rotation takes effect
// immediately; nothing is cached across calls.
type cloudConfigResolver struct {
	db            *gorm.DB
	encryptionKey string
}

func (r *cloudConfigResolver) Resolve(ctx context.Context, deviceId string) (*CloudConfig, error) {
	var dev domain.WaDevice
	err := r.db.WithContext(ctx).
		Select("cloud_phone_number_id", "cloud_access_token_enc").
		Where("id = ?", deviceId).
		First(&dev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotConfigured("cloud API not configured for device")
	}
	if err != nil {
		return nil, err
	}
	phoneNumberId := strings.TrimSpace(dev.CloudPhoneNumberId)
	tokenEnc := strings.TrimSpace(dev.CloudAccessTokenEnc)
	if phoneNumberId == "" || tokenEnc == "" {
		return nil, ErrNotConfigured("cloud API not configured for device")
	}
	token, err := common.DecryptSecret(r.encryptionKey, tokenEnc)
	if err != nil || strings.TrimSpace(token) == "" {
		return nil, ErrNotConfigured("invalid access token")
	}
	return &CloudConfig{PhoneNumberId: phoneNumberId, AccessToken: strings.TrimSpace(token)}, nil
}

package app

import (
	"errors"
	"strings"
	"time"

	"github.com/nmoller/wapanel/internal/domain"
	"github.com/nmoller/wapanel/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (a *Application) checkSuper() {
	const superUsername = "admin"
	const defaultPassword = "wapanel"

	hashedPassword := common.Sha256HashWithSalt(defaultPassword, common.GetSecretSalt())

	var operator domain.SysOpr
	err := a.gormDB.Where("username = ?", superUsername).First(&operator).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := a.gormDB.Create(&domain.SysOpr{
			ID:        common.UUIDint64(),
			Realname:  "administrator",
			Mobile:    "0000",
			Email:     "N/A",
			Username:  superUsername,
			Password:  hashedPassword,
			Level:     "super",
			Status:    common.ENABLED,
			Remark:    "super",
			LastLogin: time.Now(),
		}).Error; err != nil {
			zap.L().Error("failed to create default super admin", zap.Error(err))
		} else {
			zap.L().Info("initialized default super admin account", zap.String("username", superUsername))
		}
		return
	case err != nil:
		zap.L().Error("failed to query super admin", zap.Error(err))
		return
	}

	resetPassword := strings.TrimSpace(operator.Password) == ""
	resetLevel := !strings.EqualFold(operator.Level, "super")
	resetStatus := !strings.EqualFold(operator.Status, common.ENABLED)

	if !resetPassword && !resetLevel && !resetStatus {
		return
	}

	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if resetPassword {
		updates["password"] = hashedPassword
	}
	if resetLevel {
		updates["level"] = "super"
	}
	if resetStatus {
		updates["status"] = common.ENABLED
	}

	if err := a.gormDB.Model(&domain.SysOpr{}).Where("id = ?", operator.ID).Updates(updates).Error; err != nil {
		zap.L().Error("failed to repair super admin account", zap.Error(err))
		return
	}

	zap.L().Warn("repaired default super admin account",
		zap.String("username", superUsername),
		zap.Bool("passwordReset", resetPassword),
		zap.Bool("levelReset", resetLevel),
		zap.Bool("statusEnabled", resetStatus))
}

func (a *Application) checkSettings() {
	defaults := []domain.SysConfig{
		{Sort: 1, Type: "system", Name: "SystemTitle", Value: "WaPanel", Remark: "Panel display title"},
		{Sort: 2, Type: "system", Name: "SystemTheme", Value: "light", Remark: "Panel theme"},
		{Sort: 3, Type: "whatsapp", Name: "DefaultCountryCode", Value: "598", Remark: "Prefix applied to bare phone numbers"},
		{Sort: 4, Type: "whatsapp", Name: "MediaMaxSizeMb", Value: "16", Remark: "Upload size limit for outbound media"},
	}

	for _, item := range defaults {
		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("type = ? and name = ?", item.Type, item.Name).
			Count(&count)
		if count == 0 {
			item.ID = common.UUIDint64()
			a.gormDB.Create(&item)
			zap.L().Info("initialized config",
				zap.String("key", item.Type+"."+item.Name),
				zap.String("default", item.Value))
		}
	}
}

// checkDefaultTemplates seeds a couple of quick-reply templates
func (a *Application) checkDefaultTemplates() {
	defaultTemplates := []domain.MsgTemplate{
		{Name: "greeting", Content: "Hola! Gracias por comunicarte, en breve te respondemos."},
		{Name: "closing", Content: "Quedamos a las ordenes por cualquier otra consulta."},
	}

	for _, tpl := range defaultTemplates {
		var count int64
		a.gormDB.Model(&domain.MsgTemplate{}).Where("name = ?", tpl.Name).Count(&count)
		if count == 0 {
			tpl.ID = common.UUIDint64()
			if err := a.gormDB.Create(&tpl).Error; err != nil {
				zap.L().Error("failed to create default template", zap.String("name", tpl.Name), zap.Error(err))
			} else {
				zap.L().Info("initialized default template", zap.String("name", tpl.Name))
			}
		}
	}
}

// checkDefaultLabels seeds the base chat labels
func (a *Application) checkDefaultLabels() {
	defaultLabels := []domain.ChatLabel{
		{Name: "new", Color: "#2ecc71"},
		{Name: "pending", Color: "#f1c40f"},
		{Name: "resolved", Color: "#95a5a6"},
	}

	for _, label := range defaultLabels {
		var count int64
		a.gormDB.Model(&domain.ChatLabel{}).Where("name = ?", label.Name).Count(&count)
		if count == 0 {
			label.ID = common.UUIDint64()
			if err := a.gormDB.Create(&label).Error; err != nil {
				zap.L().Error("failed to create default label", zap.String("name", label.Name), zap.Error(err))
			} else {
				zap.L().Info("initialized default label", zap.String("name", label.Name))
			}
		}
	}
}

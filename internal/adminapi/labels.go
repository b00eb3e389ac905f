package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nmoller/wapanel/internal/domain"
	"github.com/nmoller/wapanel/internal/webserver"
	"github.com/nmoller/wapanel/pkg/common"
	"github.com/spf13/cast"
	"gorm.io/gorm/clause"
)

func registerLabelRoutes() {
	webserver.ApiGET("/whatsapp/labels", listLabels)
	webserver.ApiPOST("/whatsapp/labels", postCreateLabel)
	webserver.ApiDELETE("/whatsapp/labels/:id", deleteLabel)
	webserver.ApiPOST("/whatsapp/labels/:id/assign", postAssignLabel)
	webserver.ApiPOST("/whatsapp/labels/:id/unassign", postUnassignLabel)
	webserver.ApiGET("/whatsapp/devices/:id/chats/labels", getChatLabels)
}

func listLabels(c echo.Context) error {
	var labels []domain.ChatLabel
	if err := GetDB(c).Order("name ASC").Find(&labels).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list labels", err.Error())
	}
	return ok(c, map[string]interface{}{"labels": labels})
}

func postCreateLabel(c echo.Context) error {
	var payload domain.ChatLabel
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.Name == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "name is required", nil)
	}
	payload.ID = common.UUIDint64()
	if err := GetDB(c).Create(&payload).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create label", err.Error())
	}
	oprLog(c, "label_create", "created label "+payload.Name)
	return ok(c, map[string]interface{}{"id": payload.ID})
}

func deleteLabel(c echo.Context) error {
	id := cast.ToInt64(c.Param("id"))
	if id == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid label id", nil)
	}
	db := GetDB(c)
	if err := db.Where("label_id = ?", id).Delete(&domain.ChatLabelLink{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete label links", err.Error())
	}
	if err := db.Delete(&domain.ChatLabel{}, id).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete label", err.Error())
	}
	oprLog(c, "label_delete", "deleted label "+c.Param("id"))
	return ok(c, map[string]interface{}{"deleted": true})
}

// postAssignLabel tags a chat. Repeated assignment is a no-op.
// Body JSON: { "device_id": "...", "chat_id": "..." }
func postAssignLabel(c echo.Context) error {
	labelId := cast.ToInt64(c.Param("id"))
	if labelId == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid label id", nil)
	}
	var payload struct {
		DeviceId string `json:"device_id"`
		ChatId   string `json:"chat_id"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.DeviceId == "" || payload.ChatId == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "device_id and chat_id are required", nil)
	}
	link := &domain.ChatLabelLink{
		ID:       common.UUIDint64(),
		LabelId:  labelId,
		DeviceId: payload.DeviceId,
		WaChatId: payload.ChatId,
	}
	err := GetDB(c).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "label_id"}, {Name: "device_id"}, {Name: "wa_chat_id"}},
		DoNothing: true,
	}).Create(link).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "ASSIGN_FAILED", "Failed to assign label", err.Error())
	}
	return ok(c, map[string]interface{}{"assigned": true})
}

func postUnassignLabel(c echo.Context) error {
	labelId := cast.ToInt64(c.Param("id"))
	if labelId == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid label id", nil)
	}
	var payload struct {
		DeviceId string `json:"device_id"`
		ChatId   string `json:"chat_id"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	err := GetDB(c).
		Where("label_id = ? AND device_id = ? AND wa_chat_id = ?", labelId, payload.DeviceId, payload.ChatId).
		Delete(&domain.ChatLabelLink{}).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "UNASSIGN_FAILED", "Failed to unassign label", err.Error())
	}
	return ok(c, map[string]interface{}{"unassigned": true})
}

// getChatLabels returns label assignments for one chat of a device.
// Query params: chat_id.
func getChatLabels(c echo.Context) error {
	deviceId := c.Param("id")
	chatId := c.QueryParam("chat_id")
	if chatId == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "chat_id is required", nil)
	}
	var labels []domain.ChatLabel
	err := GetDB(c).
		Joins("JOIN chat_label_link ON chat_label_link.label_id = chat_label.id").
		Where("chat_label_link.device_id = ? AND chat_label_link.wa_chat_id = ?", deviceId, chatId).
		Find(&labels).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list chat labels", err.Error())
	}
	return ok(c, map[string]interface{}{"labels": labels})
}

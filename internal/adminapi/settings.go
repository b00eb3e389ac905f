package adminapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nmoller/wapanel/internal/domain"
	"github.com/nmoller/wapanel/internal/webserver"
)

func registerSettingsRoutes() {
	webserver.ApiGET("/settings", listSettings)
	webserver.ApiPOST("/settings", postUpdateSetting)
	webserver.ApiGET("/oprlogs", listOprLogs)
}

func listSettings(c echo.Context) error {
	var items []domain.SysConfig
	q := GetDB(c).Order("sort ASC")
	if category := c.QueryParam("type"); category != "" {
		q = q.Where("type = ?", category)
	}
	if err := q.Find(&items).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list settings", err.Error())
	}
	return ok(c, map[string]interface{}{"settings": items})
}

// postUpdateSetting updates one config value by (type, name).
func postUpdateSetting(c echo.Context) error {
	var payload struct {
		Type  string `json:"type"`
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.Type == "" || payload.Name == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "type and name are required", nil)
	}
	err := GetDB(c).Model(&domain.SysConfig{}).
		Where("type = ? AND name = ?", payload.Type, payload.Name).
		Updates(map[string]interface{}{"value": payload.Value, "updated_at": time.Now()}).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update setting", err.Error())
	}
	oprLog(c, "setting_update", payload.Type+"."+payload.Name)
	return ok(c, map[string]interface{}{"updated": true})
}

func listOprLogs(c echo.Context) error {
	var logs []domain.SysOprLog
	if err := GetDB(c).Order("opt_time DESC").Limit(200).Find(&logs).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list operator logs", err.Error())
	}
	return ok(c, map[string]interface{}{"logs": logs})
}

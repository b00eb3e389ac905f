package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nmoller/wapanel/internal/domain"
	"github.com/nmoller/wapanel/internal/webserver"
	"github.com/nmoller/wapanel/pkg/common"
	"github.com/spf13/cast"
	"gorm.io/gorm"
)

func registerTemplateRoutes() {
	webserver.ApiGET("/whatsapp/templates", listTemplates)
	webserver.ApiPOST("/whatsapp/templates", postCreateTemplate)
	webserver.ApiPUT("/whatsapp/templates/:id", putUpdateTemplate)
	webserver.ApiDELETE("/whatsapp/templates/:id", deleteTemplate)
	webserver.ApiPOST("/whatsapp/templates/:id/used", postTemplateUsed)
}

func listTemplates(c echo.Context) error {
	var tpls []domain.MsgTemplate
	q := GetDB(c).Order("usage_count DESC, name ASC")
	if category := c.QueryParam("category"); category != "" {
		q = q.Where("category = ?", category)
	}
	if err := q.Find(&tpls).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list templates", err.Error())
	}
	return ok(c, map[string]interface{}{"templates": tpls})
}

func postCreateTemplate(c echo.Context) error {
	var payload domain.MsgTemplate
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.Name == "" || payload.Content == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "name and content are required", nil)
	}
	payload.ID = common.UUIDint64()
	payload.UsageCount = 0
	if err := GetDB(c).Create(&payload).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create template", err.Error())
	}
	oprLog(c, "template_create", "created template "+payload.Name)
	return ok(c, map[string]interface{}{"id": payload.ID})
}

func putUpdateTemplate(c echo.Context) error {
	id := cast.ToInt64(c.Param("id"))
	if id == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid template id", nil)
	}
	var payload struct {
		Name     string `json:"name"`
		Content  string `json:"content"`
		Category string `json:"category"`
		Shortcut string `json:"shortcut"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	updates := map[string]interface{}{}
	if payload.Name != "" {
		updates["name"] = payload.Name
	}
	if payload.Content != "" {
		updates["content"] = payload.Content
	}
	if payload.Category != "" {
		updates["category"] = payload.Category
	}
	if payload.Shortcut != "" {
		updates["shortcut"] = payload.Shortcut
	}
	if len(updates) == 0 {
		return ok(c, map[string]interface{}{"updated": false})
	}
	if err := GetDB(c).Model(&domain.MsgTemplate{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update template", err.Error())
	}
	return ok(c, map[string]interface{}{"updated": true})
}

func deleteTemplate(c echo.Context) error {
	id := cast.ToInt64(c.Param("id"))
	if id == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid template id", nil)
	}
	if err := GetDB(c).Delete(&domain.MsgTemplate{}, id).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete template", err.Error())
	}
	oprLog(c, "template_delete", "deleted template "+c.Param("id"))
	return ok(c, map[string]interface{}{"deleted": true})
}

// postTemplateUsed bumps the usage counter so frequent templates float
// to the top of the picker.
func postTemplateUsed(c echo.Context) error {
	id := cast.ToInt64(c.Param("id"))
	if id == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid template id", nil)
	}
	err := GetDB(c).Model(&domain.MsgTemplate{}).Where("id = ?", id).
		Update("usage_count", gorm.Expr("usage_count + 1")).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update usage count", err.Error())
	}
	return ok(c, map[string]interface{}{"updated": true})
}

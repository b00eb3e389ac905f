package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nmoller/wapanel/internal/provider"
	"github.com/nmoller/wapanel/internal/webserver"
)

func registerGroupRoutes() {
	webserver.ApiGET("/whatsapp/devices/:id/groups", getGroups)
	webserver.ApiPOST("/whatsapp/devices/:id/groups", postCreateGroup)
	webserver.ApiGET("/whatsapp/devices/:id/groups/metadata", getGroupMetadata)
	webserver.ApiPOST("/whatsapp/devices/:id/groups/participants", postGroupParticipants)
	webserver.ApiPOST("/whatsapp/devices/:id/groups/subject", postGroupSubject)
	webserver.ApiPOST("/whatsapp/devices/:id/groups/description", postGroupDescription)
	webserver.ApiPOST("/whatsapp/devices/:id/groups/leave", postLeaveGroup)
	webserver.ApiPOST("/whatsapp/devices/:id/chats/profile-photo", postImportProfilePhoto)
}

func getGroups(c echo.Context) error {
	deviceId := c.Param("id")
	p, err := GetProviders(c).ForDevice(c.Request().Context(), deviceId)
	if err != nil {
		return providerFail(c, err)
	}
	groups, err := p.GetGroups(c.Request().Context(), deviceId)
	if err != nil {
		return providerFail(c, err)
	}
	return ok(c, map[string]interface{}{"groups": groups})
}

// postCreateGroup creates a group chat (session variant only).
// Body JSON: { "name": "...", "participants": ["...@s.whatsapp.net"] }
func postCreateGroup(c echo.Context) error {
	deviceId := c.Param("id")
	var payload struct {
		Name         string   `json:"name"`
		Participants []string `json:"participants"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.Name == "" || len(payload.Participants) == 0 {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "name and participants are required", nil)
	}

	p, err := GetProviders(c).ForDevice(c.Request().Context(), deviceId)
	if err != nil {
		return providerFail(c, err)
	}
	info, err := p.CreateGroup(c.Request().Context(), deviceId, payload.Name, payload.Participants)
	if err != nil {
		return providerFail(c, err)
	}
	oprLog(c, "group_create", "created group "+payload.Name)
	return ok(c, info)
}

func getGroupMetadata(c echo.Context) error {
	deviceId := c.Param("id")
	groupId := c.QueryParam("group_id")
	if groupId == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "group_id is required", nil)
	}
	p, err := GetProviders(c).ForDevice(c.Request().Context(), deviceId)
	if err != nil {
		return providerFail(c, err)
	}
	info, err := p.GetGroupMetadata(c.Request().Context(), deviceId, groupId)
	if err != nil {
		return providerFail(c, err)
	}
	return ok(c, info)
}

// postGroupParticipants applies one participant mutation.
// Body JSON: { "group_id": "...", "participants": [...], "action": "add|remove|promote|demote" }
func postGroupParticipants(c echo.Context) error {
	deviceId := c.Param("id")
	var payload struct {
		GroupId      string   `json:"group_id"`
		Participants []string `json:"participants"`
		Action       string   `json:"action"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.GroupId == "" || len(payload.Participants) == 0 || payload.Action == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "group_id, participants and action are required", nil)
	}

	p, err := GetProviders(c).ForDevice(c.Request().Context(), deviceId)
	if err != nil {
		return providerFail(c, err)
	}
	err = p.UpdateGroupParticipants(c.Request().Context(), deviceId, payload.GroupId,
		payload.Participants, provider.GroupAction(payload.Action))
	if err != nil {
		return providerFail(c, err)
	}
	oprLog(c, "group_participants", payload.Action+" on group "+payload.GroupId)
	return ok(c, map[string]interface{}{"applied": true})
}

func postGroupSubject(c echo.Context) error {
	deviceId := c.Param("id")
	var payload struct {
		GroupId string `json:"group_id"`
		Subject string `json:"subject"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.GroupId == "" || payload.Subject == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "group_id and subject are required", nil)
	}
	p, err := GetProviders(c).ForDevice(c.Request().Context(), deviceId)
	if err != nil {
		return providerFail(c, err)
	}
	if err := p.UpdateGroupSubject(c.Request().Context(), deviceId, payload.GroupId, payload.Subject); err != nil {
		return providerFail(c, err)
	}
	return ok(c, map[string]interface{}{"updated": true})
}

func postGroupDescription(c echo.Context) error {
	deviceId := c.Param("id")
	var payload struct {
		GroupId     string `json:"group_id"`
		Description string `json:"description"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.GroupId == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "group_id is required", nil)
	}
	p, err := GetProviders(c).ForDevice(c.Request().Context(), deviceId)
	if err != nil {
		return providerFail(c, err)
	}
	if err := p.UpdateGroupDescription(c.Request().Context(), deviceId, payload.GroupId, payload.Description); err != nil {
		return providerFail(c, err)
	}
	return ok(c, map[string]interface{}{"updated": true})
}

func postLeaveGroup(c echo.Context) error {
	deviceId := c.Param("id")
	var payload struct {
		GroupId string `json:"group_id"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.GroupId == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "group_id is required", nil)
	}
	p, err := GetProviders(c).ForDevice(c.Request().Context(), deviceId)
	if err != nil {
		return providerFail(c, err)
	}
	if err := p.LeaveGroup(c.Request().Context(), deviceId, payload.GroupId); err != nil {
		return providerFail(c, err)
	}
	oprLog(c, "group_leave", "left group "+payload.GroupId)
	return ok(c, map[string]interface{}{"left": true})
}

// postImportProfilePhoto refreshes the stored profile photo of a chat.
// Body JSON: { "chat_id": "..." }
func postImportProfilePhoto(c echo.Context) error {
	deviceId := c.Param("id")
	var payload struct {
		ChatId string `json:"chat_id"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.ChatId == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "chat_id is required", nil)
	}
	p, err := GetProviders(c).ForDevice(c.Request().Context(), deviceId)
	if err != nil {
		return providerFail(c, err)
	}
	url, err := p.ImportChatProfilePhoto(c.Request().Context(), deviceId, payload.ChatId)
	if err != nil {
		return providerFail(c, err)
	}
	return ok(c, map[string]interface{}{"url": url})
}

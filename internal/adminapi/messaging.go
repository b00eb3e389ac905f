package adminapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/nmoller/wapanel/internal/provider"
	"github.com/nmoller/wapanel/internal/webserver"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

func registerMessagingRoutes() {
	webserver.ApiPOST("/whatsapp/devices/:id/send/text", postSendText)
	webserver.ApiPOST("/whatsapp/devices/:id/send/media", postSendMedia)
	webserver.ApiGET("/whatsapp/devices/:id/chats", getChats)
	webserver.ApiGET("/whatsapp/devices/:id/chats/messages", getChatMessages)
	webserver.ApiPUT("/whatsapp/devices/:id/chats/custom-name", putChatCustomName)
	webserver.ApiGET("/whatsapp/devices/:id/search", getSearchMessages)
}

// postSendText sends a text message through the device's backend.
// Body JSON: { "chat_id": "...", "text": "...", "quoted_message_id": "..." }
func postSendText(c echo.Context) error {
	deviceId := c.Param("id")
	var payload struct {
		ChatId          string `json:"chat_id"`
		Text            string `json:"text"`
		QuotedMessageId string `json:"quoted_message_id"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.ChatId == "" || payload.Text == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "chat_id and text are required", nil)
	}

	p, err := GetProviders(c).ForDevice(c.Request().Context(), deviceId)
	if err != nil {
		return providerFail(c, err)
	}
	result, err := p.SendText(c.Request().Context(), provider.SendTextArgs{
		DeviceId:        deviceId,
		ChatId:          payload.ChatId,
		Text:            payload.Text,
		QuotedMessageId: payload.QuotedMessageId,
	})
	if err != nil {
		return providerFail(c, err)
	}
	return ok(c, result)
}

// postSendMedia sends a media message. Multipart form fields: file,
// chat_id, caption, voice_note, quoted_message_id.
func postSendMedia(c echo.Context) error {
	deviceId := c.Param("id")
	chatId := c.FormValue("chat_id")
	if chatId == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "chat_id is required", nil)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "file is required", err.Error())
	}
	src, err := fileHeader.Open()
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to open upload", err.Error())
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to read upload", err.Error())
	}

	p, err := GetProviders(c).ForDevice(c.Request().Context(), deviceId)
	if err != nil {
		return providerFail(c, err)
	}
	result, err := p.SendMedia(c.Request().Context(), provider.SendMediaArgs{
		DeviceId:        deviceId,
		ChatId:          chatId,
		Data:            data,
		MimeType:        fileHeader.Header.Get("Content-Type"),
		Caption:         c.FormValue("caption"),
		IsVoiceNote:     cast.ToBool(c.FormValue("voice_note")),
		QuotedMessageId: c.FormValue("quoted_message_id"),
	})
	if err != nil {
		return providerFail(c, err)
	}
	return ok(c, result)
}

func getChats(c echo.Context) error {
	deviceId := c.Param("id")
	p, err := GetProviders(c).ForDevice(c.Request().Context(), deviceId)
	if err != nil {
		return providerFail(c, err)
	}
	chats, err := p.GetChats(c.Request().Context(), deviceId)
	if err != nil {
		return providerFail(c, err)
	}
	return ok(c, map[string]interface{}{"chats": chats})
}

// getChatMessages returns history for one chat.
// Query params: chat_id (required), limit.
func getChatMessages(c echo.Context) error {
	deviceId := c.Param("id")
	chatId := c.QueryParam("chat_id")
	if chatId == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "chat_id is required", nil)
	}
	p, err := GetProviders(c).ForDevice(c.Request().Context(), deviceId)
	if err != nil {
		return providerFail(c, err)
	}
	msgs, err := p.GetChatMessages(c.Request().Context(), deviceId, chatId, cast.ToInt(c.QueryParam("limit")))
	if err != nil {
		return providerFail(c, err)
	}
	return ok(c, map[string]interface{}{"messages": msgs})
}

// putChatCustomName sets or clears the operator display name of a chat.
// Body JSON: { "chat_id": "...", "custom_name": "..." }
func putChatCustomName(c echo.Context) error {
	deviceId := c.Param("id")
	var payload struct {
		ChatId     string `json:"chat_id"`
		CustomName string `json:"custom_name"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.ChatId == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "chat_id is required", nil)
	}
	repo := provider.NewGormChatRepository(GetDB(c))
	if err := repo.SetCustomName(c.Request().Context(), deviceId, payload.ChatId, strings.TrimSpace(payload.CustomName)); err != nil {
		zap.L().Warn("adminapi: set custom name failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to set custom name", err.Error())
	}
	oprLog(c, "chat_rename", "renamed chat "+payload.ChatId)
	return ok(c, map[string]interface{}{"updated": true})
}

// getSearchMessages searches message text.
// Query params: q (required), chat_id, limit, from_me.
func getSearchMessages(c echo.Context) error {
	deviceId := c.Param("id")
	query := c.QueryParam("q")
	opts := provider.SearchOptions{
		ChatId: c.QueryParam("chat_id"),
		Limit:  cast.ToInt(c.QueryParam("limit")),
	}
	if raw := c.QueryParam("from_me"); raw != "" {
		fromMe := cast.ToBool(raw)
		opts.FromMe = &fromMe
	}

	p, err := GetProviders(c).ForDevice(c.Request().Context(), deviceId)
	if err != nil {
		return providerFail(c, err)
	}
	hits, err := p.SearchMessages(c.Request().Context(), deviceId, query, opts)
	if err != nil {
		return providerFail(c, err)
	}
	return ok(c, map[string]interface{}{"hits": hits})
}

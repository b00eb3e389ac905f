package adminapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nmoller/wapanel/internal/webserver"
	"go.uber.org/zap"
)

func registerWebhookRoutes() {
	webserver.PubGET("/webhook/whatsapp", getWebhookVerify)
	webserver.PubPOST("/webhook/whatsapp", postWebhookIngest)
}

// getWebhookVerify answers the remote side's subscription handshake: it
// echoes hub.challenge back when the verify token matches.
func getWebhookVerify(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")

	expected := GetApp(c).Config().Whatsapp.WebhookToken
	if mode != "subscribe" || expected == "" || token != expected {
		zap.L().Warn("webhook verification rejected", zap.String("mode", mode), zap.String("ip", c.RealIP()))
		return c.NoContent(http.StatusForbidden)
	}
	return c.String(http.StatusOK, challenge)
}

// postWebhookIngest accepts a delivery and applies it. The response is
// always 200 once the payload parses; item-level failures are logged
// inside the processor so the remote side never retries forever.
func postWebhookIngest(c echo.Context) error {
	processor := GetApp(c).Webhooks()
	if processor == nil {
		return fail(c, http.StatusServiceUnavailable, "WEBHOOK_UNAVAILABLE", "Webhook processor not initialized", nil)
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to read body", err.Error())
	}
	if err := processor.Process(c.Request().Context(), body); err != nil {
		return providerFail(c, err)
	}
	return ok(c, map[string]interface{}{"received": true})
}

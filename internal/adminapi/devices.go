package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/nmoller/wapanel/internal/domain"
	"github.com/nmoller/wapanel/internal/webserver"
	"github.com/nmoller/wapanel/pkg/common"
	"go.uber.org/zap"
)

func registerDeviceRoutes() {
	webserver.ApiGET("/whatsapp/devices", listDevices)
	webserver.ApiPOST("/whatsapp/devices", postCreateDevice)
	webserver.ApiPUT("/whatsapp/devices/:id", putUpdateDevice)
	webserver.ApiDELETE("/whatsapp/devices/:id", deleteDevice)
	webserver.ApiPOST("/whatsapp/devices/:id/init", postInitDevice)
	webserver.ApiPOST("/whatsapp/devices/:id/pairing-code", postPairingCode)
	webserver.ApiPOST("/whatsapp/devices/:id/stop", postStopDevice)
	webserver.ApiPOST("/whatsapp/devices/:id/disconnect", postDisconnectDevice)
}

func listDevices(c echo.Context) error {
	var devs []domain.WaDevice
	if err := GetDB(c).Order("created_at DESC").Find(&devs).Error; err != nil {
		zap.L().Warn("adminapi: list devices failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list devices", err.Error())
	}
	return ok(c, map[string]interface{}{"devices": devs})
}

// postCreateDevice registers a device. Cloud-variant devices carry their
// access token, which is sealed before it touches the database.
func postCreateDevice(c echo.Context) error {
	var payload struct {
		Id                 string `json:"id"`
		Name               string `json:"name"`
		Variant            string `json:"variant"`
		CloudPhoneNumberId string `json:"cloud_phone_number_id"`
		CloudAccessToken   string `json:"cloud_access_token"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	payload.Id = strings.TrimSpace(payload.Id)
	payload.Variant = strings.ToUpper(strings.TrimSpace(payload.Variant))
	if payload.Id == "" || payload.Name == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "id and name are required", nil)
	}
	if payload.Variant != domain.VariantCloud && payload.Variant != domain.VariantSession {
		return fail(c, http.StatusBadRequest, "INVALID_VARIANT", "variant must be CLOUD or SESSION", nil)
	}

	dev := &domain.WaDevice{
		ID:                 payload.Id,
		Name:               payload.Name,
		Variant:            payload.Variant,
		CloudPhoneNumberId: strings.TrimSpace(payload.CloudPhoneNumberId),
		Status:             "created",
	}
	if payload.Variant == domain.VariantCloud {
		if dev.CloudPhoneNumberId == "" || strings.TrimSpace(payload.CloudAccessToken) == "" {
			return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "cloud_phone_number_id and cloud_access_token are required for CLOUD devices", nil)
		}
		sealed, err := common.EncryptSecret(GetApp(c).Config().Whatsapp.EncryptionKey, payload.CloudAccessToken)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "ENCRYPT_FAILED", "Failed to seal access token", err.Error())
		}
		dev.CloudAccessTokenEnc = sealed
	}

	if err := GetDB(c).Create(dev).Error; err != nil {
		zap.L().Warn("adminapi: create device failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create device", err.Error())
	}
	oprLog(c, "device_create", "created device "+dev.ID)
	return ok(c, map[string]interface{}{"id": dev.ID})
}

func putUpdateDevice(c echo.Context) error {
	id := c.Param("id")
	var dev domain.WaDevice
	if err := GetDB(c).Where("id = ?", id).First(&dev).Error; err != nil {
		return fail(c, http.StatusNotFound, "DEVICE_NOT_FOUND", "Device not found", nil)
	}

	var payload struct {
		Name               string `json:"name"`
		CloudPhoneNumberId string `json:"cloud_phone_number_id"`
		CloudAccessToken   string `json:"cloud_access_token"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}

	updates := map[string]interface{}{}
	if payload.Name != "" {
		updates["name"] = payload.Name
	}
	if strings.TrimSpace(payload.CloudPhoneNumberId) != "" {
		updates["cloud_phone_number_id"] = strings.TrimSpace(payload.CloudPhoneNumberId)
	}
	if strings.TrimSpace(payload.CloudAccessToken) != "" {
		sealed, err := common.EncryptSecret(GetApp(c).Config().Whatsapp.EncryptionKey, payload.CloudAccessToken)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "ENCRYPT_FAILED", "Failed to seal access token", err.Error())
		}
		updates["cloud_access_token_enc"] = sealed
	}
	if len(updates) == 0 {
		return ok(c, map[string]interface{}{"updated": false})
	}
	if err := GetDB(c).Model(&domain.WaDevice{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update device", err.Error())
	}
	oprLog(c, "device_update", "updated device "+id)
	return ok(c, map[string]interface{}{"updated": true})
}

func deleteDevice(c echo.Context) error {
	id := c.Param("id")
	if err := GetDB(c).Where("id = ?", id).Delete(&domain.WaDevice{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete device", err.Error())
	}
	oprLog(c, "device_delete", "deleted device "+id)
	return ok(c, map[string]interface{}{"deleted": true})
}

// postInitDevice starts the device's session. Body JSON (optional):
// { "mode": "qr" | "pairing" }
func postInitDevice(c echo.Context) error {
	id := c.Param("id")
	var payload struct {
		Mode string `json:"mode"`
	}
	_ = c.Bind(&payload)
	if payload.Mode == "" {
		payload.Mode = "qr"
	}

	p, err := GetProviders(c).ForDevice(c.Request().Context(), id)
	if err != nil {
		return providerFail(c, err)
	}
	if err := p.InitDevice(c.Request().Context(), id, payload.Mode); err != nil {
		return providerFail(c, err)
	}
	GetDB(c).Model(&domain.WaDevice{}).Where("id = ?", id).Update("status", "connecting")
	return ok(c, map[string]interface{}{"started": true})
}

// postPairingCode requests a phone-number pairing code (session variant).
// Body JSON: { "phone_number": "5989..." }
func postPairingCode(c echo.Context) error {
	id := c.Param("id")
	var payload struct {
		PhoneNumber string `json:"phone_number"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if strings.TrimSpace(payload.PhoneNumber) == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "phone_number is required", nil)
	}

	p, err := GetProviders(c).ForDevice(c.Request().Context(), id)
	if err != nil {
		return providerFail(c, err)
	}
	code, err := p.RequestPairingCode(c.Request().Context(), id, payload.PhoneNumber)
	if err != nil {
		return providerFail(c, err)
	}
	return ok(c, map[string]interface{}{"code": code})
}

func postStopDevice(c echo.Context) error {
	id := c.Param("id")
	p, err := GetProviders(c).ForDevice(c.Request().Context(), id)
	if err != nil {
		return providerFail(c, err)
	}
	if err := p.StopDevice(c.Request().Context(), id); err != nil {
		return providerFail(c, err)
	}
	GetDB(c).Model(&domain.WaDevice{}).Where("id = ?", id).Update("status", "stopped")
	oprLog(c, "device_stop", "stopped device "+id)
	return ok(c, map[string]interface{}{"stopped": true})
}

func postDisconnectDevice(c echo.Context) error {
	id := c.Param("id")
	p, err := GetProviders(c).ForDevice(c.Request().Context(), id)
	if err != nil {
		return providerFail(c, err)
	}
	result, err := p.DisconnectAndClean(c.Request().Context(), id)
	if err != nil {
		return providerFail(c, err)
	}
	GetDB(c).Model(&domain.WaDevice{}).Where("id = ?", id).Update("status", "disconnected")
	oprLog(c, "device_disconnect", "disconnected device "+id)
	return ok(c, result)
}

package adminapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/nmoller/wapanel/internal/app"
	"github.com/nmoller/wapanel/internal/domain"
	"github.com/nmoller/wapanel/internal/provider"
	"github.com/nmoller/wapanel/internal/webserver"
	"github.com/nmoller/wapanel/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Init registers every admin API route. Call after webserver.Init.
func Init() {
	registerAuthRoutes()
	registerDeviceRoutes()
	registerMessagingRoutes()
	registerGroupRoutes()
	registerTemplateRoutes()
	registerLabelRoutes()
	registerSettingsRoutes()
	registerWebhookRoutes()
}

type restResult struct {
	Code   int         `json:"code"`
	Msg    string      `json:"msg"`
	Data   interface{} `json:"data,omitempty"`
	Detail interface{} `json:"detail,omitempty"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, restResult{Code: 0, Msg: "success", Data: data})
}

func fail(c echo.Context, status int, code string, message string, detail interface{}) error {
	return c.JSON(status, restResult{Code: status, Msg: code + ": " + message, Detail: detail})
}

// providerFail renders a backend failure. Classified errors keep their
// kind and HTTP-equivalent status; anything else is a plain 500.
func providerFail(c echo.Context, err error) error {
	var pe *provider.ProviderError
	if errors.As(err, &pe) {
		return fail(c, pe.Status, string(pe.Kind), pe.Message, nil)
	}
	return fail(c, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
}

func GetApp(c echo.Context) app.AppContext {
	return c.Get(webserver.ContextAppKey).(app.AppContext)
}

func GetDB(c echo.Context) *gorm.DB {
	return GetApp(c).DB()
}

func GetProviders(c echo.Context) *provider.Registry {
	return GetApp(c).Providers()
}

// currentUsername extracts the operator name from the verified token.
func currentUsername(c echo.Context) string {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return ""
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	if usr, ok := claims["usr"].(string); ok {
		return usr
	}
	return ""
}

// oprLog records an operator action, best-effort.
func oprLog(c echo.Context, action, remark string) {
	username := currentUsername(c)
	if username == "" {
		username = "system"
	}
	err := GetDB(c).Create(&domain.SysOprLog{
		ID:        common.UUIDint64(),
		OprName:   username,
		OprIp:     c.RealIP(),
		OptAction: action,
		OptDesc:   remark,
		OptTime:   time.Now(),
	}).Error
	if err != nil {
		zap.L().Warn("adminapi: opr log write failed", zap.Error(err))
	}
}

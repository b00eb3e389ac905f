package webserver

import (
	"fmt"
	"net/http"
	"strings"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nmoller/wapanel/internal/app"
	"go.uber.org/zap"
)

// ContextAppKey carries the application context through echo handlers.
const ContextAppKey = "wapanel_app"

const apiPrefix = "/api/v1"

type WebServer struct {
	root   *echo.Echo
	appCtx app.AppContext
}

var server *WebServer

// Init builds the global server: recovery, request logging, app-context
// injection and JWT auth on the API surface. Public routes (login, the
// webhook endpoints, status) skip the token check.
func Init(appCtx app.AppContext) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(ContextAppKey, appCtx)
			return next(c)
		}
	})
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			zap.L().Debug("http request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status))
			return nil
		},
	}))

	e.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(appCtx.Config().Web.Secret),
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			if path == "/status" {
				return true
			}
			if strings.HasPrefix(path, apiPrefix+"/auth/") {
				return true
			}
			if strings.HasPrefix(path, apiPrefix+"/webhook/") {
				return true
			}
			return false
		},
	}))

	e.GET("/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok"})
	})

	server = &WebServer{root: e, appCtx: appCtx}
}

// Listen starts the HTTP listener and blocks.
func Listen() error {
	cfg := server.appCtx.Config().Web
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	zap.S().Infof("webserver listening on %s", addr)
	return server.root.Start(addr)
}

// Echo exposes the underlying router (used in tests).
func Echo() *echo.Echo {
	return server.root
}

func ApiGET(path string, h echo.HandlerFunc) {
	server.root.GET(apiPrefix+path, h)
}

func ApiPOST(path string, h echo.HandlerFunc) {
	server.root.POST(apiPrefix+path, h)
}

func ApiPUT(path string, h echo.HandlerFunc) {
	server.root.PUT(apiPrefix+path, h)
}

func ApiDELETE(path string, h echo.HandlerFunc) {
	server.root.DELETE(apiPrefix+path, h)
}

// PubGET and PubPOST register under the API prefix but on paths the JWT
// skipper leaves open.
func PubGET(path string, h echo.HandlerFunc) {
	server.root.GET(apiPrefix+path, h)
}

func PubPOST(path string, h echo.HandlerFunc) {
	server.root.POST(apiPrefix+path, h)
}

package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/nmoller/wapanel/internal/domain"
	"github.com/nmoller/wapanel/internal/webserver"
	"github.com/nmoller/wapanel/pkg/common"
	"go.uber.org/zap"
)

func registerAuthRoutes() {
	webserver.PubPOST("/auth/login", postLogin)
}

// postLogin verifies operator credentials and issues a signed token.
// Request JSON: { "username": "...", "password": "..." }
func postLogin(c echo.Context) error {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	username := strings.TrimSpace(payload.Username)
	if username == "" || payload.Password == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "username and password are required", nil)
	}

	var operator domain.SysOpr
	if err := GetDB(c).Where("username = ?", username).First(&operator).Error; err != nil {
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
	}
	if !strings.EqualFold(operator.Status, common.ENABLED) {
		return fail(c, http.StatusUnauthorized, "ACCOUNT_DISABLED", "Operator account is disabled", nil)
	}
	hashed := common.Sha256HashWithSalt(payload.Password, common.GetSecretSalt())
	if hashed != operator.Password {
		zap.L().Warn("adminapi: login failed", zap.String("username", username), zap.String("ip", c.RealIP()))
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
	}

	claims := jwt.MapClaims{
		"uid": operator.ID,
		"usr": operator.Username,
		"lvl": operator.Level,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(GetApp(c).Config().Web.Secret))
	if err != nil {
		return fail(c, http.StatusInternalServerError, "TOKEN_FAILED", "Failed to sign token", err.Error())
	}

	GetDB(c).Model(&domain.SysOpr{}).Where("id = ?", operator.ID).Update("last_login", time.Now())
	GetDB(c).Create(&domain.SysOprLog{
		ID:        common.UUIDint64(),
		OprName:   operator.Username,
		OprIp:     c.RealIP(),
		OptAction: "login",
		OptDesc:   "operator login",
		OptTime:   time.Now(),
	})

	return ok(c, map[string]interface{}{
		"token":    signed,
		"username": operator.Username,
		"level":    operator.Level,
		"realname": operator.Realname,
	})
}

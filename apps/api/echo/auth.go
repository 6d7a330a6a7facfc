package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/tenant"
	"github.com/trezcool/gradebook/core/user"
)

const (
	contextClaimsKey = "claims"
	authScheme       = "Bearer"
)

var signingMethod = jwt.SigningMethodHS256

// Claims represents the authorization claims transmitted via a JWT.
// The subject is the user ID.
type Claims struct {
	jwt.RegisteredClaims
	SchoolID string      `json:"school_id"`
	Role     tenant.Role `json:"role"`
}

func (c Claims) Principal() tenant.Principal {
	return tenant.Principal{SchoolID: c.SchoolID, UserID: c.Subject, Role: c.Role}
}

func GetUserClaims(usr user.User, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(conf.JWTExpirationDelta)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		SchoolID: usr.SchoolID,
		Role:     usr.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims, secretKey []byte) (string, error) {
	token := jwt.NewWithClaims(signingMethod, claims)
	ss, err := token.SignedString(secretKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func parseToken(auth string, secretKey []byte) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(auth, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != signingMethod.Alg() {
			return nil, errors.Errorf("unexpected jwt signing method=%v", t.Header["alg"])
		}
		return secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	if claims.Subject == "" || claims.SchoolID == "" || !claims.Role.Valid() {
		return nil, errInvalidToken
	}
	return claims, nil
}

func getContextPrincipal(ctx echo.Context) (tenant.Principal, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(Claims); ok {
		return claims.Principal(), nil
	}
	return tenant.Principal{}, errMissingToken
}

type authApi struct {
	svc      user.Service
	validate *validator.Validate
	conf     *core.Config
}

func registerAuthAPI(g *echo.Group, svc user.Service, validate *validator.Validate, conf *core.Config) {
	api := authApi{svc: svc, validate: validate, conf: conf}

	ag := g.Group("/auth")
	ag.POST("/login", api.login)
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.School, data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(GetUserClaims(usr, api.conf), []byte(api.conf.SecretKey))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr})
}

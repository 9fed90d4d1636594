package echoapi

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/account"
)

var (
	contextClaimsKey   = "claims"
	contextIdentityKey = "identity"

	errMissingToken   = core.NewAuthenticationError("missing or malformed jwt")
	errInvalidToken   = core.NewAuthenticationError("invalid or expired jwt")
	errRefreshExpired = core.NewPermissionError("refresh has expired")
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	Role         string `json:"role"`
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	jwt.RegisteredClaims
}

// NewClaims returns the claims of a token identifying id.
// origIat is the issue time of the first token of a refresh chain.
func NewClaims(conf *core.Config, id account.Identity, origIat ...int64) *Claims {
	now := time.Now()

	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		Role:         id.Role.String(),
		OrigIssuedAt: oriat,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    conf.AppName,
			Subject:   id.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(conf.Server.JWTExpirationDelta)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func parseToken(conf *core.Config, tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(
		tokenStr,
		claims,
		func(*jwt.Token) (interface{}, error) { return []byte(conf.SecretKey), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

// authMiddleware resolves the Identity of the request from its bearer token.
func authMiddleware(conf *core.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(tokenStr) == "" {
				return errMissingToken
			}

			claims, err := parseToken(conf, strings.TrimSpace(tokenStr))
			if err != nil {
				return err
			}
			role, err := account.ParseRole(claims.Role)
			if err != nil {
				return errInvalidToken
			}

			ctx.Set(contextClaimsKey, *claims)
			ctx.Set(contextIdentityKey, account.Identity{ID: claims.Subject, Role: role})
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(Claims); ok {
		return claims, nil
	}
	return Claims{}, errMissingToken
}

func getContextIdentity(ctx echo.Context) (account.Identity, error) {
	if id, ok := ctx.Get(contextIdentityKey).(account.Identity); ok {
		return id, nil
	}
	return account.Identity{}, errMissingToken
}

// refreshToken issues a new token for the request principal, within the refresh window of the original token.
func refreshToken(ctx echo.Context, conf *core.Config, svc *account.Service) (string, account.Profile, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", account.Profile{}, err
	}
	id, err := getContextIdentity(ctx)
	if err != nil {
		return "", account.Profile{}, err
	}

	// check if the account still exists
	profile, err := svc.GetProfile(ctx.Request().Context(), id)
	if err != nil {
		if core.IsNotFound(err) {
			return "", account.Profile{}, errInvalidToken
		}
		return "", account.Profile{}, errors.Wrap(err, "getting profile")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", account.Profile{}, errRefreshExpired
	}

	token, err := GenerateToken(conf, NewClaims(conf, id, claims.OrigIssuedAt))
	return token, profile, err
}

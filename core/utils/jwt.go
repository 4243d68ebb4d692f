package utils

import (
	"fmt"

	"rosterhub/core/config"
	"rosterhub/core/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenData is the subset of JWT claims the API cares about.
type TokenData struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	IsAdmin        bool
}

type appClaims struct {
	OrganizationID string `json:"org_id"`
	IsAdmin        bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// ValidateAndParseToken verifies the bearer token signature and expiry and
// extracts the caller identity.
func ValidateAndParseToken(tokenString string) (*TokenData, error) {
	cfg, ok := config.GetSafe()
	if !ok {
		return nil, errors.NewAppError(errors.ErrInternalServer, "config not initialized", nil)
	}

	claims := &appClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.JWT.Secret), nil
	})
	if err != nil {
		return nil, errors.NewAppError(errors.ErrTokenExpired, "invalid or expired token", err)
	}
	if !token.Valid {
		return nil, errors.NewAppError(errors.ErrInvalidTokenFormat, "invalid token", nil)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidTokenFormat, "invalid subject claim", err)
	}

	data := &TokenData{UserID: userID, IsAdmin: claims.IsAdmin}
	if claims.OrganizationID != "" {
		if orgID, err := uuid.Parse(claims.OrganizationID); err == nil {
			data.OrganizationID = orgID
		}
	}
	return data, nil
}

// ToString renders any stringer-ish value the way log fields expect.
func ToString(v any) string {
	return fmt.Sprintf("%v", v)
}

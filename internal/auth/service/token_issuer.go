package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trackfit/backend/internal/common/clock"
	"github.com/trackfit/backend/internal/common/constants"
	commoncrypto "github.com/trackfit/backend/internal/common/crypto"
	userdomain "github.com/trackfit/backend/internal/user/domain"
)

type TokenIssuer struct {
	jwtSecret   []byte
	idGenerator commoncrypto.IDGenerator
	clock       clock.Clock
}

func NewTokenIssuer(jwtSecret string, idGenerator commoncrypto.IDGenerator, clock clock.Clock) *TokenIssuer {
	return &TokenIssuer{
		jwtSecret:   []byte(jwtSecret),
		idGenerator: idGenerator,
		clock:       clock,
	}
}

// Issue signs an HS256 token for the user that expires
// constants.AccessTokenTTL after now.
func (ti *TokenIssuer) Issue(userID userdomain.ID) (string, string, error) {
	jti, err := ti.idGenerator.NewID()
	if err != nil {
		return "", "", fmt.Errorf("generate jti: %w", err)
	}

	now := ti.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   string(userID),
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(constants.AccessTokenTTL)),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := t.SignedString(ti.jwtSecret)
	if err != nil {
		return "", "", fmt.Errorf("sign token: %w", err)
	}

	observeTokenIssued()
	return tokenString, jti, nil
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/odhis101/k3c-platform/internal/config"
	"github.com/odhis101/k3c-platform/internal/model"
)

// Claims 令牌载荷
type Claims struct {
	UserId int64          `json:"uid"`
	Role   model.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer 令牌签发器
type TokenIssuer struct {
	secret []byte
	expiry time.Duration
}

// NewTokenIssuer 创建令牌签发器
func NewTokenIssuer(cfg config.AuthConfig) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(cfg.JWTSecret),
		expiry: time.Duration(cfg.ExpiryHours) * time.Hour,
	}
}

// Issue 签发令牌
func (t *TokenIssuer) Issue(user *model.UserModel) (string, error) {
	now := time.Now()
	claims := Claims{
		UserId: user.Id,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.Id),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse 解析并校验令牌
func (t *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("无效的令牌")
	}
	return claims, nil
}

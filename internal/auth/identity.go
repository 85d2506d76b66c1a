// Package auth 会话令牌（HS256 JWT）的签发与校验。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName 浏览器会话 cookie。
const CookieName = "store_session"

var ErrInvalidToken = errors.New("auth: invalid token")

// Identity 当前请求的调用者。
type Identity struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

type claims struct {
	UserID  string `json:"userId"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// Sign 签发一个令牌，ttl<=0 表示不过期。
func Sign(secret string, id Identity, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("auth: empty secret")
	}
	now := time.Now()
	c := claims{
		UserID:  id.ID,
		Email:   id.Email,
		IsAdmin: id.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id.ID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

// Parse 校验签名与有效期并还原 Identity。
func Parse(secret, token string) (Identity, error) {
	if secret == "" || token == "" {
		return Identity{}, ErrInvalidToken
	}
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.UserID == "" && c.Email == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{ID: c.UserID, Email: c.Email, IsAdmin: c.IsAdmin}, nil
}

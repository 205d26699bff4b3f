// Package token 提供了会话令牌（JWT）的签发与校验。
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionManager 负责会话令牌的生成和验证。
type SessionManager struct {
	secretKey []byte        // secretKey 用于签名和验证 token 的密钥
	ttl       time.Duration // ttl 定义了令牌的有效期
	now       func() time.Time
}

// SessionClaims 是会话令牌中存储的数据，SessionID 即会话存储的键。
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewSessionManager 创建一个新的 SessionManager。
// secret 为空时随机生成一个密钥，此时进程重启后旧令牌全部失效。
func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	if secret == "" {
		secret = GenerateRandomString(32)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{secretKey: []byte(secret), ttl: ttl, now: time.Now}
}

// NewSession 生成一个新的会话 ID 以及对应的令牌。
func (m *SessionManager) NewSession() (sessionID, tokenString string, err error) {
	sessionID = uuid.NewString()
	tokenString, err = m.GenerateToken(sessionID)
	return sessionID, tokenString, err
}

// GenerateToken 为给定的会话 ID 签发令牌。
func (m *SessionManager) GenerateToken(sessionID string) (string, error) {
	now := m.now()
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	// 使用 HS256 签名
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// VerifyToken 验证令牌并返回其中的会话 ID。
func (m *SessionManager) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return "", errors.New("invalid token")
	}
	return claims.SessionID, nil
}

// TTL 返回令牌有效期。
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// GenerateRandomString generates a random hex string of a given length.
func GenerateRandomString(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a less random string on error
		return fmt.Sprintf("fallback%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

package token

import (
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/hertz-contrib/jwt"

	"MediCare/config"
	"MediCare/pkg/errors"
)

const (
	IdentityKey = "uid"
	RoleKey     = "role"

	typeRefresh = "refresh"
)

// sharedGenerator 由 middleware 与 token 包共同使用
var sharedGenerator *jwt.HertzJWTMiddleware

func Init() error {
	var err error
	sharedGenerator, err = jwt.New(&jwt.HertzJWTMiddleware{
		Key:         []byte(config.Cfg.JWTSecret),
		Timeout:     time.Duration(config.Cfg.JWTExpireMinutes) * time.Minute,
		MaxRefresh:  time.Duration(config.Cfg.JWTRefreshDays) * 24 * time.Hour,
		IdentityKey: IdentityKey,
		TimeFunc:    time.Now,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token generator: %w", err)
	}
	return nil
}

// GetGenerator 供 middleware 使用
func GetGenerator() *jwt.HertzJWTMiddleware {
	return sharedGenerator
}

// Pair 一次签发的 token 对
type Pair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// GenerateTokenPair 签发 access token（携带角色）和 refresh token
func GenerateTokenPair(userID, role string) (Pair, error) {
	if sharedGenerator == nil {
		return Pair{}, errors.ErrTokenGeneratorNotInitialized
	}

	now := sharedGenerator.TimeFunc()
	accessExp := now.Add(sharedGenerator.Timeout)

	access, err := sign(jwtv5.MapClaims{
		IdentityKey: userID,
		RoleKey:     role,
		"iat":       now.Unix(),
		"exp":       accessExp.Unix(),
	})
	if err != nil {
		return Pair{}, fmt.Errorf("failed to generate access token: %w", err)
	}

	refresh, err := sign(jwtv5.MapClaims{
		IdentityKey: userID,
		"type":      typeRefresh,
		"iat":       now.Unix(),
		"exp":       now.Add(sharedGenerator.MaxRefresh).Unix(),
	})
	if err != nil {
		return Pair{}, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(sharedGenerator.Timeout.Seconds()),
	}, nil
}

// ValidateRefreshToken 校验 refresh token 并返回用户ID
func ValidateRefreshToken(tokenString string) (string, error) {
	if sharedGenerator == nil {
		return "", errors.ErrTokenGeneratorNotInitialized
	}

	tok, err := jwtv5.ParseWithClaims(tokenString, jwtv5.MapClaims{}, func(t *jwtv5.Token) (interface{}, error) {
		if t.Method != jwtv5.SigningMethodHS256 {
			return nil, fmt.Errorf("%w: %v, expected HS256", errors.ErrUnexpectedSigningMethod, t.Header["alg"])
		}
		return sharedGenerator.Key, nil
	}, jwtv5.WithTimeFunc(sharedGenerator.TimeFunc))
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !tok.Valid {
		return "", errors.ErrInvalidToken
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return "", errors.ErrInvalidTokenClaims
	}
	if t, _ := claims["type"].(string); t != typeRefresh {
		return "", errors.ErrInvalidTokenType
	}

	uid := ClaimString(claims, IdentityKey)
	if uid == "" {
		return "", errors.ErrUserIDNotFound
	}
	return uid, nil
}

// ClaimString 读取字符串 claim，兼容被解析为数字的旧 token
func ClaimString(claims map[string]interface{}, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

func sign(claims jwtv5.MapClaims) (string, error) {
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(sharedGenerator.Key)
}

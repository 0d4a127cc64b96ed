package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken 表示令牌未通过校验，不区分具体原因。
var ErrInvalidToken = errors.New("invalid token")

// TokenClaims 表示调用方令牌中的业务字段。Subject 即调用方 ID。
type TokenClaims struct {
	TokenType string `json:"token_type,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier 只负责校验上游签发的 RS256 访问令牌，本服务不签发令牌。
type TokenVerifier struct {
	publicKey *rsa.PublicKey
	parser    *jwt.Parser
}

// NewTokenVerifier 解析 PEM 格式的 RSA 公钥。issuer 非空时要求令牌的 iss 与之一致。
func NewTokenVerifier(publicKeyPEM []byte, issuer string) (*TokenVerifier, error) {
	if len(publicKeyPEM) == 0 {
		return nil, errors.New("public key pem is required")
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse rsa public key: %w", err)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &TokenVerifier{publicKey: publicKey, parser: jwt.NewParser(opts...)}, nil
}

// LoadTokenVerifier 从 path 读取公钥。
func LoadTokenVerifier(path, issuer string) (*TokenVerifier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return NewTokenVerifier(raw, issuer)
}

// Verify 解析并验证 JWT，返回其中的调用方信息。
func (v *TokenVerifier) Verify(tokenString string) (*TokenClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	token, err := v.parser.ParseWithClaims(tokenString, &TokenClaims{}, func(*jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: claims", ErrInvalidToken)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.TokenType != "" && claims.TokenType != "access" {
		return nil, fmt.Errorf("%w: token type %q", ErrInvalidToken, claims.TokenType)
	}
	return claims, nil
}

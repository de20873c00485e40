package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// MinSecretLength - минимальная длина секрета HMAC в байтах
	MinSecretLength = 32
	DefaultIssuer   = "lumoria-core"
	DefaultTokenTTL = 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

// Claims - утверждения токена, выданного сервисом авторизации
type Claims struct {
	ActorID  string `json:"actor_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Identity - непрозрачная личность участника, подтверждённая токеном
type Identity struct {
	ActorID  string
	Username string
	IsAdmin  bool
}

// Validator проверяет и выпускает HS256 токены. Безопасен для
// параллельного использования.
type Validator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewValidator создаёт валидатор из base64 секрета. Пустой секрет
// заменяется случайным: токены живут только до перезапуска процесса.
func NewValidator(secretB64, issuer string) (*Validator, error) {
	var secret []byte
	if secretB64 == "" {
		secret = make([]byte, MinSecretLength)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
	} else {
		var err error
		if secret, err = ParseSecret(secretB64); err != nil {
			return nil, err
		}
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &Validator{secret: secret, issuer: issuer, now: time.Now}, nil
}

// ParseSecret декодирует base64 секрет и проверяет длину
func ParseSecret(secretB64 string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(secretB64)
	if err != nil {
		return nil, fmt.Errorf("secret is not base64: %w", err)
	}
	if len(decoded) < MinSecretLength {
		return nil, fmt.Errorf("secret key must be at least %d bytes", MinSecretLength)
	}
	return decoded, nil
}

// GenerateSecureSecret генерирует новый base64 секрет
func GenerateSecureSecret() (string, error) {
	b := make([]byte, MinSecretLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Issue выпускает токен. Используется инструментами и тестами;
// в проде токены выдаёт внешний сервис.
func (v *Validator) Issue(id Identity, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := v.now()
	claims := &Claims{
		ActorID:  id.ActorID,
		Username: id.Username,
		IsAdmin:  id.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    v.issuer,
			Subject:   id.ActorID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Validate проверяет подпись, срок и издателя токена
func (v *Validator) Validate(tokenString string) (Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	},
		jwt.WithIssuer(v.issuer),
		jwt.WithTimeFunc(v.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ActorID == "" {
		return Identity{}, fmt.Errorf("%w: empty actor id", ErrInvalidToken)
	}

	return Identity{ActorID: claims.ActorID, Username: claims.Username, IsAdmin: claims.IsAdmin}, nil
}

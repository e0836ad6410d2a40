// tokens выпускает и проверяет подписанные JWT.
//
// Access-токен несёт {id} и подписан секретом JWT_SECRET, refresh-токен несёт
// {userId, tokenId} и подписан отдельным секретом. Проверка чисто
// криптографическая и временная: хранилище здесь не участвует.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken - неверная подпись, формат, издатель или полезная нагрузка.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired - срок действия истёк. Оборачивает ErrInvalidToken.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
)

// accessLeeway - допуск на расхождение часов для access-токенов.
const accessLeeway = 5 * time.Second

// Options - параметры Codec.
type Options struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      []string
	// Now - источник времени; nil означает time.Now.
	Now func() time.Time
}

// Codec - HS256-кодек access и refresh токенов.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	audience      []string
	now           func() time.Time
}

type accessClaims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// RefreshClaims - полезная нагрузка refresh-токена.
type RefreshClaims struct {
	UserID  uuid.UUID `json:"userId"`
	TokenID uuid.UUID `json:"tokenId"`
	jwt.RegisteredClaims
}

// New создаёт Codec. Оба секрета обязательны.
func New(opts Options) (*Codec, error) {
	const op = "tokens.New"

	if opts.AccessSecret == "" || opts.RefreshSecret == "" {
		return nil, fmt.Errorf("%s: signing secrets must not be empty", op)
	}

	if opts.AccessTTL <= 0 || opts.RefreshTTL <= 0 {
		return nil, fmt.Errorf("%s: token lifetimes must be positive", op)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Codec{
		accessSecret:  []byte(opts.AccessSecret),
		refreshSecret: []byte(opts.RefreshSecret),
		accessTTL:     opts.AccessTTL,
		refreshTTL:    opts.RefreshTTL,
		issuer:        opts.Issuer,
		audience:      opts.Audience,
		now:           now,
	}, nil
}

// IssueAccessToken подписывает access-токен с {id: userID}.
func (c *Codec) IssueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	const op = "tokens.IssueAccessToken"

	now := c.now().UTC()
	exp := now.Add(c.accessTTL)

	claims := accessClaims{
		ID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.issuer,
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings(c.audience),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

// IssueRefreshToken подписывает refresh-токен с {userId, tokenId}.
func (c *Codec) IssueRefreshToken(userID, tokenID uuid.UUID) (string, time.Time, error) {
	const op = "tokens.IssueRefreshToken"

	now := c.now().UTC()
	exp := now.Add(c.refreshTTL)

	claims := RefreshClaims{
		UserID:  userID,
		TokenID: tokenID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

// VerifyRefreshToken проверяет подпись и срок refresh-токена.
// Допуска на часы нет: истёкший токен отвергается сразу.
func (c *Codec) VerifyRefreshToken(token string) (*RefreshClaims, error) {
	const op = "tokens.VerifyRefreshToken"

	var claims RefreshClaims
	if err := c.parse(token, &claims, c.refreshSecret, 0); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if claims.UserID == uuid.Nil || claims.TokenID == uuid.Nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return &claims, nil
}

// VerifyAccessToken проверяет access-токен и возвращает ID пользователя.
func (c *Codec) VerifyAccessToken(token string) (uuid.UUID, error) {
	const op = "tokens.VerifyAccessToken"

	var claims accessClaims
	opts := []jwt.ParserOption{}
	if len(c.audience) > 0 {
		opts = append(opts, jwt.WithAudience(c.audience...))
	}
	if err := c.parse(token, &claims, c.accessSecret, accessLeeway, opts...); err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	uid, err := uuid.Parse(claims.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return uid, nil
}

func (c *Codec) parse(token string, claims jwt.Claims, secret []byte, leeway time.Duration, extra ...jwt.ParserOption) error {
	opts := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
		jwt.WithLeeway(leeway),
	}, extra...)
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}

		return ErrInvalidToken
	}

	if !parsed.Valid {
		return ErrInvalidToken
	}

	return nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"house-alert-api/models"
)

const (
	AccessTokenDuration  = 15 * time.Minute
	RefreshTokenDuration = 7 * 24 * time.Hour

	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrInvalidToken   = errors.New("invalid token")
	ErrUnknownAccount = errors.New("account no longer exists")
)

// AccountReader loads the current state of an account on refresh.
type AccountReader interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
}

type JWTService struct {
	secretKey []byte
	issuer    string
	accounts  AccountReader
	now       func() time.Time
}

type Claims struct {
	Email     string `json:"email"`
	Tier      string `json:"tier"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

func NewJWTService(secretKey, issuer string, accounts AccountReader) *JWTService {
	return &JWTService{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		accounts:  accounts,
		now:       time.Now,
	}
}

// IssueTokens creates an access and refresh token pair for user.
func (j *JWTService) IssueTokens(user models.AuthUser) (*models.AuthResponse, error) {
	accessToken, err := j.GenerateToken(user, TokenTypeAccess, AccessTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("error generating access token: %w", err)
	}

	refreshToken, err := j.GenerateToken(user, TokenTypeRefresh, RefreshTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %w", err)
	}

	return &models.AuthResponse{
		Token:        accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    j.now().Add(AccessTokenDuration),
		User:         user,
	}, nil
}

func (j *JWTService) GenerateToken(user models.AuthUser, tokenType string, duration time.Duration) (string, error) {
	now := j.now()
	claims := Claims{
		Email:     user.Email,
		Tier:      string(user.Tier),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.AccountID,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

func (j *JWTService) parse(tokenString, tokenType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	}, jwt.WithIssuer(j.issuer), jwt.WithTimeFunc(j.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TokenType != tokenType || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateToken checks an access token and returns the caller it names.
func (j *JWTService) ValidateToken(tokenString string) (*models.AuthUser, error) {
	claims, err := j.parse(tokenString, TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	return &models.AuthUser{
		AccountID: claims.Subject,
		Email:     claims.Email,
		Tier:      models.SubscriptionTier(claims.Tier),
	}, nil
}

// RefreshToken exchanges a refresh token for a new pair carrying the
// account's current tier.
func (j *JWTService) RefreshToken(ctx context.Context, refreshTokenString string) (*models.AuthResponse, error) {
	claims, err := j.parse(refreshTokenString, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	account, err := j.accounts.GetAccount(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownAccount, err)
	}

	return j.IssueTokens(models.AuthUser{
		AccountID: account.ID,
		Email:     account.Email,
		Tier:      account.Tier,
	})
}

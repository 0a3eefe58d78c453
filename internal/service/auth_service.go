package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"marketmaker/internal/models"
	"marketmaker/internal/repository"
	"marketmaker/pkg/crypto"
)

// Ошибки сервиса аутентификации
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserInactive       = errors.New("user is inactive")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// authTokenTTL - время жизни JWT
const authTokenTTL = 24 * time.Hour

// AuthClaims - клеймы JWT админ-консоли
type AuthClaims struct {
	UserID   int    `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthService предоставляет аутентификацию админ-консоли.
//
// Отвечает за:
// - Проверку логина/пароля (bcrypt)
// - Выпуск и валидацию JWT (HS256)
// - Создание дефолтного администратора при первом запуске
type AuthService struct {
	keysRepo  KeysRepositoryInterface
	jwtSecret []byte
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(keysRepo KeysRepositoryInterface, jwtSecret string) *AuthService {
	return &AuthService{
		keysRepo:  keysRepo,
		jwtSecret: []byte(jwtSecret),
	}
}

// Login проверяет учетные данные и возвращает подписанный JWT.
// Несуществующий пользователь и неверный пароль неразличимы для клиента.
func (s *AuthService) Login(username, password string) (string, error) {
	user, err := s.keysRepo.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !user.IsActive {
		return "", ErrUserInactive
	}
	if !crypto.CheckPasswordMatch(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	now := time.Now().UTC()
	claims := AuthClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(authTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken проверяет подпись и срок действия JWT, возвращает клеймы
func (s *AuthService) ValidateToken(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// EnsureDefaultAdmin создает администратора, если пользователя с таким
// именем еще нет. Вызывается при старте сервера.
func (s *AuthService) EnsureDefaultAdmin(username, password string) error {
	_, err := s.keysRepo.GetUserByUsername(username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.keysRepo.CreateUser(&models.User{
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	})
}

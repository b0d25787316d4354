package services

import (
	"context"
	"errors"
	"time"

	"chat-core/internal/db"
	"chat-core/internal/models"
	"chat-core/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

var ErrUserExists = errors.New("username already exists")

type UserService struct{}

func NewUserService() *UserService {
	return &UserService{}
}

func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}

	var user models.User
	query := `INSERT INTO users (id, username, display_name, password_hash) VALUES ($1, $2, $3, $4)
	          RETURNING id, username, display_name, created_at`
	err = db.Pool.QueryRow(ctx, query, uuid.New().String(), req.Username, displayName, string(hash)).
		Scan(&user.ID, &user.Username, &user.DisplayName, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrUserExists
		}
		return nil, err
	}

	return &user, nil
}

func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	var user models.User
	query := `SELECT id, username, display_name, password_hash FROM users WHERE username = $1`
	err := db.Pool.QueryRow(ctx, query, req.Username).
		Scan(&user.ID, &user.Username, &user.DisplayName, &user.PasswordHash)
	if err != nil {
		return nil, errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errors.New("invalid credentials")
	}

	token, err := GenerateJWT(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	refresh, err := GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		Username:     user.Username,
	}, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT id, username, display_name, created_at FROM users ORDER BY display_name`
	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func GenerateJWT(userID, username string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"exp":      time.Now().Add(time.Hour * 72).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(utils.GetEnv("JWT_SECRET", "secret")))
}

func GenerateRefreshToken(userID, username string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"exp":      time.Now().Add(time.Hour * 24 * 30).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(utils.GetEnv("JWT_REFRESH_SECRET", "refresh-secret")))
}

func ValidateToken(tokenString string) (jwt.MapClaims, error) {
	return validateWithSecret(tokenString, utils.GetEnv("JWT_SECRET", "secret"))
}

func ValidateRefreshToken(tokenString string) (jwt.MapClaims, error) {
	return validateWithSecret(tokenString, utils.GetEnv("JWT_REFRESH_SECRET", "refresh-secret"))
}

func validateWithSecret(tokenString, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

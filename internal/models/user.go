package models

import "time"

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token        string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
}

// UserStatus is the payload of the user status endpoint: live presence
// plus the last-seen timestamp recorded on the final disconnect.
type UserStatus struct {
	UserID   string `json:"userId"`
	Status   string `json:"status"`
	IsOnline bool   `json:"isOnline"`
	LastSeen int64  `json:"lastSeen,omitempty"`
}

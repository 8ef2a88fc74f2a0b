package models

import "time"

const (
	RoleStudent   = "student"
	RoleTeacher   = "teacher"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusBlocked = "blocked"
)

type User struct {
	ID           int        `json:"id"`
	FullName     string     `json:"full_name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	PasswordHash string     `json:"-"` // не отдаём наружу
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	ActivatedAt  *time.Time `json:"activated_at,omitempty"`
}

type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"` // email или телефон
	Password   string `json:"password" binding:"required"`
}

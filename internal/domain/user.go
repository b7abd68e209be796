package domain

import (
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserVacation UserStatus = "vacation"
	UserInactive UserStatus = "inactive"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserActive, UserVacation, UserInactive:
		return true
	}
	return false
}

type UserRole string

const (
	RolePlayer UserRole = "player"
	RoleAdmin  UserRole = "admin"
)

type User struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	PhoneNumber   *string    `json:"phone_number,omitempty"`
	Role          UserRole   `json:"role"`
	Status        UserStatus `json:"status"`
	VacationUntil *time.Time `json:"vacation_until,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

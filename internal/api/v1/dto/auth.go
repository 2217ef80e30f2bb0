package dto

import "time"

// RegisterRequestDTO is used for incoming account registration requests
type RegisterRequestDTO struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=100"`
}

// LoginRequestDTO is used for incoming login requests
type LoginRequestDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponseDTO is returned after a successful register or login. The
// token is opaque; clients present it verbatim as a bearer credential.
type AuthResponseDTO struct {
	Token   string     `json:"token"`
	Account AccountDTO `json:"account"`
}

// AccountDTO is the public view of an account
type AccountDTO struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Tier        string    `json:"tier"`
	CreatedAt   time.Time `json:"created_at"`
}

package services

import (
	"errors"

	"github.com/saeid-a/bookingchat/internal/models"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidStatus = errors.New("invalid status")
	ErrChatLocked    = errors.New("conversation is read-only")
)

func validRole(role string) bool {
	return role == models.UserTypeClient || role == models.UserTypeProvider
}

package repository

import (
	"context"

	"github.com/saeid-a/bookingchat/internal/models"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, display_name, role
		FROM users
		WHERE id = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, id).Scan(&user.ID, &user.DisplayName, &user.Role)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

package users

import (
	"strings"
	"time"

	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
	"github.com/angelmondragon/smartpark-backend/pkg/enums"
)

// UserDTO is the transport shape of a profile.
type UserDTO struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Role      enums.UserRole `json:"role"`
	FullName  string         `json:"full_name"`
	CreatedAt time.Time      `json:"created_at"`
}

// CreateUserDTO holds the claims-derived data used to mirror a new profile.
type CreateUserDTO struct {
	ID       string
	Email    string
	Role     enums.UserRole
	FullName string
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if !role.IsValid() {
		role = enums.UserRoleUser
	}
	return &models.User{
		ID:       c.ID,
		Email:    strings.ToLower(strings.TrimSpace(c.Email)),
		Role:     role,
		FullName: strings.TrimSpace(c.FullName),
	}
}

package models

import (
	"time"

	"github.com/kendall-kelly/procurement-api/workflow"
	"gorm.io/gorm"
)

// User is an authenticated member of staff. Supervisors carry a stable
// letter prefix used in their request numbers.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Auth0ID   string         `gorm:"uniqueIndex;not null" json:"auth0_id"` // token 'sub' claim
	Name      string         `gorm:"not null" json:"name"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Role      workflow.Role  `gorm:"type:varchar(32);not null;index" json:"role"`
	Prefix    *string        `gorm:"type:varchar(8);uniqueIndex" json:"prefix,omitempty"` // assigned once, never reused
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// Is reports whether the user holds any of the given roles.
func (u *User) Is(roles ...workflow.Role) bool {
	return u != nil && u.Role.OneOf(roles...)
}

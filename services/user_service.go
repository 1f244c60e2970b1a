package services

import (
	"context"
	"net/mail"
	"strings"

	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ProfileUpdate changes the caller's own name or email.
type ProfileUpdate struct {
	Name  string `json:"name" binding:"omitempty"`
	Email string `json:"email" binding:"omitempty,email"`
}

// UserService manages staff accounts.
type UserService struct {
	db    *gorm.DB
	seq   *SequenceAllocator
	audit AuditRecorder
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db, seq: NewSequenceAllocator(nil), audit: auditRecorderFor(db)}
}

// Register creates the account for an authenticated identity. Supervisors
// receive their request prefix immediately.
func (s *UserService) Register(ctx context.Context, auth0ID string, role workflow.Role, info UserInfo) (*models.User, error) {
	if !role.IsValid() {
		return nil, workflow.Invalid("role", "unknown role "+string(role))
	}
	info.Name = strings.TrimSpace(info.Name)
	info.Email = strings.TrimSpace(info.Email)
	if info.Email == "" {
		return nil, workflow.Invalid("email", "is required")
	}
	if _, err := mail.ParseAddress(info.Email); err != nil {
		return nil, workflow.Invalid("email", "is not a valid address")
	}
	if info.Name == "" {
		return nil, workflow.Invalid("name", "is required")
	}

	user := models.User{Auth0ID: auth0ID, Name: info.Name, Email: info.Email, Role: role}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return writeErr(err, "user", auth0ID, "create user")
		}
		if role != workflow.RoleSupervisor {
			return nil
		}
		prefix, err := s.seq.AssignSupervisorPrefix(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		user.Prefix = &prefix
		return nil
	})
	if err != nil {
		return nil, passThrough(err, "register user")
	}

	s.audit.Record(ctx, AuditEntry{
		EntityType:  "user",
		EntityID:    auth0ID,
		Action:      "register",
		Actor:       &user,
		Description: "Registered as " + string(role),
	})
	return &user, nil
}

// ByAuth0ID loads the account behind a token subject.
func (s *UserService) ByAuth0ID(ctx context.Context, auth0ID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		return nil, findErr(err, "user", auth0ID)
	}
	return &user, nil
}

// UpdateProfile changes the caller's name or email.
func (s *UserService) UpdateProfile(ctx context.Context, user *models.User, in ProfileUpdate) (*models.User, error) {
	updates := map[string]interface{}{}
	if name := strings.TrimSpace(in.Name); name != "" {
		updates["name"] = name
	}
	if email := strings.TrimSpace(in.Email); email != "" {
		updates["email"] = email
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, writeErr(err, "user", user.Auth0ID, "update user")
	}
	return s.ByAuth0ID(ctx, user.Auth0ID)
}

// List returns accounts, optionally only those holding role.
func (s *UserService) List(ctx context.Context, role string) ([]models.User, error) {
	query := s.db.WithContext(ctx).Order("name ASC")
	if role != "" {
		r, ok := workflow.ParseRole(role)
		if !ok {
			return nil, workflow.Invalid("role", "unknown role "+role)
		}
		query = query.Where("role = ?", r)
	}
	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return users, nil
}

// Wait blocks until background audit work is done.
func (s *UserService) Wait() {
	waitBackground(s.audit, nil)
}

package services

import (
	"context"
	"strings"

	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ProjectInput creates a project.
type ProjectInput struct {
	Name     string `json:"name" binding:"required,nonblank"`
	Code     string `json:"code"`
	Location string `json:"location"`
}

// SupplierInput creates a supplier.
type SupplierInput struct {
	Name        string `json:"name" binding:"required,nonblank"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email" binding:"omitempty,email"`
	Phone       string `json:"phone"`
}

// DirectoryService manages projects and suppliers.
type DirectoryService struct {
	db    *gorm.DB
	audit AuditRecorder
}

func NewDirectoryService(db *gorm.DB) *DirectoryService {
	return &DirectoryService{db: db, audit: auditRecorderFor(db)}
}

func canManageDirectory(actor *models.User) bool {
	return actor.Is(workflow.RoleProcurementManager, workflow.RoleAdmin)
}

func (s *DirectoryService) CreateProject(ctx context.Context, actor *models.User, in ProjectInput) (*models.Project, error) {
	if !canManageDirectory(actor) {
		return nil, workflow.Forbidden("only procurement managers and admins can add projects")
	}
	project := models.Project{
		Name:     strings.TrimSpace(in.Name),
		Code:     strings.TrimSpace(in.Code),
		Location: in.Location,
	}
	if project.Name == "" {
		return nil, workflow.Invalid("name", "is required")
	}
	if err := s.db.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, writeErr(err, "project", project.Name, "create project")
	}
	s.audit.Record(ctx, AuditEntry{EntityType: "project", EntityID: project.Name, Action: "create", Actor: actor, Description: "Project created"})
	return &project, nil
}

func (s *DirectoryService) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&projects).Error; err != nil {
		return nil, errors.Wrap(err, "list projects")
	}
	return projects, nil
}

func (s *DirectoryService) CreateSupplier(ctx context.Context, actor *models.User, in SupplierInput) (*models.Supplier, error) {
	if !canManageDirectory(actor) {
		return nil, workflow.Forbidden("only procurement managers and admins can add suppliers")
	}
	supplier := models.Supplier{
		Name:        strings.TrimSpace(in.Name),
		ContactName: in.ContactName,
		Email:       in.Email,
		Phone:       in.Phone,
	}
	if supplier.Name == "" {
		return nil, workflow.Invalid("name", "is required")
	}
	if err := s.db.WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, writeErr(err, "supplier", supplier.Name, "create supplier")
	}
	s.audit.Record(ctx, AuditEntry{EntityType: "supplier", EntityID: supplier.Name, Action: "create", Actor: actor, Description: "Supplier created"})
	return &supplier, nil
}

func (s *DirectoryService) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	var suppliers []models.Supplier
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&suppliers).Error; err != nil {
		return nil, errors.Wrap(err, "list suppliers")
	}
	return suppliers, nil
}

// Wait blocks until background audit work is done.
func (s *DirectoryService) Wait() {
	waitBackground(s.audit, nil)
}

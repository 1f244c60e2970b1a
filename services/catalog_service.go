package services

import (
	"context"
	"strings"

	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CatalogItemInput creates a catalog item with optional aliases.
type CatalogItemInput struct {
	Name           string          `json:"name" binding:"required,nonblank"`
	Unit           string          `json:"unit"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
	Aliases        []string        `json:"aliases"`
}

// CatalogService keeps canonical item names and the aliases that map onto
// them. Ordered items are linked to a catalog entry when their name
// matches; matching never changes how orders reconcile with requests.
type CatalogService struct {
	db    *gorm.DB
	audit AuditRecorder
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db, audit: auditRecorderFor(db)}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func (s *CatalogService) Create(ctx context.Context, actor *models.User, in CatalogItemInput) (*models.CatalogItem, error) {
	if !canManageDirectory(actor) {
		return nil, workflow.Forbidden("only procurement managers and admins can edit the catalog")
	}
	if in.ReferencePrice.IsNegative() {
		return nil, workflow.Invalid("reference_price", "must not be negative")
	}
	item := models.CatalogItem{
		Name:           strings.TrimSpace(in.Name),
		Unit:           in.Unit,
		ReferencePrice: in.ReferencePrice,
	}
	if item.Name == "" {
		return nil, workflow.Invalid("name", "is required")
	}
	seen := map[string]bool{}
	for _, alias := range in.Aliases {
		key := normalizeName(alias)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		item.Aliases = append(item.Aliases, models.CatalogAlias{Alias: key})
	}

	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, writeErr(err, "catalog item", item.Name, "create catalog item")
	}
	s.audit.Record(ctx, AuditEntry{EntityType: "catalog_item", EntityID: item.Name, Action: "create", Actor: actor, Description: "Catalog item created"})
	return &item, nil
}

// AddAlias attaches another name to an existing item.
func (s *CatalogService) AddAlias(ctx context.Context, actor *models.User, itemID uint, alias string) (*models.CatalogItem, error) {
	if !canManageDirectory(actor) {
		return nil, workflow.Forbidden("only procurement managers and admins can edit the catalog")
	}
	key := normalizeName(alias)
	if key == "" {
		return nil, workflow.Invalid("alias", "is required")
	}
	var item models.CatalogItem
	if err := s.db.WithContext(ctx).First(&item, itemID).Error; err != nil {
		return nil, findErr(err, "catalog item", itemID)
	}
	if err := s.db.WithContext(ctx).Create(&models.CatalogAlias{CatalogItemID: item.ID, Alias: key}).Error; err != nil {
		return nil, writeErr(err, "catalog alias", key, "add catalog alias")
	}
	return s.Get(ctx, itemID)
}

func (s *CatalogService) Get(ctx context.Context, id uint) (*models.CatalogItem, error) {
	var item models.CatalogItem
	if err := s.db.WithContext(ctx).Preload("Aliases").First(&item, id).Error; err != nil {
		return nil, findErr(err, "catalog item", id)
	}
	return &item, nil
}

func (s *CatalogService) List(ctx context.Context) ([]models.CatalogItem, error) {
	var items []models.CatalogItem
	if err := s.db.WithContext(ctx).Preload("Aliases").Order("name ASC").Find(&items).Error; err != nil {
		return nil, errors.Wrap(err, "list catalog")
	}
	return items, nil
}

// Match resolves a free-text item name to a catalog entry.
func (s *CatalogService) Match(ctx context.Context, name string) (*models.CatalogItem, error) {
	id := resolveCatalogItemID(ctx, s.db, name)
	if id == nil {
		return nil, workflow.NotFound("catalog item", name)
	}
	return s.Get(ctx, *id)
}

// resolveCatalogItemID looks name up by canonical name, then by alias. A
// miss or a lookup failure yields nil.
func resolveCatalogItemID(ctx context.Context, db *gorm.DB, name string) *uint {
	key := normalizeName(name)
	if key == "" {
		return nil
	}
	var item models.CatalogItem
	err := db.WithContext(ctx).Select("id").Where("LOWER(name) = ?", key).Take(&item).Error
	if err == nil {
		return &item.ID
	}
	var alias models.CatalogAlias
	if err := db.WithContext(ctx).Select("catalog_item_id").Where("alias = ?", key).Take(&alias).Error; err == nil {
		return &alias.CatalogItemID
	}
	return nil
}

// Wait blocks until background audit work is done.
func (s *CatalogService) Wait() {
	waitBackground(s.audit, nil)
}

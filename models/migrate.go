package models

import "gorm.io/gorm"

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Project{},
		&Supplier{},
		&BudgetCategory{},
		&CatalogItem{},
		&CatalogAlias{},
		&SystemSetting{},
		&SequenceCounter{},
		&MaterialRequest{},
		&MaterialItem{},
		&PurchaseOrder{},
		&OrderItem{},
		&DeliveryRecord{},
		&Attachment{},
		&AuditLog{},
	}
}

// AutoMigrate creates or updates every table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}

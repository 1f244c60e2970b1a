package services

import (
	"context"
	"fmt"
	"time"

	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReminderService nudges people about work that is waiting on them.
type ReminderService struct {
	db     *gorm.DB
	notify *Dispatcher
}

func NewReminderService(db *gorm.DB) *ReminderService {
	return &ReminderService{db: db, notify: NewDispatcher(nil)}
}

// OverdueOrders returns orders past their expected delivery date that have
// not been fully delivered.
func (s *ReminderService) OverdueOrders(ctx context.Context, now time.Time) ([]models.PurchaseOrder, error) {
	var orders []models.PurchaseOrder
	err := s.db.WithContext(ctx).
		Where("expected_delivery_date IS NOT NULL AND expected_delivery_date < ?", now).
		Where("status IN ?", []workflow.OrderStatus{
			workflow.OrderApproved,
			workflow.OrderPrinted,
			workflow.OrderShipped,
			workflow.OrderPartiallyDelivered,
		}).
		Order("expected_delivery_date ASC").
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(err, "find overdue orders")
	}
	return orders, nil
}

// SendOverdueReminders notifies procurement managers and delivery trackers
// of every overdue order and returns how many were found.
func (s *ReminderService) SendOverdueReminders(ctx context.Context, now time.Time) (int, error) {
	orders, err := s.OverdueOrders(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(orders) == 0 {
		return 0, nil
	}

	recipients := append(emailsByRole(ctx, s.db, workflow.RoleProcurementManager),
		emailsByRole(ctx, s.db, workflow.RoleDeliveryTracker)...)
	for _, order := range orders {
		days := int(now.Sub(*order.ExpectedDeliveryDate).Hours() / 24)
		s.notify.Send(ctx, recipients,
			fmt.Sprintf("Purchase order %s is overdue", order.OrderNumber),
			messageBody(
				fmt.Sprintf("Order %s from %s was expected on %s (%d days ago).",
					order.OrderNumber, order.SupplierName, order.ExpectedDeliveryDate.Format(time.DateOnly), days),
				"Status: "+string(order.Status),
			))
	}
	config.L().Info("overdue reminders sent", zap.Int("orders", len(orders)), zap.Int("recipients", len(recipients)))
	return len(orders), nil
}

// Wait blocks until queued notifications are sent.
func (s *ReminderService) Wait() {
	s.notify.Wait()
}

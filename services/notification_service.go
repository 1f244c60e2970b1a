package services

import (
	"context"
	"fmt"
	"html"
	"sync"

	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/workflow"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Notifier delivers a message to one recipient.
type Notifier interface {
	Notify(ctx context.Context, recipientEmail, subject, htmlBody string) error
}

// LogNotifier writes notifications to the application log. It is the
// default sink when no mail transport is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, recipientEmail, subject, htmlBody string) error {
	config.L().Info("notification",
		zap.String("to", recipientEmail),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(htmlBody)))
	return nil
}

var (
	notifierMu       sync.RWMutex
	notifierInstance Notifier = LogNotifier{}
)

// GetNotifier returns the process-wide notification sink
func GetNotifier() Notifier {
	notifierMu.RLock()
	defer notifierMu.RUnlock()
	return notifierInstance
}

// SetNotifier replaces the notification sink (primarily for testing)
func SetNotifier(n Notifier) {
	if n == nil {
		n = LogNotifier{}
	}
	notifierMu.Lock()
	notifierInstance = n
	notifierMu.Unlock()
}

// Dispatcher sends notifications in the background. Failures are logged and
// never reach the caller.
type Dispatcher struct {
	notifier Notifier
	wg       sync.WaitGroup
}

func NewDispatcher(n Notifier) *Dispatcher {
	if n == nil {
		n = GetNotifier()
	}
	return &Dispatcher{notifier: n}
}

func (d *Dispatcher) Send(ctx context.Context, recipients []string, subject, body string) {
	ctx = context.WithoutCancel(ctx)
	for _, to := range recipients {
		if to == "" {
			continue
		}
		d.wg.Add(1)
		go func(to string) {
			defer d.wg.Done()
			if err := d.notifier.Notify(ctx, to, subject, body); err != nil {
				config.L().Warn("notification failed",
					zap.String("to", to),
					zap.String("subject", subject),
					zap.Error(err))
			}
		}(to)
	}
}

// Wait blocks until every pending send has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func emailsByRole(ctx context.Context, db *gorm.DB, role workflow.Role) []string {
	var emails []string
	if err := db.WithContext(ctx).Model(&models.User{}).Where("role = ?", role).Pluck("email", &emails).Error; err != nil {
		config.L().Warn("could not resolve notification recipients", zap.String("role", string(role)), zap.Error(err))
		return nil
	}
	return emails
}

func emailOf(ctx context.Context, db *gorm.DB, userID uint) []string {
	var user models.User
	if err := db.WithContext(ctx).Select("email").First(&user, userID).Error; err != nil {
		config.L().Warn("could not resolve notification recipient", zap.Uint("user_id", userID), zap.Error(err))
		return nil
	}
	return []string{user.Email}
}

func messageBody(lines ...string) string {
	body := ""
	for _, line := range lines {
		body += fmt.Sprintf("<p>%s</p>", html.EscapeString(line))
	}
	return body
}

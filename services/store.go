package services

import (
	"strings"

	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// findErr converts a lookup error into NotFound when the row is missing and
// wraps anything else with the operation name.
func findErr(err error, entity string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return workflow.NotFound(entity, id)
	}
	return errors.Wrapf(err, "load %s", entity)
}

// isUniqueViolation works with both PostgreSQL and SQLite, with or without
// gorm error translation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}

// writeErr turns a uniqueness collision into a retryable Conflict.
func writeErr(err error, entity string, id any, op string) error {
	if isUniqueViolation(err) {
		return workflow.Conflict(entity, id)
	}
	return errors.Wrap(err, op)
}

// passThrough keeps typed workflow errors intact when they bubble out of a
// transaction closure, wrapping only unexpected failures.
func passThrough(err error, op string) error {
	if err == nil {
		return nil
	}
	if workflow.IsNotFound(err) || workflow.IsInvalidState(err) || workflow.IsValidation(err) ||
		workflow.IsForbidden(err) || workflow.IsConflict(err) {
		return err
	}
	return errors.Wrap(err, op)
}

// waitBackground blocks until the audit and notification work a service
// queued has finished.
func waitBackground(audit AuditRecorder, d *Dispatcher) {
	if d != nil {
		d.Wait()
	}
	if w, ok := audit.(interface{ Wait() }); ok {
		w.Wait()
	}
}

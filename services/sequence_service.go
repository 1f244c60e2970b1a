package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	scopeSupervisorPrefix = "supervisor_prefix"
	scopePurchaseOrder    = "purchase_order"
)

func requestScope(supervisorID uint) string {
	return fmt.Sprintf("request:%d", supervisorID)
}

// SeedFunc supplies the starting value of a scope the first time it is used,
// so numbering continues from records written before the counter existed.
type SeedFunc func(tx *gorm.DB) (int64, error)

// Counter atomically increments a named scope and returns the new value.
type Counter interface {
	Next(ctx context.Context, tx *gorm.DB, scope string, seed SeedFunc) (int64, error)
}

// DBCounter keeps one row per scope in sequence_counters. The increment and
// the read-back run in one transaction, so the row lock serializes
// concurrent callers.
type DBCounter struct{}

func (DBCounter) Next(ctx context.Context, tx *gorm.DB, scope string, seed SeedFunc) (int64, error) {
	var value int64
	err := tx.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var counter models.SequenceCounter
		err := tx.Where("scope = ?", scope).Take(&counter).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			start, seedErr := seed(tx)
			if seedErr != nil {
				return errors.Wrapf(seedErr, "seed counter %s", scope)
			}
			err = tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.SequenceCounter{Scope: scope, Value: start}).Error
		}
		if err != nil {
			return errors.Wrapf(err, "prepare counter %s", scope)
		}

		if err := tx.Model(&models.SequenceCounter{}).
			Where("scope = ?", scope).
			UpdateColumn("value", gorm.Expr("value + ?", 1)).Error; err != nil {
			return errors.Wrapf(err, "increment counter %s", scope)
		}
		if err := tx.Where("scope = ?", scope).Take(&counter).Error; err != nil {
			return errors.Wrapf(err, "read counter %s", scope)
		}
		value = counter.Value
		return nil
	})
	return value, err
}

// RedisCounter uses INCR on one key per scope. Values are not rolled back
// with the surrounding transaction, so numbers may skip but never repeat.
type RedisCounter struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client, keyPrefix: "procurement:seq:"}
}

func (r *RedisCounter) Next(ctx context.Context, tx *gorm.DB, scope string, seed SeedFunc) (int64, error) {
	key := r.keyPrefix + scope
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "check counter %s", scope)
	}
	if exists == 0 {
		start, err := seed(tx.WithContext(ctx))
		if err != nil {
			return 0, errors.Wrapf(err, "seed counter %s", scope)
		}
		if err := r.client.SetNX(ctx, key, start, 0).Err(); err != nil {
			return 0, errors.Wrapf(err, "seed counter %s", scope)
		}
	}
	value, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "increment counter %s", scope)
	}
	return value, nil
}

var (
	counterMu       sync.RWMutex
	counterInstance Counter = DBCounter{}
)

// GetCounter returns the counter used for new sequence allocators
func GetCounter() Counter {
	counterMu.RLock()
	defer counterMu.RUnlock()
	return counterInstance
}

// SetCounter replaces the counter (Redis in production when configured)
func SetCounter(c Counter) {
	if c == nil {
		c = DBCounter{}
	}
	counterMu.Lock()
	counterInstance = c
	counterMu.Unlock()
}

// SequenceAllocator hands out supervisor prefixes, request numbers and
// order numbers. Every method takes the caller's transaction so a failed
// create leaves no number behind when the database counter is in use.
type SequenceAllocator struct {
	counter Counter
}

func NewSequenceAllocator(counter Counter) *SequenceAllocator {
	if counter == nil {
		counter = GetCounter()
	}
	return &SequenceAllocator{counter: counter}
}

// AssignSupervisorPrefix returns the supervisor's stored prefix, assigning
// the next free one first if needed. Losing a concurrent race returns the
// winner's prefix.
func (a *SequenceAllocator) AssignSupervisorPrefix(ctx context.Context, tx *gorm.DB, userID uint) (string, error) {
	var user models.User
	if err := tx.WithContext(ctx).First(&user, userID).Error; err != nil {
		return "", findErr(err, "user", userID)
	}
	if user.Prefix != nil && *user.Prefix != "" {
		return *user.Prefix, nil
	}

	n, err := a.counter.Next(ctx, tx, scopeSupervisorPrefix, func(tx *gorm.DB) (int64, error) {
		var assigned int64
		err := tx.Model(&models.User{}).Unscoped().Where("prefix IS NOT NULL AND prefix <> ''").Count(&assigned).Error
		return assigned, err
	})
	if err != nil {
		return "", err
	}
	prefix := workflow.PrefixForIndex(int(n - 1))

	res := tx.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND (prefix IS NULL OR prefix = '')", userID).
		Update("prefix", prefix)
	if res.Error != nil {
		return "", writeErr(res.Error, "supervisor prefix", prefix, "assign supervisor prefix")
	}
	if res.RowsAffected == 0 {
		if err := tx.WithContext(ctx).First(&user, userID).Error; err != nil {
			return "", findErr(err, "user", userID)
		}
		if user.Prefix == nil {
			return "", workflow.Conflict("user", userID)
		}
		return *user.Prefix, nil
	}
	return prefix, nil
}

// NextRequestNumber allocates the supervisor's next request number. The
// integer is authoritative; the string is for display.
func (a *SequenceAllocator) NextRequestNumber(ctx context.Context, tx *gorm.DB, supervisorID uint) (string, int, error) {
	prefix, err := a.AssignSupervisorPrefix(ctx, tx, supervisorID)
	if err != nil {
		return "", 0, err
	}
	seq, err := a.counter.Next(ctx, tx, requestScope(supervisorID), func(tx *gorm.DB) (int64, error) {
		var max int64
		err := tx.Model(&models.MaterialRequest{}).
			Where("supervisor_id = ?", supervisorID).
			Select("COALESCE(MAX(request_seq), 0)").Scan(&max).Error
		return max, err
	})
	if err != nil {
		return "", 0, err
	}
	return workflow.FormatRequestNumber(strings.ToUpper(prefix), int(seq)), int(seq), nil
}

// NextOrderNumber allocates the next global order number. When no order has
// a sequence yet, numbering continues after the count of existing orders.
func (a *SequenceAllocator) NextOrderNumber(ctx context.Context, tx *gorm.DB) (string, int64, error) {
	seq, err := a.counter.Next(ctx, tx, scopePurchaseOrder, func(tx *gorm.DB) (int64, error) {
		var max int64
		if err := tx.Model(&models.PurchaseOrder{}).Select("COALESCE(MAX(order_seq), 0)").Scan(&max).Error; err != nil {
			return 0, err
		}
		if max > 0 {
			return max, nil
		}
		var count int64
		err := tx.Model(&models.PurchaseOrder{}).Count(&count).Error
		return count, err
	})
	if err != nil {
		return "", 0, err
	}
	return workflow.FormatOrderNumber(seq), seq, nil
}

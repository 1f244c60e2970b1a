package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/testutil"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sentMessage struct {
	To      string
	Subject string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) Notify(ctx context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{To: to, Subject: subject})
	return nil
}

func (n *recordingNotifier) sentTo(email string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var subjects []string
	for _, m := range n.sent {
		if m.To == email {
			subjects = append(subjects, m.Subject)
		}
	}
	return subjects
}

type failingNotifier struct{}

func (failingNotifier) Notify(ctx context.Context, to, subject, body string) error {
	return errors.New("smtp unavailable")
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	notifier *recordingNotifier
	requests *RequestService
	orders   *OrderService

	supervisor    *models.User
	engineer      *models.User
	otherEngineer *models.User
	pm            *models.User
	gm            *models.User
	printer       *models.User
	tracker       *models.User
	project       *models.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, testutil.NewTestDB(t))
}

func newFixtureOn(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()

	notifier := &recordingNotifier{}
	SetNotifier(notifier)
	t.Cleanup(func() { SetNotifier(nil) })

	f := &fixture{
		t:             t,
		ctx:           context.Background(),
		db:            db,
		notifier:      notifier,
		supervisor:    testutil.CreateUser(t, db, "sam", workflow.RoleSupervisor),
		engineer:      testutil.CreateUser(t, db, "erin", workflow.RoleEngineer),
		otherEngineer: testutil.CreateUser(t, db, "eli", workflow.RoleEngineer),
		pm:            testutil.CreateUser(t, db, "pat", workflow.RoleProcurementManager),
		gm:            testutil.CreateUser(t, db, "gail", workflow.RoleGeneralManager),
		printer:       testutil.CreateUser(t, db, "pete", workflow.RolePrinter),
		tracker:       testutil.CreateUser(t, db, "tia", workflow.RoleDeliveryTracker),
		project:       testutil.CreateProject(t, db, "North Tower"),
	}
	f.requests = NewRequestService(db)
	f.orders = NewOrderService(db)
	t.Cleanup(f.wait)
	return f
}

// wait drains background audit and notification work.
func (f *fixture) wait() {
	f.requests.Wait()
	f.orders.Wait()
}

func dec(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func item(name string, qty int) RequestItemInput {
	return RequestItemInput{Name: name, Quantity: qty, Unit: "pcs"}
}

func (f *fixture) requestInput(items ...RequestItemInput) RequestInput {
	return RequestInput{
		ProjectID:  f.project.ID,
		EngineerID: f.engineer.ID,
		Reason:     "site works",
		Items:      items,
	}
}

func (f *fixture) createRequest(items ...RequestItemInput) *models.MaterialRequest {
	f.t.Helper()
	req, err := f.requests.Create(f.ctx, f.supervisor, f.requestInput(items...))
	require.NoError(f.t, err)
	return req
}

func (f *fixture) approvedRequest(items ...RequestItemInput) *models.MaterialRequest {
	f.t.Helper()
	req := f.createRequest(items...)
	req, err := f.requests.Approve(f.ctx, f.engineer, req.ID)
	require.NoError(f.t, err)
	return req
}

func (f *fixture) setLimit(n int64) {
	f.t.Helper()
	require.NoError(f.t, f.db.Save(&models.SystemSetting{Key: settingApprovalLimit, Value: dec(n).String()}).Error)
}

func (f *fixture) createOrder(requestID string, prices map[int]decimal.Decimal, indexes ...int) *models.PurchaseOrder {
	f.t.Helper()
	order, err := f.orders.Create(f.ctx, f.pm, OrderInput{RequestID: requestID, ItemIndexes: indexes, Prices: prices})
	require.NoError(f.t, err)
	return order
}

func (f *fixture) reloadRequest(id string) *models.MaterialRequest {
	f.t.Helper()
	req, err := f.requests.Get(f.ctx, id)
	require.NoError(f.t, err)
	return req
}

func (f *fixture) reloadOrder(id string) *models.PurchaseOrder {
	f.t.Helper()
	order, err := f.orders.Get(f.ctx, id)
	require.NoError(f.t, err)
	return order
}

func createAdmin(t *testing.T, f *fixture) *models.User {
	t.Helper()
	return testutil.CreateUser(t, f.db, "ada", workflow.RoleAdmin)
}

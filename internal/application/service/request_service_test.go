package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ForsunJay/TGTEST/internal/application/port"
	"github.com/ForsunJay/TGTEST/internal/auth"
	"github.com/ForsunJay/TGTEST/internal/config"
	"github.com/ForsunJay/TGTEST/internal/domain/entity"
	"github.com/ForsunJay/TGTEST/internal/domain/lifecycle"
)

// memRequestRepo is an in-memory repository with the same guarded
// UpdateStatus semantics as the SQL implementation
type memRequestRepo struct {
	mu       sync.Mutex
	requests map[int64]*entity.Request
	nextID   int64
}

func newMemRequestRepo() *memRequestRepo {
	return &memRequestRepo{requests: make(map[int64]*entity.Request), nextID: 1}
}

func (r *memRequestRepo) Create(_ context.Context, request *entity.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	request.ID = r.nextID
	r.nextID++
	clone := *request
	r.requests[request.ID] = &clone
	return nil
}

func (r *memRequestRepo) GetByID(_ context.Context, id int64) (*entity.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	clone := *request
	return &clone, nil
}

func (r *memRequestRepo) UpdateStatus(_ context.Context, id int64, expected, next lifecycle.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok {
		return port.ErrNotFound
	}
	if request.Status != expected {
		return port.ErrConflict
	}
	request.Status = next
	return nil
}

func (r *memRequestRepo) Update(_ context.Context, request *entity.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[request.ID]; !ok {
		return port.ErrNotFound
	}
	clone := *request
	r.requests[request.ID] = &clone
	return nil
}

func (r *memRequestRepo) List(_ context.Context, filter port.RequestFilter) ([]*entity.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Request
	for _, request := range r.requests {
		if filter.Status != "" && request.Status != filter.Status {
			continue
		}
		if filter.UserID != 0 && request.UserID != filter.UserID {
			continue
		}
		if filter.Source != "" && request.Source != filter.Source {
			continue
		}
		clone := *request
		out = append(out, &clone)
	}
	return out, nil
}

type memCommentRepo struct {
	mu       sync.Mutex
	comments []*entity.Comment
}

func (r *memCommentRepo) Create(_ context.Context, comment *entity.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment.ID = int64(len(r.comments) + 1)
	r.comments = append(r.comments, comment)
	return nil
}

func (r *memCommentRepo) ListByRequest(_ context.Context, requestID int64) ([]*entity.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Comment
	for _, comment := range r.comments {
		if comment.RequestID == requestID {
			out = append(out, comment)
		}
	}
	return out, nil
}

// passThroughTx runs the function without a real transaction
type passThroughTx struct{}

func (passThroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func testAccess() config.AccessConfig {
	return config.AccessConfig{
		AdminIDs:      []int64{100, 101},
		FinControlIDs: []int64{900},
		SourceAdmins:  map[string][]int64{"rs_rf": {100}, "cash": {101}},
		ProjectAdmins: map[string][]int64{"mf_kz": {101}},
	}
}

func newTestService(t *testing.T) (*RequestService, *memRequestRepo, *memCommentRepo) {
	t.Helper()
	requests := newMemRequestRepo()
	comments := &memCommentRepo{}
	svc := NewRequestService(requests, comments, passThroughTx{},
		auth.NewAuthorizer(testAccess()), nil, zap.NewNop())
	return svc, requests, comments
}

func seedRequest(t *testing.T, repo *memRequestRepo, source, project string, status lifecycle.Status) *entity.Request {
	t.Helper()
	request := &entity.Request{
		UserID:   42,
		Project:  project,
		Source:   source,
		Amount:   decimal.NewFromInt(150),
		Currency: "USD",
		Status:   status,
	}
	require.NoError(t, repo.Create(context.Background(), request))
	return request
}

func TestTransitionApproveInScope(t *testing.T) {
	svc, requests, comments := newTestService(t)
	request := seedRequest(t, requests, "rs_rf", "mf_rf", lifecycle.StatusPending)
	actor := &entity.User{TelegramID: 100, Role: entity.RoleAdmin}

	updated, err := svc.Transition(context.Background(), actor, request.ID, lifecycle.TriggerMarkWaiting, "")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusWaiting, updated.Status)

	stored, err := requests.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusWaiting, stored.Status)

	history, err := comments.ListByRequest(context.Background(), request.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, lifecycle.StatusPending, history[0].StatusFrom)
	assert.Equal(t, lifecycle.StatusWaiting, history[0].StatusTo)
}

func TestTransitionOutOfScopeDenied(t *testing.T) {
	svc, requests, _ := newTestService(t)
	request := seedRequest(t, requests, "rs_rf", "mf_rf", lifecycle.StatusPending)
	// Admin 101 holds the cash scope, not rs_rf
	actor := &entity.User{TelegramID: 101, Role: entity.RoleAdmin}

	_, err := svc.Transition(context.Background(), actor, request.ID, lifecycle.TriggerMarkWaiting, "")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	stored, err := requests.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusPending, stored.Status)
}

func TestTransitionCryptoScopedByProject(t *testing.T) {
	svc, requests, _ := newTestService(t)
	request := seedRequest(t, requests, "crypto", "mf_kz", lifecycle.StatusPending)

	// 101 is the mf_kz project admin, 100 is not
	_, err := svc.Transition(context.Background(), &entity.User{TelegramID: 100}, request.ID, lifecycle.TriggerMarkWaiting, "")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	updated, err := svc.Transition(context.Background(), &entity.User{TelegramID: 101}, request.ID, lifecycle.TriggerMarkWaiting, "")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusWaiting, updated.Status)
}

func TestTransitionInvalidEdge(t *testing.T) {
	svc, requests, _ := newTestService(t)
	request := seedRequest(t, requests, "rs_rf", "mf_rf", lifecycle.StatusPending)
	actor := &entity.User{TelegramID: 100}

	_, err := svc.Transition(context.Background(), actor, request.ID, lifecycle.TriggerMarkPaid, "")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestTransitionRejectRequiresReason(t *testing.T) {
	svc, requests, comments := newTestService(t)
	request := seedRequest(t, requests, "rs_rf", "mf_rf", lifecycle.StatusPending)
	actor := &entity.User{TelegramID: 100}

	_, err := svc.Transition(context.Background(), actor, request.ID, lifecycle.TriggerReject, "")
	assert.ErrorIs(t, err, ErrReasonRequired)

	updated, err := svc.Transition(context.Background(), actor, request.ID, lifecycle.TriggerReject, "duplicate request")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusRejected, updated.Status)

	history, err := comments.ListByRequest(context.Background(), request.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "duplicate request", history[0].Text)
}

func TestTransitionTerminalAbsorbs(t *testing.T) {
	svc, requests, _ := newTestService(t)
	request := seedRequest(t, requests, "rs_rf", "mf_rf", lifecycle.StatusPaid)
	actor := &entity.User{TelegramID: 100}

	_, err := svc.Transition(context.Background(), actor, request.ID, lifecycle.TriggerReject, "late")
	assert.ErrorIs(t, err, lifecycle.ErrTerminalState)
}

func TestTransitionConcurrentRaceSingleWinner(t *testing.T) {
	svc, requests, comments := newTestService(t)
	request := seedRequest(t, requests, "rs_rf", "mf_rf", lifecycle.StatusPending)
	actor := &entity.User{TelegramID: 100}

	// Two identical approvals race; whether the loser reads the stale or
	// the committed status it must fail, with either a conflict or an
	// invalid transition
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Transition(context.Background(), actor, request.ID, lifecycle.TriggerMarkWaiting, "")
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
		}
	}
	assert.Equal(t, 1, failures, "exactly one of the racing transitions must lose")

	stored, err := requests.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusWaiting, stored.Status)

	history, err := comments.ListByRequest(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1, "only the winning transition leaves an audit comment")
}

func TestAddCommentPermissions(t *testing.T) {
	svc, requests, _ := newTestService(t)
	request := seedRequest(t, requests, "rs_rf", "mf_rf", lifecycle.StatusPending)

	// The creator may always comment
	comment, err := svc.AddComment(context.Background(), &entity.User{TelegramID: 42}, request.ID, "receipt attached")
	require.NoError(t, err)
	assert.Equal(t, "receipt attached", comment.Text)

	// A scope holder may comment
	_, err = svc.AddComment(context.Background(), &entity.User{TelegramID: 100}, request.ID, "checking")
	require.NoError(t, err)

	// An unrelated user may not
	_, err = svc.AddComment(context.Background(), &entity.User{TelegramID: 7}, request.ID, "me too")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestEditWhitelistedFieldOnly(t *testing.T) {
	svc, requests, comments := newTestService(t)
	request := seedRequest(t, requests, "rs_rf", "mf_rf", lifecycle.StatusPending)
	creator := &entity.User{TelegramID: 42}

	updated, err := svc.Edit(context.Background(), creator, request.ID, "amount", "200")
	require.NoError(t, err)
	assert.Equal(t, "200", updated.Amount.String())

	_, err = svc.Edit(context.Background(), creator, request.ID, "status", "paid")
	assert.ErrorIs(t, err, ErrFieldNotEditable)

	_, err = svc.Edit(context.Background(), creator, request.ID, "currency", "EUR")
	assert.ErrorIs(t, err, ErrFieldNotEditable)

	history, err := comments.ListByRequest(context.Background(), request.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Contains(t, history[0].Text, "amount changed")
}

func TestEditTerminalRequestRefused(t *testing.T) {
	svc, requests, _ := newTestService(t)
	request := seedRequest(t, requests, "rs_rf", "mf_rf", lifecycle.StatusRejected)

	_, err := svc.Edit(context.Background(), &entity.User{TelegramID: 42}, request.ID, "note", "updated note")
	assert.ErrorIs(t, err, lifecycle.ErrTerminalState)
}

func TestListScoping(t *testing.T) {
	svc, requests, _ := newTestService(t)
	seedRequest(t, requests, "rs_rf", "mf_rf", lifecycle.StatusPending)
	other := &entity.Request{UserID: 7, Project: "mf_rf", Source: "cash", Amount: decimal.NewFromInt(5), Currency: "USD", Status: lifecycle.StatusPending}
	require.NoError(t, requests.Create(context.Background(), other))

	// A regular user sees only their own requests
	own, err := svc.List(context.Background(), &entity.User{TelegramID: 42}, port.RequestFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, int64(42), own[0].UserID)

	// Fincontrol sees everything
	all, err := svc.List(context.Background(), &entity.User{TelegramID: 900, Role: entity.RoleFinControl}, port.RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetHidesForeignRequests(t *testing.T) {
	svc, requests, _ := newTestService(t)
	request := seedRequest(t, requests, "rs_rf", "mf_rf", lifecycle.StatusPending)

	_, _, err := svc.Get(context.Background(), &entity.User{TelegramID: 7}, request.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	got, _, err := svc.Get(context.Background(), &entity.User{TelegramID: 42}, request.ID)
	require.NoError(t, err)
	assert.Equal(t, request.ID, got.ID)
}

package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/peerobs-api/internal/models"
	appErrors "github.com/noah-isme/peerobs-api/pkg/errors"
)

type memAccessRequestStore struct {
	items map[string]*models.AccessRequest
}

func newMemAccessRequestStore(requests ...*models.AccessRequest) *memAccessRequestStore {
	store := &memAccessRequestStore{items: map[string]*models.AccessRequest{}}
	for _, r := range requests {
		store.items[r.ID] = r
	}
	return store
}

func (m *memAccessRequestStore) FindByID(ctx context.Context, id string) (*models.AccessRequest, error) {
	if r, ok := m.items[id]; ok {
		clone := *r
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memAccessRequestStore) ListPending(ctx context.Context) ([]models.AccessRequest, error) {
	var result []models.AccessRequest
	for _, r := range m.items {
		if r.Status == models.AccessRequestStatusPending {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *memAccessRequestStore) ExistsPendingByEmail(ctx context.Context, email string) (bool, error) {
	for _, r := range m.items {
		if r.Email == email && r.Status == models.AccessRequestStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *memAccessRequestStore) Create(ctx context.Context, req *models.AccessRequest) error {
	clone := *req
	m.items[req.ID] = &clone
	return nil
}

func (m *memAccessRequestStore) UpdateReview(ctx context.Context, id string, status models.AccessRequestStatus, reviewer string, reviewedAt time.Time) error {
	if r, ok := m.items[id]; ok {
		r.Status = status
		r.ReviewedBy = &reviewer
		r.ReviewedAt = &reviewedAt
	}
	return nil
}

type memUserStore struct {
	users map[string]*models.User
}

func newMemUserStore(users ...*models.User) *memUserStore {
	store := &memUserStore{users: map[string]*models.User{}}
	for _, u := range users {
		store.users[u.ID] = u
	}
	return store
}

func (m *memUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memUserStore) Create(ctx context.Context, user *models.User) error {
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *memUserStore) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if u, ok := m.users[id]; ok {
		u.LastLogin = &ts
	}
	return nil
}

func (m *memUserStore) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if u, ok := m.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

type accessFixture struct {
	svc      *AccessService
	requests *memAccessRequestStore
	users    *memUserStore
	teachers *memTeacherStore
	notifier *recordingNotifier
}

func newAccessFixture(requests ...*models.AccessRequest) *accessFixture {
	requestStore := newMemAccessRequestStore(requests...)
	users := newMemUserStore()
	teachers := newMemTeacherStore()
	mail := &recordingNotifier{}
	svc := NewAccessService(requestStore, users, teachers, &memAuditSink{}, mail, zap.NewNop())
	return &accessFixture{svc: svc, requests: requestStore, users: users, teachers: teachers, notifier: mail}
}

func TestSubmitAccessRequest(t *testing.T) {
	fx := newAccessFixture()

	request, err := fx.svc.Submit(context.Background(), &SubmitAccessRequest{
		Email:    "new@school.org",
		FullName: "New Teacher",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AccessRequestStatusPending, request.Status)
	assert.Equal(t, models.RoleTeacher, request.RequestedRole)

	// A second submission for the same email is rejected while pending.
	_, err = fx.svc.Submit(context.Background(), &SubmitAccessRequest{
		Email:    "new@school.org",
		FullName: "New Teacher",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestApproveAccessRequestProvisionsAccounts(t *testing.T) {
	fx := newAccessFixture(&models.AccessRequest{
		ID:            "req-1",
		Email:         "new@school.org",
		FullName:      "New Teacher",
		RequestedRole: models.RoleTeacher,
		Status:        models.AccessRequestStatusPending,
	})
	admin := claimsFor("principal@school.org", models.RoleAdmin)

	require.NoError(t, fx.svc.Approve(context.Background(), admin, "req-1", ""))

	user, err := fx.users.FindByEmail(context.Background(), "new@school.org")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, user.Role)
	assert.True(t, user.Active)

	teacher, err := fx.teachers.FindByEmail(context.Background(), "new@school.org")
	require.NoError(t, err)
	assert.True(t, teacher.Active)

	require.Len(t, fx.notifier.sent, 1)
	assert.Contains(t, fx.notifier.sent[0], "new@school.org")

	stored, err := fx.requests.FindByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.AccessRequestStatusApproved, stored.Status)
}

func TestDenyAccessRequest(t *testing.T) {
	fx := newAccessFixture(&models.AccessRequest{
		ID:       "req-1",
		Email:    "new@school.org",
		FullName: "New Teacher",
		Status:   models.AccessRequestStatusPending,
	})
	admin := claimsFor("principal@school.org", models.RoleAdmin)

	require.NoError(t, fx.svc.Deny(context.Background(), admin, "req-1", ""))

	stored, err := fx.requests.FindByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.AccessRequestStatusDenied, stored.Status)
	assert.Empty(t, fx.users.users)
}

func TestReviewNonPendingAccessRequest(t *testing.T) {
	fx := newAccessFixture(&models.AccessRequest{
		ID:     "req-1",
		Email:  "new@school.org",
		Status: models.AccessRequestStatusDenied,
	})
	admin := claimsFor("principal@school.org", models.RoleAdmin)

	err := fx.svc.Approve(context.Background(), admin, "req-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotPending.Code, appErrors.FromError(err).Code)
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/peerobs-api/internal/models"
	appErrors "github.com/noah-isme/peerobs-api/pkg/errors"
)

func newTeacherService(store *memTeacherStore) (*TeacherService, *memAuditSink) {
	audits := &memAuditSink{}
	return NewTeacherService(store, audits, zap.NewNop()), audits
}

func TestCreateTeacher(t *testing.T) {
	store := newMemTeacherStore()
	svc, audits := newTeacherService(store)
	admin := claimsFor("principal@school.org", models.RoleAdmin)

	teacher, err := svc.Create(context.Background(), admin, &CreateTeacherRequest{
		Email:    "new@school.org",
		FullName: "New Teacher",
		Room:     "204",
		Grades:   []string{"6"},
		Type:     models.TeacherTypeClassroom,
	})
	require.NoError(t, err)
	assert.True(t, teacher.Active)
	assert.NotEmpty(t, teacher.ID)
	require.Len(t, audits.entries, 1)
	assert.Equal(t, models.AuditActionTeacherCreate, audits.entries[0].Action)

	_, err = svc.Create(context.Background(), admin, &CreateTeacherRequest{
		Email:    "new@school.org",
		FullName: "Duplicate",
		Grades:   []string{"7"},
		Type:     models.TeacherTypeClassroom,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCreateTeacherRejectsUnknownGrade(t *testing.T) {
	svc, _ := newTeacherService(newMemTeacherStore())
	admin := claimsFor("principal@school.org", models.RoleAdmin)

	_, err := svc.Create(context.Background(), admin, &CreateTeacherRequest{
		Email:    "new@school.org",
		FullName: "New Teacher",
		Grades:   []string{"12"},
		Type:     models.TeacherTypeClassroom,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdateTeacher(t *testing.T) {
	store := newMemTeacherStore(rosterTeacher("t-a", "alice@school.org"))
	svc, _ := newTeacherService(store)
	admin := claimsFor("principal@school.org", models.RoleAdmin)

	updated, err := svc.Update(context.Background(), admin, "t-a", &UpdateTeacherRequest{
		Email:    "alice@school.org",
		FullName: "Alice Allen",
		Room:     "305",
		Grades:   []string{"8"},
		Type:     models.TeacherTypeClassroom,
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Allen", updated.FullName)
	assert.Equal(t, "305", updated.Room)
}

func TestDeactivateTeacher(t *testing.T) {
	store := newMemTeacherStore(rosterTeacher("t-a", "alice@school.org"))
	svc, _ := newTeacherService(store)
	admin := claimsFor("principal@school.org", models.RoleAdmin)

	require.NoError(t, svc.Deactivate(context.Background(), admin, "t-a", ""))

	stored, err := store.FindByID(context.Background(), "t-a")
	require.NoError(t, err)
	assert.False(t, stored.Active)

	err = svc.Deactivate(context.Background(), admin, "t-a", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

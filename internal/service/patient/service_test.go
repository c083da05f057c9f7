package patient_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-finance/internal/model"
	"github.com/jwalitptl/clinic-finance/internal/repository/memory"
	"github.com/jwalitptl/clinic-finance/internal/service/audit"
	"github.com/jwalitptl/clinic-finance/internal/service/patient"
	"github.com/jwalitptl/clinic-finance/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-finance/pkg/errors"
	"github.com/jwalitptl/clinic-finance/pkg/logger"
)

func newService() (*patient.Service, *memory.Store) {
	store := memory.NewStore()
	return patient.NewService(store.Patients(), audit.NewService(store.Audit(), logger.Nop())), store
}

func TestCreatePatient_DefaultsToActive(t *testing.T) {
	svc, store := newService()
	ctx := auth.WithClaims(context.Background(), &model.Claims{Subject: "staff-7"})
	ctx = audit.WithRequestInfo(ctx, "10.0.0.1", "req-1")

	p, err := svc.Create(ctx, &model.CreatePatientRequest{Name: "Ravi Menon", Email: "ravi@example.com"})
	require.NoError(t, err)
	assert.Equal(t, model.PatientStatusActive, p.Status)

	logs := store.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "staff-7", logs[0].ActorID)
	assert.Equal(t, "10.0.0.1", logs[0].IPAddress)
	assert.Equal(t, "req-1", logs[0].RequestID)
	assert.Equal(t, p.ID, logs[0].EntityID)
}

func TestListPatients(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	for _, req := range []*model.CreatePatientRequest{
		{Name: "Asha"},
		{Name: "Bilal", Status: "completed"},
		{Name: "Chen"},
	} {
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}

	active, total, err := svc.List(ctx, &model.PatientFilters{Status: model.PatientStatusActive})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "Asha", active[0].Name)

	page, total, err := svc.List(ctx, &model.PatientFilters{Pagination: model.Pagination{Page: 2, PageSize: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "Chen", page[0].Name)

	none, total, err := svc.List(ctx, &model.PatientFilters{SearchTerm: "zzz"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, none)
}

func TestUpdatePatientStatus(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	p, err := svc.Create(ctx, &model.CreatePatientRequest{Name: "Dana"})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, p.ID, model.PatientStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.PatientStatusCompleted, updated.Status)

	_, err = svc.UpdateStatus(ctx, uuid.New(), model.PatientStatusCompleted)
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MediCare/internal/model"
	"MediCare/internal/model/dto"
	pkgerrors "MediCare/pkg/errors"
)

func strPtr(s string) *string { return &s }

func TestMedicationCreate(t *testing.T) {
	meds, c := &memMeds{}, newMemCache()
	s := NewMedicationService(meds, c)
	ctx := context.Background()

	med, err := s.Create(ctx, "42", dto.CreateMedicationRequest{Name: "  Aspirin ", Dosage: strPtr(" 100mg "), Frequency: strPtr("  ")})
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", med.Name)
	assert.Equal(t, "100mg", *med.Dosage)
	assert.Nil(t, med.Frequency)
	assert.Equal(t, int64(42), med.UserID)
}

func TestMedicationCreate_NameTooShort(t *testing.T) {
	s := NewMedicationService(&memMeds{}, newMemCache())

	for _, name := range []string{"", " A ", "x"} {
		_, err := s.Create(context.Background(), "42", dto.CreateMedicationRequest{Name: name})
		assert.ErrorIs(t, err, pkgerrors.MedicationNameInvalid, name)
	}

	_, err := s.Create(context.Background(), "42", dto.CreateMedicationRequest{Name: "维C"})
	assert.NoError(t, err)
}

func TestMedicationList_CachedAndInvalidated(t *testing.T) {
	meds, c := &memMeds{}, newMemCache()
	s := NewMedicationService(meds, c)
	ctx := context.Background()

	list, err := s.List(ctx, "42")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.True(t, c.has("42"))

	_, err = s.List(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, 1, meds.lists)

	_, err = s.Create(ctx, "42", dto.CreateMedicationRequest{Name: "Metformin"})
	require.NoError(t, err)
	assert.False(t, c.has("42"))

	list, err = s.List(ctx, "42")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Metformin", list[0].Name)
}

func TestMedicationList_QueryFailed(t *testing.T) {
	s := NewMedicationService(&memMeds{err: errBoom}, newMemCache())

	_, err := s.List(context.Background(), "42")
	assert.ErrorIs(t, err, pkgerrors.QueryFailed)

	_, err = s.List(context.Background(), "abc")
	assert.ErrorIs(t, err, pkgerrors.InvalidUserID)
}

func TestMedicationGet_OtherUser(t *testing.T) {
	meds := &memMeds{meds: []model.Medication{{BaseModel: model.BaseModel{ID: 1}, UserID: 7, Name: "Aspirin"}}}
	s := NewMedicationService(meds, newMemCache())

	_, err := s.Get(context.Background(), 42, 1)
	assert.ErrorIs(t, err, pkgerrors.MedicationNotFound)

	med, err := s.Get(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", med.Name)
}

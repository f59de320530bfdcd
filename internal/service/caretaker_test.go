package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MediCare/internal/model"
	"MediCare/internal/model/dto"
	pkgerrors "MediCare/pkg/errors"
)

func newTestCaretaker(t *testing.T) (*CaretakerService, *doseLogFixture) {
	t.Helper()
	f := newDoseLogFixture(t)
	require.NoError(t, f.users.Create(context.Background(), &model.User{PublicID: 55, Email: "pat@example.com", Role: model.UserRolePatient, Timezone: "UTC"}))

	adh := NewAdherenceService(f.users, f.meds, f.logs, newMemCache())
	adh.now = func() time.Time { return time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC) }
	return NewCaretakerService(f.users, f.links, adh, f.svc), f
}

func TestCaretakerLink(t *testing.T) {
	s, _ := newTestCaretaker(t)
	ctx := context.Background()

	item, err := s.Link(ctx, "42", dto.LinkCaretakerRequest{Email: " CARA@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "77", item.ID)

	// 重复添加不报错
	_, err = s.Link(ctx, "42", dto.LinkCaretakerRequest{Email: "cara@example.com"})
	require.NoError(t, err)

	list, err := s.ListCaretakers(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, []dto.CaretakerItem{{ID: "77", Email: "cara@example.com"}}, list)

	patients, err := s.ListPatients(ctx, "77")
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, "42", patients[0].ID)
	assert.Equal(t, "America/New_York", patients[0].Timezone)

	require.NoError(t, s.Unlink(ctx, "42", "77"))
	list, err = s.ListCaretakers(ctx, "42")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCaretakerLink_Errors(t *testing.T) {
	s, _ := newTestCaretaker(t)

	tests := []struct {
		name  string
		email string
		want  pkgerrors.Definition
	}{
		{"invalid email", "cara", pkgerrors.InvalidRequest},
		{"unknown user", "nobody@example.com", pkgerrors.UserNotFound},
		{"self", "ann@example.com", pkgerrors.CaretakerSelfLink},
		{"not a caretaker", "pat@example.com", pkgerrors.CaretakerRoleInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Link(context.Background(), "42", dto.LinkCaretakerRequest{Email: tt.email})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCaretakerPatientViews(t *testing.T) {
	s, f := newTestCaretaker(t)
	ctx := context.Background()
	f.logs.logs = []model.DoseLog{takenLog(1, 7, time.Date(2024, time.March, 10, 16, 0, 0, 0, time.UTC))}

	_, err := s.PatientSummary(ctx, "77", "42")
	assert.ErrorIs(t, err, pkgerrors.CaretakerNotLinked)
	_, err = s.PatientCalendar(ctx, "77", "42", "")
	assert.ErrorIs(t, err, pkgerrors.CaretakerNotLinked)
	_, err = s.PatientDoseLogs(ctx, "77", "42", "")
	assert.ErrorIs(t, err, pkgerrors.CaretakerNotLinked)

	require.NoError(t, f.links.Link(ctx, 42, 77))

	summary, err := s.PatientSummary(ctx, "77", "42")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", summary.Timezone)
	assert.True(t, summary.TakenToday)
	assert.Equal(t, 1, summary.Streak)

	cal, err := s.PatientCalendar(ctx, "77", "42", "2024-03")
	require.NoError(t, err)
	assert.Len(t, cal.Days, 31)

	logs, err := s.PatientDoseLogs(ctx, "77", "42", "2024-03-10")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, int64(1), logs[0].ID)
}

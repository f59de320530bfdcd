package service

import (
	"context"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MediCare/config"
	"MediCare/internal/model"
	"MediCare/internal/model/dto"
	pkgerrors "MediCare/pkg/errors"
)

var jpeg = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

type doseLogFixture struct {
	svc     *DoseLogService
	users   *memUsers
	meds    *memMeds
	logs    *memLogs
	links   *memLinks
	objects *memObjects
	events  *memEvents
	cache   *memCache
}

func newDoseLogFixture(t *testing.T) *doseLogFixture {
	t.Helper()
	config.Cfg.ProofBucket = "proof-photos"
	config.Cfg.ProofMaxBytes = 1024
	config.Cfg.ProofSignedURLSeconds = 60
	config.Cfg.ProofThumbnailURLSeconds = 300

	f := &doseLogFixture{
		users: newMemUsers(
			model.User{PublicID: 42, Email: "ann@example.com", Role: model.UserRolePatient, Timezone: "America/New_York"},
			model.User{PublicID: 77, Email: "cara@example.com", Role: model.UserRoleCaretaker, Timezone: "UTC"},
		),
		meds: &memMeds{meds: []model.Medication{
			{BaseModel: model.BaseModel{ID: 7}, UserID: 42, Name: "Aspirin"},
			{BaseModel: model.BaseModel{ID: 8}, UserID: 99, Name: "Other"},
		}},
		logs:    &memLogs{},
		objects: newMemObjects(),
		events:  &memEvents{},
		cache:   newMemCache(),
	}
	f.links = newMemLinks(f.users)
	f.svc = NewDoseLogService(DoseLogDeps{
		Users:      f.users,
		Meds:       f.meds,
		Logs:       f.logs,
		Caretakers: f.links,
		Objects:    f.objects,
		Events:     f.events,
		Adherence:  f.cache,
	})
	f.svc.now = func() time.Time { return time.Date(2024, time.March, 10, 8, 0, 0, 0, time.UTC) }
	f.svc.suffix = func() string { return "abcd1234" }
	return f
}

func TestDoseLogCreate(t *testing.T) {
	f := newDoseLogFixture(t)
	ctx := context.Background()
	require.NoError(t, f.cache.Set(ctx, "42", takenDays{Timezone: "UTC"}))

	takenAt := time.Date(2024, time.March, 9, 23, 0, 0, 0, time.UTC)
	log, err := f.svc.Create(ctx, "42", dto.CreateDoseLogRequest{MedicationID: 7, TakenAt: takenAt})
	require.NoError(t, err)

	assert.Equal(t, int64(42), log.UserID)
	assert.Equal(t, takenAt, log.TakenAt)
	assert.Nil(t, log.ProofPath)
	require.NotNil(t, log.Medication)
	assert.Equal(t, "Aspirin", log.Medication.Name)

	assert.False(t, f.cache.has("42"))
	require.Len(t, f.events.msgs, 1)
	assert.Equal(t, model.DoseLoggedMessage{
		UserID:       42,
		DoseLogID:    log.ID,
		MedicationID: 7,
		TakenAt:      "2024-03-09T23:00:00Z",
	}, f.events.msgs[0])
}

func TestDoseLogCreate_DefaultsTakenAtAndIgnoresPublishFailure(t *testing.T) {
	f := newDoseLogFixture(t)
	f.events.err = errBoom

	log, err := f.svc.Create(context.Background(), "42", dto.CreateDoseLogRequest{MedicationID: 7})
	require.NoError(t, err)
	assert.Equal(t, f.svc.now(), log.TakenAt)
}

func TestDoseLogCreate_Errors(t *testing.T) {
	f := newDoseLogFixture(t)
	ctx := context.Background()
	require.NoError(t, f.objects.Upload(ctx, "proof-photos", "42/7-1-a.jpg", jpeg, "image/jpeg"))

	tests := []struct {
		name string
		req  dto.CreateDoseLogRequest
		want pkgerrors.Definition
	}{
		{"unknown medication", dto.CreateDoseLogRequest{MedicationID: 999}, pkgerrors.MedicationNotFound},
		{"another user's medication", dto.CreateDoseLogRequest{MedicationID: 8}, pkgerrors.MedicationNotFound},
		{"proof outside namespace", dto.CreateDoseLogRequest{MedicationID: 7, ProofPath: strPtr("43/7-1-a.jpg")}, pkgerrors.ProofPathInvalid},
		{"proof not uploaded", dto.CreateDoseLogRequest{MedicationID: 7, ProofPath: strPtr("42/7-2-b.jpg")}, pkgerrors.ProofPathInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, "42", tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.logs.logs)

	log, err := f.svc.Create(ctx, "42", dto.CreateDoseLogRequest{MedicationID: 7, ProofPath: strPtr("42/7-1-a.jpg")})
	require.NoError(t, err)
	assert.True(t, log.HasProof())
	assert.True(t, f.events.msgs[0].HasProof)
}

func TestDoseLogCreate_InsertRejected(t *testing.T) {
	f := newDoseLogFixture(t)
	f.logs.createErr = errBoom

	_, err := f.svc.Create(context.Background(), "42", dto.CreateDoseLogRequest{MedicationID: 7})
	assert.ErrorIs(t, err, pkgerrors.LogCreationFailed)
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, f.events.msgs)
}

func TestDoseLogList_DayFilterUsesUserTimezone(t *testing.T) {
	f := newDoseLogFixture(t)
	ctx := context.Background()
	proofPath := "42/7-1-a.jpg"
	f.logs.logs = []model.DoseLog{
		// 纽约 3 月 9 日 23:00
		{BaseModel: model.BaseModel{ID: 1}, UserID: 42, MedicationID: 7, TakenAt: time.Date(2024, time.March, 10, 4, 0, 0, 0, time.UTC), ProofPath: &proofPath},
		{BaseModel: model.BaseModel{ID: 2}, UserID: 42, MedicationID: 7, TakenAt: time.Date(2024, time.March, 10, 6, 0, 0, 0, time.UTC)},
	}

	items, err := f.svc.List(ctx, "42", "2024-03-09")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].ID)
	assert.Equal(t, "https://signed.example/proof-photos/42/7-1-a.jpg?ttl=5m0s", items[0].ThumbnailURL)

	items, err = f.svc.List(ctx, "42", "")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = f.svc.List(ctx, "42", "03/09/2024")
	assert.ErrorIs(t, err, pkgerrors.InvalidRequest)
}

func TestDoseLogList_ThumbnailFailureOmitsURL(t *testing.T) {
	f := newDoseLogFixture(t)
	f.objects.signErr = errBoom
	proofPath := "42/7-1-a.jpg"
	f.logs.logs = []model.DoseLog{{UserID: 42, MedicationID: 7, TakenAt: time.Now(), ProofPath: &proofPath}}

	items, err := f.svc.List(context.Background(), "42", "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Empty(t, items[0].ThumbnailURL)
}

func TestUploadProof(t *testing.T) {
	f := newDoseLogFixture(t)
	ctx := context.Background()

	resp, err := f.svc.UploadProof(ctx, "42", 7, "Pill.JPG", "", jpeg)
	require.NoError(t, err)
	assert.Equal(t, &dto.ProofUploadResponse{
		Bucket: "proof-photos",
		Path:   "42/7-1710057600000-abcd1234.jpg",
		Size:   int64(len(jpeg)),
	}, resp)
	assert.Equal(t, "image/jpeg", f.objects.objects["proof-photos/42/7-1710057600000-abcd1234.jpg"])
}

func TestUploadProof_Errors(t *testing.T) {
	f := newDoseLogFixture(t)
	ctx := context.Background()

	_, err := f.svc.UploadProof(ctx, "42", 8, "a.jpg", "image/jpeg", jpeg)
	assert.ErrorIs(t, err, pkgerrors.MedicationNotFound)

	_, err = f.svc.UploadProof(ctx, "42", 7, "a.jpg", "image/jpeg", []byte(strings.Repeat("x", 2048)))
	assert.ErrorIs(t, err, pkgerrors.ProofTooLarge)

	_, err = f.svc.UploadProof(ctx, "42", 7, "notes.txt", "", []byte("hello"))
	assert.ErrorIs(t, err, pkgerrors.ProofTypeInvalid)

	f.objects.uploadErr = errBoom
	_, err = f.svc.UploadProof(ctx, "42", 7, "a.jpg", "image/jpeg", jpeg)
	assert.ErrorIs(t, err, pkgerrors.ProofUploadFailed)
}

func TestPutProof_EnforcesNamespace(t *testing.T) {
	f := newDoseLogFixture(t)
	ctx := context.Background()

	_, err := f.svc.PutProof(ctx, "42", "43/7-1-a.jpg", "image/jpeg", jpeg)
	assert.ErrorIs(t, err, pkgerrors.ProofPathInvalid)

	resp, err := f.svc.PutProof(ctx, "42", "42/7-1-a.png", "", jpeg)
	require.NoError(t, err)
	assert.Equal(t, "42/7-1-a.png", resp.Path)
	assert.Equal(t, "image/png", f.objects.objects["proof-photos/42/7-1-a.png"])
}

func TestSignedURL(t *testing.T) {
	f := newDoseLogFixture(t)
	ctx := context.Background()

	resp, err := f.svc.SignedURL(ctx, "42", dto.SignedURLQuery{Path: "42/7-1-a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/proof-photos/42/7-1-a.jpg?ttl=1m0s", resp.URL)
	assert.Equal(t, f.svc.now().Add(time.Minute), resp.ExpiresAt)

	resp, err = f.svc.SignedURL(ctx, "42", dto.SignedURLQuery{Path: "42/7-1-a.jpg", Thumbnail: true})
	require.NoError(t, err)
	assert.Contains(t, resp.URL, "ttl=5m0s")

	resp, err = f.svc.SignedURL(ctx, "42", dto.SignedURLQuery{Path: "42/7-1-a.jpg", ExpiresIn: 86400})
	require.NoError(t, err)
	assert.Contains(t, resp.URL, "ttl=1h0m0s")
}

func TestSignedURL_Access(t *testing.T) {
	f := newDoseLogFixture(t)
	ctx := context.Background()
	q := dto.SignedURLQuery{Path: "42/7-1-a.jpg"}

	_, err := f.svc.SignedURL(ctx, "77", q)
	assert.ErrorIs(t, err, pkgerrors.CaretakerNotLinked)

	require.NoError(t, f.links.Link(ctx, 42, 77))
	_, err = f.svc.SignedURL(ctx, "77", q)
	assert.NoError(t, err)

	_, err = f.svc.SignedURL(ctx, "42", dto.SignedURLQuery{Path: "../etc/passwd"})
	assert.ErrorIs(t, err, pkgerrors.ProofPathInvalid)

	f.objects.signErr = errBoom
	_, err = f.svc.SignedURL(ctx, "42", q)
	assert.ErrorIs(t, err, pkgerrors.SignedURLFailed)
}

package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MediCare/internal/model"
)

func doseLog(id, medicationID int64, day string) model.DoseLog {
	takenAt, _ := time.Parse(time.DateOnly, day)
	l := model.DoseLog{UserID: 42, MedicationID: medicationID, TakenAt: takenAt}
	l.ID = id
	return l
}

func seeded() *Mirror {
	m := New()
	m.Replace([]model.DoseLog{doseLog(1, 10, "2024-03-08"), doseLog(2, 10, "2024-03-09")})
	return m
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestMirror_RollbackRestoresExactSnapshot(t *testing.T) {
	m := seeded()
	before := m.Snapshot()

	p := m.InsertProvisional(doseLog(0, 11, "2024-03-10"))
	require.Len(t, m.Logs(), 3)
	assert.True(t, m.Snapshot().Entries[2].Provisional())

	m.Rollback(p)

	after := m.Snapshot()
	assert.Equal(t, before.Entries, after.Entries)
	assert.Equal(t, mustJSON(t, before.Entries), mustJSON(t, after.Entries))
	assert.Greater(t, after.Version, before.Version)
}

func TestMirror_RollbackOnlyRemovesOwnEntry(t *testing.T) {
	m := seeded()

	a := m.InsertProvisional(doseLog(0, 11, "2024-03-10"))
	b := m.InsertProvisional(doseLog(0, 12, "2024-03-10"))

	// b 失败时 a 仍在进行中
	m.Rollback(b)
	logs := m.Logs()
	require.Len(t, logs, 3)
	assert.Equal(t, int64(11), logs[2].MedicationID)

	m.Confirm(a, doseLog(3, 11, "2024-03-10"))
	snap := m.Snapshot()
	require.Len(t, snap.Entries, 3)
	assert.False(t, snap.Entries[2].Provisional())
	assert.Equal(t, int64(3), snap.Entries[2].Log.ID)
}

func TestMirror_RollbackAfterOtherConfirmKeepsConfirmed(t *testing.T) {
	m := seeded()

	a := m.InsertProvisional(doseLog(0, 11, "2024-03-10"))
	b := m.InsertProvisional(doseLog(0, 12, "2024-03-10"))

	m.Confirm(b, doseLog(4, 12, "2024-03-10"))
	m.Rollback(a)

	logs := m.Logs()
	require.Len(t, logs, 3)
	assert.Equal(t, int64(4), logs[2].ID)
	assert.Equal(t, int64(12), logs[2].MedicationID)
}

func TestMirror_ReplaceKeepsPendingInserts(t *testing.T) {
	m := seeded()
	p := m.InsertProvisional(doseLog(0, 11, "2024-03-10"))

	m.Replace([]model.DoseLog{doseLog(1, 10, "2024-03-08")})

	snap := m.Snapshot()
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, p.ActionID(), snap.Entries[1].ActionID)
}

func TestMirror_ConfirmWithoutPendingDoesNotDuplicate(t *testing.T) {
	m := seeded()
	p := m.InsertProvisional(doseLog(0, 11, "2024-03-10"))
	m.Rollback(p)

	m.Confirm(p, doseLog(2, 10, "2024-03-09"))
	assert.Len(t, m.Logs(), 2)
}

func TestMirror_RefreshApplies(t *testing.T) {
	m := New()
	assert.False(t, m.Loaded())

	err := m.Refresh(context.Background(), func(ctx context.Context) ([]model.DoseLog, error) {
		return []model.DoseLog{doseLog(1, 10, "2024-03-10")}, nil
	})
	require.NoError(t, err)
	assert.True(t, m.Loaded())
	assert.Equal(t, []string{"2024-03-10"}, m.TakenDates(time.UTC).Keys())
}

func TestMirror_RefreshErrorLeavesMirror(t *testing.T) {
	m := seeded()
	before := m.Snapshot()

	boom := errors.New("network down")
	err := m.Refresh(context.Background(), func(ctx context.Context) ([]model.DoseLog, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, m.Snapshot())
}

func TestMirror_InsertCancelsInFlightRefresh(t *testing.T) {
	m := seeded()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	var refreshErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		refreshErr = m.Refresh(context.Background(), func(ctx context.Context) ([]model.DoseLog, error) {
			close(started)
			<-ctx.Done()
			close(cancelled)
			<-release
			// 取消后仍返回旧数据，不应覆盖乐观插入
			return []model.DoseLog{doseLog(1, 10, "2024-03-08")}, nil
		})
	}()

	<-started
	p := m.InsertProvisional(doseLog(0, 11, "2024-03-10"))
	<-cancelled
	close(release)
	wg.Wait()

	assert.ErrorIs(t, refreshErr, ErrRefreshSuperseded)
	snap := m.Snapshot()
	require.Len(t, snap.Entries, 3)
	assert.Equal(t, p.ActionID(), snap.Entries[2].ActionID)
}

func TestMirror_CancelRefreshes(t *testing.T) {
	m := seeded()

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- m.Refresh(context.Background(), func(ctx context.Context) ([]model.DoseLog, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})
	}()

	<-started
	m.CancelRefreshes()
	assert.ErrorIs(t, <-done, ErrRefreshSuperseded)
	assert.Len(t, m.Logs(), 2)
}

func TestPending_BeforeIsCopy(t *testing.T) {
	m := seeded()
	p := m.InsertProvisional(doseLog(0, 11, "2024-03-10"))

	before := p.Before()
	before.Entries[0].Log.MedicationID = 999

	m.Rollback(p)
	assert.Equal(t, int64(10), m.Logs()[0].MedicationID)
}

func TestMirror_ConfirmAfterRefreshBroughtRowDoesNotDuplicate(t *testing.T) {
	m := seeded()
	a := m.InsertProvisional(doseLog(0, 11, "2024-03-10"))

	// 刷新在 a 写入远端之后完成，带回了确认记录，a 的乐观记录仍保留
	err := m.Refresh(context.Background(), func(ctx context.Context) ([]model.DoseLog, error) {
		return []model.DoseLog{doseLog(1, 10, "2024-03-08"), doseLog(2, 10, "2024-03-09"), doseLog(101, 11, "2024-03-10")}, nil
	})
	require.NoError(t, err)
	require.Len(t, m.Logs(), 4)

	b := m.InsertProvisional(doseLog(0, 12, "2024-03-10"))
	m.Confirm(a, doseLog(101, 11, "2024-03-10"))

	count := 0
	for _, l := range m.Logs() {
		if l.ID == 101 {
			count++
		}
	}
	assert.Equal(t, 1, count)

	snap := m.Snapshot()
	require.Len(t, snap.Entries, 4)
	assert.Equal(t, b.ActionID(), snap.Entries[3].ActionID)
}

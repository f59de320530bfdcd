package main

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MediCare/internal/adherence"
	"MediCare/internal/model"
	"MediCare/internal/model/dto"
	"MediCare/pkg/apiclient"
	"MediCare/pkg/errors"
)

func TestTakenTime(t *testing.T) {
	now := time.Date(2024, time.March, 10, 8, 15, 30, 0, time.UTC)

	got, err := takenTime("", now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	got, err = takenTime("2024-03-08", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 8, 8, 15, 30, 0, time.UTC), got)

	_, err = takenTime("08.03.2024", now)
	assert.Error(t, err)
}

func TestSessionStore(t *testing.T) {
	store := &sessionStore{path: filepath.Join(t.TempDir(), "nested", "session.json")}

	empty, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, empty.AccessToken)

	sess := apiclient.Session{AccessToken: "a", RefreshToken: "r", UserID: "42", Timezone: "UTC"}
	require.NoError(t, store.Save(sess))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, loaded.UserID)
	assert.Equal(t, sess.RefreshToken, loaded.RefreshToken)

	// 空登录态删除文件
	require.NoError(t, store.Save(apiclient.Session{}))
	loaded, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded.AccessToken)
}

func TestPrintCalendar(t *testing.T) {
	// 2024-02-01 是周四
	cal := &dto.CalendarResponse{Month: "2024-02", Timezone: "UTC", Days: []adherence.CalendarDay{
		{Date: "2024-02-01", Status: adherence.DayTaken},
		{Date: "2024-02-02", Status: adherence.DayMissed},
		{Date: "2024-02-03", Status: adherence.DayToday},
		{Date: "2024-02-04", Status: adherence.DayUpcoming},
		{Date: "2024-02-05", Status: adherence.DayUpcoming},
	}}

	var buf bytes.Buffer
	printCalendar(&buf, cal)

	want := "2024-02 (UTC)   x taken  . missed  o today\n" +
		" Mo  Tu  We  Th  Fr  Sa  Su\n" +
		"             1x  2.  3o  4  \n" +
		" 5\n"
	assert.Equal(t, want, buf.String())
}

// doseLogServer 模拟 /v1/dose-logs，listFails 决定第 n 次（从 1 开始）列表请求是否失败
type doseLogServer struct {
	mu        sync.Mutex
	logs      []model.DoseLog
	lists     int
	inserts   int
	listFails func(n int) bool
}

func (s *doseLogServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodGet {
		s.lists++
		if s.listFails != nil && s.listFails(s.lists) {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{"code": "QUERY_FAILED", "message": "Failed to load data"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": s.logs})
		return
	}

	s.inserts++
	var req dto.CreateDoseLogRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	l := model.DoseLog{UserID: 42, MedicationID: req.MedicationID, TakenAt: req.TakenAt}
	l.ID = int64(100 + s.inserts)
	s.logs = append(s.logs, l)
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": l})
}

func newTestApp(t *testing.T, h http.Handler) *app {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	client, err := apiclient.New(apiclient.Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	client.SetSession(apiclient.Session{AccessToken: "tok", UserID: "42", Timezone: "UTC"})
	return &app{cfg: cliConfig{Timezone: "UTC"}, client: client}
}

func runTake(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	cmd := a.takeCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTakeCmd_SummaryIncludesExistingLogs(t *testing.T) {
	now := time.Now().UTC()
	seed := func(id int64, daysAgo int) model.DoseLog {
		l := model.DoseLog{UserID: 42, MedicationID: 7, TakenAt: now.AddDate(0, 0, -daysAgo)}
		l.ID = id
		return l
	}
	// 提交成功后的重新同步失败，结果只能来自已加载的镜像
	srv := &doseLogServer{
		logs:      []model.DoseLog{seed(1, 1), seed(2, 2)},
		listFails: func(n int) bool { return n > 1 },
	}
	a := newTestApp(t, srv)

	out, err := runTake(t, a, "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged dose 101")
	assert.Contains(t, out, "Streak: 3 day(s)")
	assert.Equal(t, 2, srv.lists)
	assert.Equal(t, 1, srv.inserts)
}

func TestTakeCmd_LoadFailureAbortsBeforeInsert(t *testing.T) {
	srv := &doseLogServer{listFails: func(int) bool { return true }}
	a := newTestApp(t, srv)

	_, err := runTake(t, a, "7")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.QueryFailed))
	assert.Zero(t, srv.inserts)
}

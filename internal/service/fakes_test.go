package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"MediCare/internal/model"
	"MediCare/internal/repository"
)

type memUsers struct {
	mu    sync.Mutex
	users map[int64]*model.User
}

func newMemUsers(users ...model.User) *memUsers {
	m := &memUsers{users: map[int64]*model.User{}}
	for i := range users {
		u := users[i]
		m.users[u.PublicID] = &u
	}
	return m
}

func (m *memUsers) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.ID = int64(len(m.users) + 1)
	cp := *user
	m.users[user.PublicID] = &cp
	return nil
}

func (m *memUsers) GetByPublicID(_ context.Context, publicID int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[publicID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) UpdateProfile(_ context.Context, publicID int64, fullName, timezone *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[publicID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if fullName != nil {
		u.FullName = *fullName
	}
	if timezone != nil {
		u.Timezone = *timezone
	}
	return nil
}

type memMeds struct {
	mu    sync.Mutex
	meds  []model.Medication
	err   error
	lists int
}

func (m *memMeds) Create(_ context.Context, med *model.Medication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	med.ID = int64(len(m.meds) + 1)
	m.meds = append(m.meds, *med)
	return nil
}

func (m *memMeds) ListByUser(_ context.Context, userID int64) ([]model.Medication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.err != nil {
		return nil, m.err
	}
	var out []model.Medication
	for _, med := range m.meds {
		if med.UserID == userID {
			out = append(out, med)
		}
	}
	return out, nil
}

func (m *memMeds) GetForUser(_ context.Context, userID, id int64) (*model.Medication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, med := range m.meds {
		if med.ID == id && med.UserID == userID {
			cp := med
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type memLogs struct {
	mu        sync.Mutex
	logs      []model.DoseLog
	createErr error
}

func (m *memLogs) Create(_ context.Context, log *model.DoseLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	log.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, *log)
	return nil
}

func (m *memLogs) ListByUser(_ context.Context, userID int64) ([]model.DoseLog, error) {
	return m.filter(userID, time.Time{}, time.Time{}), nil
}

func (m *memLogs) ListBetween(_ context.Context, userID int64, from, to time.Time) ([]model.DoseLog, error) {
	return m.filter(userID, from, to), nil
}

func (m *memLogs) TakenTimes(_ context.Context, userID int64) ([]time.Time, error) {
	var times []time.Time
	for _, l := range m.filter(userID, time.Time{}, time.Time{}) {
		times = append(times, l.TakenAt)
	}
	return times, nil
}

func (m *memLogs) filter(userID int64, from, to time.Time) []model.DoseLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DoseLog
	for _, l := range m.logs {
		if l.UserID != userID {
			continue
		}
		if !from.IsZero() && (l.TakenAt.Before(from) || !l.TakenAt.Before(to)) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TakenAt.Before(out[j].TakenAt) })
	return out
}

type memLinks struct {
	mu    sync.Mutex
	pairs map[[2]int64]bool
	users *memUsers
}

func newMemLinks(users *memUsers) *memLinks {
	return &memLinks{pairs: map[[2]int64]bool{}, users: users}
}

func (m *memLinks) Link(_ context.Context, patientID, caretakerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairs[[2]int64{patientID, caretakerID}] = true
	return nil
}

func (m *memLinks) Unlink(_ context.Context, patientID, caretakerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pairs, [2]int64{patientID, caretakerID})
	return nil
}

func (m *memLinks) IsLinked(_ context.Context, patientID, caretakerID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pairs[[2]int64{patientID, caretakerID}], nil
}

func (m *memLinks) ListPatients(ctx context.Context, caretakerID int64) ([]model.User, error) {
	return m.collect(ctx, func(pair [2]int64) (int64, bool) { return pair[0], pair[1] == caretakerID })
}

func (m *memLinks) ListCaretakers(ctx context.Context, patientID int64) ([]model.User, error) {
	return m.collect(ctx, func(pair [2]int64) (int64, bool) { return pair[1], pair[0] == patientID })
}

func (m *memLinks) collect(ctx context.Context, match func([2]int64) (int64, bool)) ([]model.User, error) {
	m.mu.Lock()
	var ids []int64
	for pair := range m.pairs {
		if id, ok := match(pair); ok {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []model.User
	for _, id := range ids {
		u, err := m.users.GetByPublicID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

type memObjects struct {
	mu        sync.Mutex
	objects   map[string]string // key -> content type
	uploadErr error
	signErr   error
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string]string{}}
}

func (m *memObjects) Upload(_ context.Context, bucket, key string, _ []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return m.uploadErr
	}
	m.objects[bucket+"/"+key] = contentType
	return nil
}

func (m *memObjects) Exists(_ context.Context, bucket, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[bucket+"/"+key]
	return ok, nil
}

func (m *memObjects) SignedURL(_ context.Context, bucket, key string, expiry time.Duration) (string, error) {
	if m.signErr != nil {
		return "", m.signErr
	}
	return "https://signed.example/" + bucket + "/" + key + "?ttl=" + expiry.String(), nil
}

type memEvents struct {
	mu   sync.Mutex
	msgs []model.DoseLoggedMessage
	err  error
}

func (m *memEvents) PublishDoseLogged(_ context.Context, msg model.DoseLoggedMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msg)
	return nil
}

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newMemTokens() *memTokens {
	return &memTokens{tokens: map[string]string{}}
}

func (m *memTokens) Set(_ context.Context, userID, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[userID] = refreshToken
	return nil
}

func (m *memTokens) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, userID)
	return nil
}

func (m *memTokens) Matches(_ context.Context, userID, refreshToken string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[userID] == refreshToken, nil
}

// memCache 内存版 cache.Store
type memCache struct {
	mu     sync.Mutex
	values map[string][]byte
	getErr error
}

func newMemCache() *memCache {
	return &memCache{values: map[string][]byte{}}
}

func (m *memCache) Key(key string) string { return "test:" + key }

func (m *memCache) Set(_ context.Context, key string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == nil {
		m.values[key] = nil
		return nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = b
	return nil
}

func (m *memCache) Get(_ context.Context, key string, dest interface{}) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return false, false, m.getErr
	}
	b, ok := m.values[key]
	if !ok {
		return false, false, nil
	}
	if b == nil {
		return true, true, nil
	}
	return true, false, json.Unmarshal(b, dest)
}

func (m *memCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}

var errBoom = errors.New("boom")

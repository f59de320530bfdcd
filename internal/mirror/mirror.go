// Package mirror 维护远端服药记录集合在本地的镜像，支持乐观插入、按操作回滚和权威刷新。
package mirror

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"MediCare/internal/adherence"
	"MediCare/internal/model"
)

// ErrRefreshSuperseded 刷新期间发生了乐观插入，本次刷新结果被丢弃
var ErrRefreshSuperseded = errors.New("refresh superseded by optimistic insert")

// FetchFunc 从远端拉取完整的服药记录集合
type FetchFunc func(ctx context.Context) ([]model.DoseLog, error)

// Entry 镜像中的一条记录，ActionID 非空表示尚未被远端确认的乐观插入
type Entry struct {
	ActionID string
	Log      model.DoseLog
}

// Provisional 是否为未确认的乐观插入
func (e Entry) Provisional() bool {
	return e.ActionID != ""
}

// Snapshot 镜像在某一时刻的值拷贝
type Snapshot struct {
	Entries []Entry
	Version uint64
}

// Pending 一次乐观插入的句柄，只能用于回滚或确认自己插入的那一条
type Pending struct {
	before       Snapshot
	actionID     string
	versionAfter uint64
}

// ActionID 返回本次乐观插入的标识
func (p *Pending) ActionID() string {
	return p.actionID
}

// Before 返回插入前的快照
func (p *Pending) Before() Snapshot {
	return cloneSnapshot(p.before)
}

type Mirror struct {
	mu          sync.Mutex
	entries     []Entry
	version     uint64
	epoch       uint64 // 每次乐观插入递增，用于作废进行中的刷新
	refreshes   map[uint64]context.CancelFunc
	nextRefresh uint64
	loaded      bool
}

func New() *Mirror {
	return &Mirror{refreshes: make(map[uint64]context.CancelFunc)}
}

// Loaded 是否已经从远端加载过
func (m *Mirror) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Snapshot 原子地拷贝当前镜像
func (m *Mirror) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Logs 返回镜像中的记录（含未确认的乐观插入）
func (m *Mirror) Logs() []model.DoseLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	logs := make([]model.DoseLog, len(m.entries))
	for i, e := range m.entries {
		logs[i] = e.Log
	}
	return logs
}

// TakenDates 按 loc 时区折算已服药日期集合
func (m *Mirror) TakenDates(loc *time.Location) adherence.TakenDates {
	logs := m.Logs()
	times := make([]time.Time, len(logs))
	for i, l := range logs {
		times[i] = l.TakenAt
	}
	return adherence.FromTimes(times, loc)
}

// InsertProvisional 取消所有进行中的刷新并同步插入一条乐观记录
func (m *Mirror) InsertProvisional(log model.DoseLog) *Pending {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelRefreshesLocked()

	p := &Pending{
		before:   m.snapshotLocked(),
		actionID: uuid.NewString(),
	}
	m.entries = append(m.entries, Entry{ActionID: p.actionID, Log: log})
	m.version++
	p.versionAfter = m.version
	return p
}

// Rollback 撤销 p 的乐观插入。
// 插入之后镜像未被改动时恢复为插入前的快照；否则只移除 p 自己插入的那一条，不影响其他操作。
func (m *Mirror) Rollback(p *Pending) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.version == p.versionAfter {
		m.entries = cloneEntries(p.before.Entries)
		m.version++
		return
	}

	if i := m.indexLocked(p.actionID); i >= 0 {
		m.entries = append(m.entries[:i:i], m.entries[i+1:]...)
		m.version++
	}
}

// Confirm 用远端确认的记录替换 p 的乐观记录
func (m *Mirror) Confirm(p *Pending, confirmed model.DoseLog) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 刷新可能已经带回了这条确认记录，此时只移除乐观记录
	if i := m.indexLocked(p.actionID); i >= 0 {
		if m.containsIDLocked(confirmed.ID) {
			m.entries = append(m.entries[:i:i], m.entries[i+1:]...)
		} else {
			m.entries[i] = Entry{Log: confirmed}
		}
	} else if !m.containsIDLocked(confirmed.ID) {
		m.entries = append(m.entries, Entry{Log: confirmed})
	}
	m.version++
}

// Replace 用远端的权威集合覆盖镜像，仍在进行中的乐观插入会被保留
func (m *Mirror) Replace(logs []model.DoseLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceLocked(logs)
}

// Refresh 拉取远端集合并覆盖镜像。
// 拉取期间若发生乐观插入，本次拉取会被取消且结果不会写入镜像，返回 ErrRefreshSuperseded。
func (m *Mirror) Refresh(ctx context.Context, fetch FetchFunc) error {
	m.mu.Lock()
	id := m.nextRefresh
	m.nextRefresh++
	epoch := m.epoch
	rctx, cancel := context.WithCancel(ctx)
	m.refreshes[id] = cancel
	m.mu.Unlock()

	logs, err := fetch(rctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refreshes, id)
	cancel()

	if m.epoch != epoch {
		return ErrRefreshSuperseded
	}
	if err != nil {
		return err
	}

	m.replaceLocked(logs)
	return nil
}

// CancelRefreshes 取消所有进行中的刷新，之后它们的结果都不会写入镜像
func (m *Mirror) CancelRefreshes() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelRefreshesLocked()
}

func (m *Mirror) cancelRefreshesLocked() {
	m.epoch++
	for id, cancel := range m.refreshes {
		cancel()
		delete(m.refreshes, id)
	}
}

func (m *Mirror) replaceLocked(logs []model.DoseLog) {
	entries := make([]Entry, 0, len(logs)+len(m.entries))
	for _, l := range logs {
		entries = append(entries, Entry{Log: l})
	}
	for _, e := range m.entries {
		if e.Provisional() {
			entries = append(entries, e)
		}
	}
	m.entries = entries
	m.version++
	m.loaded = true
}

func (m *Mirror) snapshotLocked() Snapshot {
	return Snapshot{Entries: cloneEntries(m.entries), Version: m.version}
}

func (m *Mirror) indexLocked(actionID string) int {
	for i, e := range m.entries {
		if e.ActionID == actionID {
			return i
		}
	}
	return -1
}

func (m *Mirror) containsIDLocked(id int64) bool {
	for _, e := range m.entries {
		if !e.Provisional() && e.Log.ID == id {
			return true
		}
	}
	return false
}

func cloneSnapshot(s Snapshot) Snapshot {
	return Snapshot{Entries: cloneEntries(s.Entries), Version: s.Version}
}

func cloneEntries(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

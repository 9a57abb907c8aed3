package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"clinic-chat-go/internal/model"
	"clinic-chat-go/pkg/events"
	"clinic-chat-go/pkg/llm"
)

type memPatients struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*model.Patient
}

func newMemPatients(ps ...model.Patient) *memPatients {
	m := &memPatients{rows: map[uint]*model.Patient{}, nextID: 100}
	for i := range ps {
		p := ps[i]
		m.rows[p.ID] = &p
	}
	return m
}

func (m *memPatients) Create(_ context.Context, p *model.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	cp := *p
	m.rows[p.ID] = &cp
	return nil
}

func (m *memPatients) FindByOwner(_ context.Context, ownerID, id uint) (*model.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok || p.UserID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPatients) ListByOwner(_ context.Context, ownerID uint) ([]model.Patient, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Patient
	for _, p := range m.rows {
		if p.UserID == ownerID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

func (m *memPatients) Update(_ context.Context, p *model.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.rows[p.ID] = &cp
	return nil
}

func (m *memPatients) DeleteByOwner(_ context.Context, ownerID, id uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok || p.UserID != ownerID {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

type memMessages struct {
	mu       sync.Mutex
	rows     []model.ChatMessage
	ctxErrs  []error
	lastList int
}

func (m *memMessages) Append(ctx context.Context, msg *model.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	msg.ID = uint(len(m.rows) + 1)
	msg.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.rows = append(m.rows, *msg)
	return nil
}

func (m *memMessages) ListOrdered(_ context.Context, ownerID, patientID uint, limit int) ([]model.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastList = limit
	out := make([]model.ChatMessage, 0)
	for _, r := range m.rows {
		if r.UserID == ownerID && r.PatientID == patientID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubResolver struct {
	outcome llm.Outcome
	gotMsg  string
	gotPC   llm.PatientContext
	calls   int
}

func (s *stubResolver) Resolve(_ context.Context, message string, pc llm.PatientContext) llm.Outcome {
	s.calls++
	s.gotMsg, s.gotPC = message, pc
	return s.outcome
}

type recordingPublisher struct {
	mu  sync.Mutex
	evs []events.ChatTurnEvent
	err error
}

func (r *recordingPublisher) PublishTurns(_ context.Context, evs ...events.ChatTurnEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, evs...)
	return r.err
}

type memUsers struct {
	mu   sync.Mutex
	rows map[uint]*model.User
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = uint(len(m.rows) + 1)
	cp := *u
	m.rows[u.ID] = &cp
	return nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) FindByID(_ context.Context, id uint) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

type memBlacklist struct {
	mu   sync.Mutex
	keys map[string]time.Duration
}

func (m *memBlacklist) Add(_ context.Context, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ttl > 0 {
		m.keys[token] = ttl
	}
	return nil
}

func (m *memBlacklist) Contains(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[token]
	return ok, nil
}

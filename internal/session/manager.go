package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/storefront-validation/pkg/errors"
)

// SnapshotRepository persists session snapshots so that another instance can
// rehydrate a session. Get returns an error wrapping apperrors.ErrNotFound
// when no snapshot exists.
type SnapshotRepository interface {
	Save(ctx context.Context, snap Snapshot, ttl time.Duration) error
	Get(ctx context.Context, id string) (Snapshot, error)
	Delete(ctx context.Context, id string) error
}

// ManagerConfig configures session lifetime.
type ManagerConfig struct {
	// IdleTTL evicts sessions not accessed for this long.
	IdleTTL time.Duration
	// SweepInterval is how often idle sessions are looked for.
	SweepInterval time.Duration
	// SaveTimeout bounds one snapshot write.
	SaveTimeout time.Duration
}

// DefaultManagerConfig returns a 30 minute idle TTL swept every minute.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		IdleTTL:       30 * time.Minute,
		SweepInterval: time.Minute,
		SaveTimeout:   2 * time.Second,
	}
}

type entry struct {
	sess     *Session
	lastSeen time.Time
	// persisted is closed once the snapshot writer has stopped.
	persisted chan struct{}
}

// Manager owns the live sessions of this instance.
type Manager struct {
	backend Backend
	repo    SnapshotRepository
	logger  *slog.Logger
	cfg     ManagerConfig
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewManager returns a manager. repo may be nil, in which case sessions live
// in memory only.
func NewManager(backend Backend, repo SnapshotRepository, cfg ManagerConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		backend:  backend,
		repo:     repo,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Create starts a session, resolves its settings and records the caller IP
// for ip-to-country. A settings failure is logged and the session keeps its
// defaults.
func (m *Manager) Create(ctx context.Context, clientIP string) *Session {
	s := New(uuid.NewString(), m.backend, m.logger)
	s.SetClientIP(clientIP)
	m.add(s)
	_ = s.Resolve(ctx) // logged by Resolve
	return s
}

// Get returns the session with the given id, rehydrating it from the
// snapshot repository when it is not held in memory.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	if e, ok := m.sessions[id]; ok {
		e.lastSeen = m.now()
		m.mu.Unlock()
		return e.sess, nil
	}
	m.mu.Unlock()

	if m.repo == nil {
		return nil, apperrors.NotFound("session", id)
	}
	snap, err := m.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("session", id)
		}
		return nil, apperrors.Wrap(err, "rehydrate session")
	}

	restored := Restore(snap, m.backend, m.logger)

	m.mu.Lock()
	if e, ok := m.sessions[id]; ok {
		// Another request restored it first.
		e.lastSeen = m.now()
		m.mu.Unlock()
		restored.Close()
		return e.sess, nil
	}
	m.addLocked(restored)
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "session rehydrated", slog.String("session_id", id))
	return restored, nil
}

// Delete tears a session down and removes its snapshot.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		m.stop(e)
	}
	if m.repo == nil {
		if !ok {
			return apperrors.NotFound("session", id)
		}
		return nil
	}

	err := m.repo.Delete(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperrors.ErrNotFound):
		if ok {
			return nil
		}
		return apperrors.NotFound("session", id)
	default:
		return apperrors.Wrap(err, "delete session snapshot")
	}
}

// Len returns the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run evicts idle sessions until ctx is done, then closes every session.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Close()
			return
		case <-ticker.C:
			if n := m.sweep(); n > 0 {
				m.logger.Debug("evicted idle sessions", slog.Int("count", n))
			}
		}
	}
}

// sweep closes sessions idle for longer than the TTL. Their snapshots stay
// in the repository until it expires them.
func (m *Manager) sweep() int {
	cutoff := m.now().Add(-m.cfg.IdleTTL)

	m.mu.Lock()
	var idle []*entry
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, e := range idle {
		m.stop(e)
	}
	return len(idle)
}

// Close closes every session held in memory.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*entry, 0, len(m.sessions))
	for id, e := range m.sessions {
		all = append(all, e)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, e := range all {
		m.stop(e)
	}
}

func (m *Manager) add(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLocked(s)
}

func (m *Manager) addLocked(s *Session) {
	e := &entry{sess: s, lastSeen: m.now(), persisted: make(chan struct{})}
	m.sessions[s.ID()] = e
	activeSessions.Inc()

	if m.repo == nil {
		close(e.persisted)
		return
	}
	updates, _ := s.Store().Subscribe()
	go m.persist(s.Snapshot(), updates, e.persisted)
}

// persist writes the initial snapshot and then every update until the
// session closes.
func (m *Manager) persist(initial Snapshot, updates <-chan Snapshot, done chan<- struct{}) {
	defer close(done)
	m.save(initial)
	for snap := range updates {
		m.save(snap)
	}
}

func (m *Manager) save(snap Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SaveTimeout)
	defer cancel()
	if err := m.repo.Save(ctx, snap, m.cfg.IdleTTL); err != nil {
		m.logger.Warn("failed to persist session snapshot",
			slog.String("session_id", snap.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Manager) stop(e *entry) {
	e.sess.Close()
	<-e.persisted
	activeSessions.Dec()
}

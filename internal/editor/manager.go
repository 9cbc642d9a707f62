package editor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docedit/internal/document"
	"github.com/dgallion1/docedit/internal/stats"
)

// Manager owns every live session and evicts idle ones.
type Manager struct {
	sessions *Store
	loader   LibraryLoader
	opts     Options
	stats    *stats.Recorder
	log      *slog.Logger

	newSurface func() document.Surface
	sweepEvery time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
	// closing tracks sessions being closed in the background.
	closing sync.WaitGroup
}

// NewManager creates a manager. Call Start to begin evicting idle sessions.
func NewManager(loader LibraryLoader, opts Options, ttl time.Duration, maxSessions int, rec *stats.Recorder, log *slog.Logger) *Manager {
	return &Manager{
		sessions:   NewStore(ttl, maxSessions),
		loader:     loader,
		opts:       opts,
		stats:      rec,
		log:        log,
		newSurface: func() document.Surface { return document.NewImageSurface() },
		sweepEvery: time.Minute,
	}
}

// Start launches the idle-session sweeper.
func (m *Manager) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}

// Stop halts the sweeper and closes every session.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	for _, sess := range m.sessions.Drain() {
		sess.Close()
	}
	m.closing.Wait()
}

// Sweep closes sessions idle for longer than the TTL.
func (m *Manager) Sweep() {
	for _, sess := range m.sessions.Cleanup() {
		m.log.Info("session expired", "session_id", sess.ID)
		m.closeAsync(sess)
	}
}

// NewSession creates and registers an empty session with a fresh surface.
func (m *Manager) NewSession() (*Session, error) {
	sess := NewSession(uuid.NewString(), m.loader, m.opts, m.log, m.stats)
	sess.AttachSurface(m.newSurface())
	if err := m.sessions.Put(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns a session by ID.
func (m *Manager) Get(id string) *Session {
	return m.sessions.Get(id)
}

// Delete forgets a session and closes it once any in-flight action
// finishes. It reports whether the session existed and does not wait.
func (m *Manager) Delete(id string) bool {
	sess := m.sessions.Delete(id)
	if sess == nil {
		return false
	}
	m.closeAsync(sess)
	return true
}

func (m *Manager) closeAsync(sess *Session) {
	m.closing.Add(1)
	go func() {
		defer m.closing.Done()
		<-sess.CloseAsync()
	}()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int { return m.sessions.Len() }

// Stats returns per-operation latency snapshots.
func (m *Manager) Stats() map[string]stats.Snapshot {
	if m.stats == nil {
		return map[string]stats.Snapshot{}
	}
	return m.stats.Snapshot()
}

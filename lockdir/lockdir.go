// Package lockdir implements the cross-process mutex that serializes
// credential prompts. The lock is a directory created atomically at a
// per-user path; it records the holder's pid and acquisition time so
// that waiters can reclaim it when the holder dies or outstays the
// staleness threshold. A crashed instance therefore never blocks
// authentication for longer than that threshold.
package lockdir

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/askbridge/askbridge/logging"
)

const (
	pidFileName       = "pid"
	timestampFileName = "timestamp"
)

// Defaults for the acquisition parameters.
const (
	DefaultWaitTimeout  = 5 * time.Second
	DefaultStaleAfter   = 30 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// Option customises a Manager.
type Option func(*Manager)

// WithWaitTimeout bounds how long Acquire waits on a genuinely held lock.
func WithWaitTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.waitTimeout = d
	}
}

// WithStaleAfter sets the age beyond which a lock is reclaimable even
// when its holder is still alive.
func WithStaleAfter(d time.Duration) Option {
	return func(m *Manager) {
		m.staleAfter = d
	}
}

// WithPollInterval sets the retry cadence while waiting on a held lock.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.pollInterval = d
	}
}

// WithLogger attaches a logger.
func WithLogger(p logging.Printer) Option {
	return func(m *Manager) {
		if p != nil {
			m.logger = p
		}
	}
}

// WithClock overrides the clock (primarily for tests).
func WithClock(fn func() time.Time) Option {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithLivenessProbe overrides the holder liveness check (primarily for tests).
func WithLivenessProbe(fn func(pid int) bool) Option {
	return func(m *Manager) {
		if fn != nil {
			m.alive = fn
		}
	}
}

// Manager coordinates acquisition and release of one lock directory.
type Manager struct {
	dir          string
	waitTimeout  time.Duration
	staleAfter   time.Duration
	pollInterval time.Duration

	logger logging.Printer
	now    func() time.Time
	alive  func(pid int) bool
	remove func(path string) error
}

// New creates a Manager for the lock directory at dir. The parent of
// dir must exist before Acquire is called.
func New(dir string, opts ...Option) *Manager {
	m := &Manager{
		dir:          dir,
		waitTimeout:  DefaultWaitTimeout,
		staleAfter:   DefaultStaleAfter,
		pollInterval: DefaultPollInterval,
		logger:       logging.NewNop(),
		now:          time.Now,
		alive:        pidAlive,
		remove:       os.RemoveAll,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the lock directory path.
func (m *Manager) Dir() string {
	return m.dir
}

// StaleAfter returns the staleness threshold. Prompt invocations are
// bounded by the same duration so a hung prompt cannot hold the lock
// past the point where a waiter would reclaim it.
func (m *Manager) StaleAfter() time.Duration {
	return m.staleAfter
}

// Handle represents a held lock. Release is idempotent and safe to call
// from the signal path concurrently with normal completion.
type Handle struct {
	m        *Manager
	pid      int
	acquired time.Time
	once     sync.Once
}

// Acquire attempts to take the lock, reclaiming stale records along the
// way. It returns ErrBusy when the lock stayed held by a live process
// for the whole wait window, ctx.Err() on cancellation, and a LockError
// for environment failures such as a missing parent directory.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	start := m.now()

	var watch *releaseWatch
	defer func() {
		if watch != nil {
			watch.Close()
		}
	}()

	for {
		h, err := m.tryCreate()
		if err == nil {
			return h, nil
		}
		if !os.IsExist(err) {
			return nil, &LockError{Dir: m.dir, Err: err}
		}

		rec, recErr := m.readRecord()
		reclaimable := false
		switch {
		case recErr == nil && !m.alive(rec.pid):
			m.logger.Infof("reclaiming lock: holder pid %d is gone", rec.pid)
			reclaimable = true
		case recErr == nil && m.now().Sub(rec.acquired) > m.staleAfter:
			m.logger.Infof("reclaiming lock: pid %d has held it for %s", rec.pid, m.now().Sub(rec.acquired).Round(time.Second))
			reclaimable = true
		case recErr != nil && m.dirAge() > m.staleAfter:
			// Metadata never materialized (holder crashed mid-write)
			// or is corrupt; the directory's own age decides.
			m.logger.Warnf("reclaiming lock with unreadable record: %v", recErr)
			reclaimable = true
		}
		if reclaimable {
			if m.reclaim() == nil {
				continue
			}
			// Removal failed; the lock counts as held so the wait
			// stays bounded.
		}

		if m.now().Sub(start) >= m.waitTimeout {
			return nil, ErrBusy
		}

		if watch == nil {
			watch = newReleaseWatch(filepath.Dir(m.dir))
		}
		watch.wait(ctx, m.pollInterval)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

// tryCreate attempts the atomic directory creation and, on success,
// records holder metadata. The raw Mkdir error is passed through so the
// caller can distinguish "already exists" from environment failures.
func (m *Manager) tryCreate() (*Handle, error) {
	if err := os.Mkdir(m.dir, 0700); err != nil {
		return nil, err
	}

	now := m.now()
	pid := os.Getpid()
	if err := m.writeRecord(pid, now); err != nil {
		_ = m.remove(m.dir)
		return nil, err
	}
	if err := os.Chmod(m.dir, 0700); err != nil {
		_ = m.remove(m.dir)
		return nil, err
	}

	m.logger.Debugf("lock acquired by pid %d", pid)
	return &Handle{m: m, pid: pid, acquired: now}, nil
}

type record struct {
	pid      int
	acquired time.Time
}

func (m *Manager) writeRecord(pid int, now time.Time) error {
	if err := os.WriteFile(filepath.Join(m.dir, pidFileName), []byte(strconv.Itoa(pid)+"\n"), 0600); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.dir, timestampFileName), []byte(strconv.FormatInt(now.Unix(), 10)+"\n"), 0600)
}

func (m *Manager) readRecord() (record, error) {
	pidData, err := os.ReadFile(filepath.Join(m.dir, pidFileName))
	if err != nil {
		return record{}, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		return record{}, &LockError{Dir: m.dir, Err: err}
	}

	tsData, err := os.ReadFile(filepath.Join(m.dir, timestampFileName))
	if err != nil {
		return record{}, err
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(string(tsData)), 10, 64)
	if err != nil {
		return record{}, &LockError{Dir: m.dir, Pid: pid, Err: err}
	}

	return record{pid: pid, acquired: time.Unix(secs, 0)}, nil
}

// dirAge measures the lock directory's age from its mtime. Returns zero
// when the directory is gone, which defers the decision to the next
// create attempt.
func (m *Manager) dirAge() time.Duration {
	fi, err := os.Stat(m.dir)
	if err != nil {
		return 0
	}
	return m.now().Sub(fi.ModTime())
}

func (m *Manager) reclaim() error {
	err := m.remove(m.dir)
	if err != nil {
		m.logger.Warnf("failed to remove stale lock: %v", err)
	}
	return err
}

// Release removes the lock if this handle still owns it. When the lock
// was reclaimed and is now owned by someone else, the current record is
// left untouched. Calling Release again is a no-op.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	h.once.Do(h.release)
}

func (h *Handle) release() {
	rec, err := h.m.readRecord()
	if err != nil {
		h.m.logger.Debugf("release: lock record unreadable, leaving it: %v", err)
		return
	}
	if rec.pid != h.pid {
		h.m.logger.Warnf("release: lock now owned by pid %d, leaving it", rec.pid)
		return
	}
	if err := h.m.remove(h.m.dir); err != nil {
		h.m.logger.Errorf("release failed: %v", err)
		return
	}
	h.m.logger.Debugf("lock released by pid %d", h.pid)
}

// Info describes the lock record currently on disk.
type Info struct {
	Pid         int
	Acquired    time.Time
	HolderAlive bool
	Stale       bool
}

// Inspect reports the lock currently on disk. ok is false when no lock
// directory exists. A record that cannot be read yields an Info with a
// zero Pid, aged by the directory's mtime.
func (m *Manager) Inspect() (Info, bool) {
	fi, err := os.Stat(m.dir)
	if err != nil {
		return Info{}, false
	}

	rec, err := m.readRecord()
	if err != nil {
		return Info{Stale: m.now().Sub(fi.ModTime()) > m.staleAfter}, true
	}

	alive := m.alive(rec.pid)
	return Info{
		Pid:         rec.pid,
		Acquired:    rec.acquired,
		HolderAlive: alive,
		Stale:       !alive || m.now().Sub(rec.acquired) > m.staleAfter,
	}, true
}

// pidAlive reports whether pid refers to a live process. Probe errors
// count as alive: the age threshold still reclaims the lock eventually.
func pidAlive(pid int) bool {
	alive, err := process.PidExists(int32(pid))
	if err != nil {
		return true
	}
	return alive
}

// Package builddir hands out exclusive access to the working directories of
// source builds. A directory is keyed by repository and source version; holders
// are serialized within the process by a keyed mutex table and across processes
// by an advisory file lock that the kernel drops when its holder dies.
package builddir

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/xerrors"

	"github.com/srcdeps/srcdeps-go/pkg/srcversion"
)

const (
	lockSuffix        = ".lock"
	defaultRetryDelay = 500 * time.Millisecond
)

// LockAcquisitionError is returned when the build directory could not be locked.
type LockAcquisitionError struct {
	Path string
	Err  error
}

func (e *LockAcquisitionError) Error() string {
	return fmt.Sprintf("unable to lock build directory %s: %s", e.Path, e.Err)
}

func (e *LockAcquisitionError) Unwrap() error {
	return e.Err
}

type Option struct {
	// RetryDelay is the polling interval while another process holds the file lock.
	RetryDelay time.Duration
}

// Manager owns the build directories below a root directory.
type Manager struct {
	root       string
	retryDelay time.Duration
	logger     *slog.Logger

	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sem  chan struct{}
	refs int
}

func NewManager(root string, opt Option) *Manager {
	if opt.RetryDelay <= 0 {
		opt.RetryDelay = defaultRetryDelay
	}
	return &Manager{
		root:       root,
		retryDelay: opt.RetryDelay,
		logger:     slog.With(slog.String("component", "builddir")),
		locks:      make(map[string]*keyedLock),
	}
}

func (m *Manager) Root() string {
	return m.root
}

// Dir returns the working directory of a build. It is stable across runs so
// an interrupted build is retried in the same place.
func (m *Manager) Dir(repoIDPath string, v srcversion.SrcVersion) string {
	return filepath.Join(m.root, repoIDPath, v.String())
}

// OpenBuildDirectory blocks until the directory for (repoIDPath, v) is free,
// creates it if needed and returns the lock bound to it. The caller must Close
// the returned lock.
func (m *Manager) OpenBuildDirectory(ctx context.Context, repoIDPath string, v srcversion.SrcVersion) (*PathLock, error) {
	dir := m.Dir(repoIDPath, v)

	if err := m.acquire(ctx, dir); err != nil {
		return nil, &LockAcquisitionError{Path: dir, Err: err}
	}

	fl, err := m.lockFile(ctx, dir)
	if err != nil {
		m.release(dir)
		return nil, &LockAcquisitionError{Path: dir, Err: err}
	}

	if err = os.MkdirAll(dir, 0755); err != nil {
		if uerr := fl.Unlock(); uerr != nil {
			m.logger.Error("Failed to unlock build directory", slog.String("path", dir), slog.Any("error", uerr))
		}
		m.release(dir)
		return nil, &LockAcquisitionError{Path: dir, Err: xerrors.Errorf("unable to create build directory: %w", err)}
	}

	m.logger.Debug("Locked build directory", slog.String("path", dir))
	return &PathLock{
		path:    dir,
		file:    fl,
		manager: m,
	}, nil
}

func (m *Manager) lockFile(ctx context.Context, dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return nil, xerrors.Errorf("unable to create lock directory: %w", err)
	}

	fl := flock.New(dir + lockSuffix)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, xerrors.Errorf("file lock error: %w", err)
	}
	if locked {
		return fl, nil
	}

	m.logger.Info("Waiting for another process to release the build directory", slog.String("path", dir))
	locked, err = fl.TryLockContext(ctx, m.retryDelay)
	if err != nil {
		return nil, xerrors.Errorf("file lock error: %w", err)
	}
	if !locked {
		return nil, xerrors.Errorf("file lock %s not acquired", fl.Path())
	}
	return fl, nil
}

// acquire takes the in-process slot of key, waiting for the current holder if any.
func (m *Manager) acquire(ctx context.Context, key string) error {
	m.mu.Lock()
	kl, ok := m.locks[key]
	if !ok {
		kl = &keyedLock{sem: make(chan struct{}, 1)}
		m.locks[key] = kl
	}
	kl.refs++
	m.mu.Unlock()

	select {
	case kl.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		m.unref(key, kl)
		return ctx.Err()
	}
}

func (m *Manager) release(key string) {
	m.mu.Lock()
	kl := m.locks[key]
	m.mu.Unlock()
	if kl == nil {
		return
	}
	<-kl.sem
	m.unref(key, kl)
}

func (m *Manager) unref(key string, kl *keyedLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(m.locks, key)
	}
}

// PathLock is the exclusive ownership of one build directory.
type PathLock struct {
	path    string
	file    *flock.Flock
	manager *Manager

	once sync.Once
	err  error
}

// Path returns the locked working directory.
func (l *PathLock) Path() string {
	return l.path
}

// Close releases the lock. It is safe to call more than once.
func (l *PathLock) Close() error {
	l.once.Do(func() {
		if err := l.file.Unlock(); err != nil {
			l.err = xerrors.Errorf("unable to unlock %s: %w", l.file.Path(), err)
		}
		l.manager.release(l.path)
		l.manager.logger.Debug("Released build directory", slog.String("path", l.path))
	})
	return l.err
}

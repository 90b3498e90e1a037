package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sessionKeyPrefix = "vacancy-report:session:"

// sweepGrace files younger than this are never swept; Put writes the file before indexing it.
const sweepGrace = 5 * time.Minute

var (
	ErrNoDataset      = errors.New("no dataset loaded for session")
	ErrInvalidHandle  = errors.New("invalid dataset handle")
	ErrInvalidSession = errors.New("invalid session id")
)

// Record what a session has loaded
type Record struct {
	SessionID  string    `json:"session_id"`
	Handle     string    `json:"handle,omitempty"`
	Name       string    `json:"name,omitempty"`
	UploadedAt time.Time `json:"uploaded_at,omitempty"`
}

// Loaded reports whether the session holds a dataset.
func (r *Record) Loaded() bool { return r != nil && r.Handle != "" }

// DatasetStore session-scoped processed workbooks: files on disk, session index in a KV.
type DatasetStore struct {
	kv     KV
	dir    string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewDatasetStore(kv KV, dir string, ttl time.Duration, logger *zap.Logger) (*DatasetStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatasetStore{kv: kv, dir: dir, ttl: ttl, logger: logger, now: time.Now}, nil
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

// StartSession registers a new empty session and returns its id.
func (s *DatasetStore) StartSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := s.save(ctx, &Record{SessionID: id}); err != nil {
		return "", err
	}
	return id, nil
}

// Put stores a processed workbook for a session, replacing (and deleting) any previous one.
func (s *DatasetStore) Put(ctx context.Context, sessionID, name string, data []byte) (*Record, error) {
	if err := validSession(sessionID); err != nil {
		return nil, err
	}
	prev, err := s.Current(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrNoDataset) {
		return nil, err
	}

	rec := &Record{
		SessionID:  sessionID,
		Handle:     uuid.NewString(),
		Name:       filepath.Base(name),
		UploadedAt: s.now().UTC(),
	}
	if err := os.WriteFile(s.path(rec.Handle), data, 0o644); err != nil {
		return nil, fmt.Errorf("write dataset: %w", err)
	}
	if err := s.save(ctx, rec); err != nil {
		_ = os.Remove(s.path(rec.Handle))
		return nil, err
	}

	if prev.Loaded() {
		s.removeFile(prev.Handle)
	}
	s.logger.Info("dataset stored",
		zap.String("session_id", sessionID),
		zap.String("handle", rec.Handle),
		zap.String("name", rec.Name),
		zap.Int("bytes", len(data)),
	)
	return rec, nil
}

// Current record of a session; ErrNoDataset when nothing is loaded or the session is unknown.
func (s *DatasetStore) Current(ctx context.Context, sessionID string) (*Record, error) {
	if err := validSession(sessionID); err != nil {
		return nil, err
	}
	raw, err := s.kv.Get(ctx, sessionKey(sessionID))
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return nil, ErrNoDataset
		}
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	if !rec.Loaded() {
		return &rec, ErrNoDataset
	}
	return &rec, nil
}

// Get workbook bytes by handle.
func (s *DatasetStore) Get(_ context.Context, handle string) ([]byte, error) {
	if _, err := uuid.Parse(handle); err != nil {
		return nil, ErrInvalidHandle
	}
	data, err := os.ReadFile(s.path(handle))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoDataset
		}
		return nil, fmt.Errorf("read dataset %s: %w", handle, err)
	}
	return data, nil
}

// Drop ends a session: removes its file and index entry.
func (s *DatasetStore) Drop(ctx context.Context, sessionID string) error {
	rec, err := s.Current(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrNoDataset) {
		return err
	}
	if rec.Loaded() {
		s.removeFile(rec.Handle)
	}
	if err := s.kv.Del(ctx, sessionKey(sessionID)); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	s.logger.Info("session dropped", zap.String("session_id", sessionID))
	return nil
}

// expirer backends that keep expired entries until purged
type expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Sweep deletes workbook files no live session points to (sessions expired by TTL).
// Files inside the grace window are left for the next run.
func (s *DatasetStore) Sweep(ctx context.Context) (int, error) {
	if e, ok := s.kv.(expirer); ok {
		if n, err := e.DeleteExpired(ctx); err != nil {
			s.logger.Warn("failed to purge expired sessions", zap.Error(err))
		} else if n > 0 {
			s.logger.Info("expired sessions purged", zap.Int64("count", n))
		}
	}
	keys, err := s.kv.ScanKeys(ctx, sessionKeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan sessions: %w", err)
	}
	live := make(map[string]bool, len(keys))
	for _, k := range keys {
		rec, err := s.Current(ctx, strings.TrimPrefix(k, sessionKeyPrefix))
		if err == nil && rec.Loaded() {
			live[rec.Handle] = true
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("list upload dir: %w", err)
	}
	removed := 0
	for _, e := range entries {
		name := e.Name()
		handle := strings.TrimSuffix(name, filepath.Ext(name))
		if e.IsDir() || filepath.Ext(name) != ".xlsx" || live[handle] {
			continue
		}
		if _, err := uuid.Parse(handle); err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil || s.now().Sub(info.ModTime()) < sweepGrace {
			continue
		}
		s.removeFile(handle)
		removed++
	}
	if removed > 0 {
		s.logger.Info("orphaned datasets removed", zap.Int("count", removed))
	}
	return removed, nil
}

func (s *DatasetStore) save(ctx context.Context, rec *Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, sessionKey(rec.SessionID), string(b), s.ttl); err != nil {
		return fmt.Errorf("save session %s: %w", rec.SessionID, err)
	}
	return nil
}

func (s *DatasetStore) path(handle string) string {
	return filepath.Join(s.dir, handle+".xlsx")
}

func (s *DatasetStore) removeFile(handle string) {
	if err := os.Remove(s.path(handle)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove dataset file", zap.String("handle", handle), zap.Error(err))
	}
}

func validSession(id string) error {
	if strings.TrimSpace(id) == "" || strings.ContainsAny(id, "*?[]") {
		return ErrInvalidSession
	}
	return nil
}

package backups

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"complaintdesk/config"
	"complaintdesk/core/complaints"
	"complaintdesk/core/store"
	"complaintdesk/core/utils"

	"go.etcd.io/bbolt"
)

const (
	formatVersion    = 1
	snapshotPrefix   = "complaints-"
	snapshotExt      = ".snap"
	snapshotTimeForm = "20060102T150405Z"
)

var (
	bucketMeta       = []byte("meta")
	bucketComplaints = []byte("complaints")
	keyManifest      = []byte("manifest")
)

var (
	ErrBusy            = errors.New("backups: another snapshot operation is running")
	ErrInvalidSnapshot = errors.New("backups: invalid snapshot")
)

// Manifest describes the content of a snapshot file.
type Manifest struct {
	FormatVersion int                `json:"format_version"`
	CreatedAt     time.Time          `json:"created_at"`
	Count         int                `json:"count"`
	Counts        complaints.Summary `json:"counts"`
}

// Artifact is a snapshot file found in the backup directory.
type Artifact struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	SHA256    string    `json:"sha256"`
	CreatedAt time.Time `json:"created_at"`
}

type Service struct {
	cfg    config.BackupsConfig
	repo   complaints.Repository
	audits store.AuditStore
	logger *utils.Logger
	now    func() time.Time
	opMu   sync.Mutex
}

func NewService(cfg config.BackupsConfig, repo complaints.Repository, audits store.AuditStore, logger *utils.Logger) *Service {
	return &Service{cfg: cfg, repo: repo, audits: audits, logger: logger, now: utils.NowUTC}
}

// Export writes every complaint to a bbolt file at path. Keys are the
// zero-padded creation position, so a cursor walk yields creation order.
func (s *Service) Export(ctx context.Context, path string) (*Manifest, error) {
	if !s.opMu.TryLock() {
		return nil, ErrBusy
	}
	defer s.opMu.Unlock()

	items, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load complaints: %w", err)
	}
	for i := range items {
		if err := complaints.Verify(&items[i]); err != nil {
			return nil, fmt.Errorf("refusing to export: %w", err)
		}
	}
	manifest := &Manifest{
		FormatVersion: formatVersion,
		CreatedAt:     s.now(),
		Count:         len(items),
		Counts:        complaints.Summarize(items),
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	_ = os.Remove(tmp)
	if err := writeSnapshot(tmp, manifest, items); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("publish snapshot: %w", err)
	}
	s.audit(ctx, AuditExport, "success", fmt.Sprintf("path=%s count=%d", path, manifest.Count))
	s.logger.Printf("exported %d complaints to %s", manifest.Count, path)
	return manifest, nil
}

func writeSnapshot(path string, manifest *Manifest, items []complaints.Complaint) error {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer db.Close()
	return db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(manifest)
		if err != nil {
			return err
		}
		if err := meta.Put(keyManifest, raw); err != nil {
			return err
		}
		b, err := tx.CreateBucketIfNotExists(bucketComplaints)
		if err != nil {
			return err
		}
		for i := range items {
			data, err := json.Marshal(items[i])
			if err != nil {
				return err
			}
			if err := b.Put([]byte(fmt.Sprintf("%08d", i+1)), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Read loads and checks a snapshot without touching the repository.
func Read(path string) (*Manifest, []complaints.Complaint, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	defer db.Close()

	var (
		manifest Manifest
		items    []complaints.Complaint
	)
	err = db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return fmt.Errorf("bucket %s not found", bucketMeta)
		}
		raw := meta.Get(keyManifest)
		if raw == nil {
			return fmt.Errorf("manifest not found")
		}
		if err := json.Unmarshal(raw, &manifest); err != nil {
			return err
		}
		b := tx.Bucket(bucketComplaints)
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketComplaints)
		}
		return b.ForEach(func(k, v []byte) error {
			var c complaints.Complaint
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("entry %s: %w", k, err)
			}
			items = append(items, c)
			return nil
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if manifest.FormatVersion != formatVersion {
		return nil, nil, fmt.Errorf("%w: format version %d", ErrInvalidSnapshot, manifest.FormatVersion)
	}
	if manifest.Count != len(items) {
		return nil, nil, fmt.Errorf("%w: manifest lists %d complaints, file holds %d", ErrInvalidSnapshot, manifest.Count, len(items))
	}
	seen := make(map[string]struct{}, len(items))
	for i := range items {
		if _, dup := seen[items[i].ID]; dup {
			return nil, nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidSnapshot, items[i].ID)
		}
		seen[items[i].ID] = struct{}{}
		if err := complaints.Verify(&items[i]); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
	}
	return &manifest, items, nil
}

// Import replaces every stored complaint with the snapshot content.
func (s *Service) Import(ctx context.Context, path, actor string) (*Manifest, error) {
	if !s.opMu.TryLock() {
		return nil, ErrBusy
	}
	defer s.opMu.Unlock()

	if actor == "" {
		actor = "system"
	}
	manifest, items, err := Read(path)
	if err != nil {
		Log(s.audits, ctx, actor, AuditImport, "failed", err.Error())
		return nil, err
	}
	if err := s.repo.SaveAll(ctx, items); err != nil {
		Log(s.audits, ctx, actor, AuditImport, "failed", err.Error())
		return nil, fmt.Errorf("save snapshot content: %w", err)
	}
	Log(s.audits, ctx, actor, AuditImport, "success", fmt.Sprintf("path=%s count=%d", path, manifest.Count))
	s.logger.Printf("imported %d complaints from %s", manifest.Count, path)
	return manifest, nil
}

// RunScheduled writes a timestamped snapshot into the backup directory and
// prunes the oldest files beyond the retention count.
func (s *Service) RunScheduled(ctx context.Context) (*Artifact, error) {
	name := snapshotPrefix + s.now().Format(snapshotTimeForm) + snapshotExt
	path := filepath.Join(s.cfg.Dir, name)
	if _, err := s.Export(ctx, path); err != nil {
		s.audit(ctx, AuditScheduledFailed, "failed", err.Error())
		return nil, err
	}
	if err := s.applyRetention(ctx); err != nil {
		s.logger.Errorf("snapshot retention: %v", err)
	}
	return describe(path)
}

func (s *Service) List() ([]Artifact, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Artifact{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := []Artifact{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), snapshotPrefix) || !strings.HasSuffix(e.Name(), snapshotExt) {
			continue
		}
		a, err := describe(filepath.Join(s.cfg.Dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

func (s *Service) applyRetention(ctx context.Context) error {
	if s.cfg.Retain <= 0 {
		return nil
	}
	items, err := s.List()
	if err != nil {
		return err
	}
	for _, a := range items[min(len(items), s.cfg.Retain):] {
		if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
			return err
		}
		s.audit(ctx, AuditRetentionDeleted, "success", a.Name)
	}
	return nil
}

func describe(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	name := filepath.Base(path)
	created := st.ModTime().UTC()
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotExt)
	if t, err := time.Parse(snapshotTimeForm, stamp); err == nil {
		created = t
	}
	return &Artifact{
		Name:      name,
		Path:      path,
		Size:      st.Size(),
		SHA256:    hex.EncodeToString(h.Sum(nil)),
		CreatedAt: created,
	}, nil
}

func (s *Service) audit(ctx context.Context, action, result, details string) {
	Log(s.audits, ctx, "system", action, result, details)
}

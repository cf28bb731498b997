package targets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"service-catalog/core/reconcile"
	"service-catalog/core/storage"
	"service-catalog/feature/catalog/models"
	"service-catalog/feature/catalog/normalize"

	"github.com/minio/minio-go/v7"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// BackupSuffix is appended to the snapshot name for the previous generation.
const BackupSuffix = ".bak"

// Document is the snapshot layout read by the frontend.
type Document struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Services    []models.LegacyRecord `json:"services"`
}

// Backend reads and writes the raw snapshot bytes.
type Backend interface {
	// Read returns the current snapshot, or nil when none exists yet.
	Read(ctx context.Context) ([]byte, error)
	// Write replaces the snapshot, keeping the previous one as a backup.
	Write(ctx context.Context, data []byte) error
	// Location describes where the snapshot lives, for logs.
	Location() string
}

// FileBackend stores the snapshot on a filesystem.
type FileBackend struct {
	fs   afero.Fs
	path string
}

// NewFileBackend creates a file backend. Use afero.NewOsFs() in production.
func NewFileBackend(fs afero.Fs, path string) *FileBackend {
	return &FileBackend{fs: fs, path: path}
}

// Read returns the file contents.
func (b *FileBackend) Read(ctx context.Context) ([]byte, error) {
	data, err := afero.ReadFile(b.fs, b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", b.path, err)
	}
	return data, nil
}

// Write moves the current file to the backup and writes data in its place.
// The new file is written to a temporary name first and renamed over.
func (b *FileBackend) Write(ctx context.Context, data []byte) error {
	if err := b.fs.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	if exists, err := afero.Exists(b.fs, b.path); err != nil {
		return err
	} else if exists {
		current, err := afero.ReadFile(b.fs, b.path)
		if err != nil {
			return fmt.Errorf("failed to read snapshot for backup: %w", err)
		}
		if err := afero.WriteFile(b.fs, b.path+BackupSuffix, current, 0o644); err != nil {
			return fmt.Errorf("failed to write snapshot backup: %w", err)
		}
	}

	tmp := b.path + ".tmp"
	if err := afero.WriteFile(b.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := b.fs.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Location returns the file path.
func (b *FileBackend) Location() string {
	return b.path
}

// ObjectBackend stores the snapshot as an object in a bucket.
type ObjectBackend struct {
	client storage.Client
	bucket string
	object string
}

// NewObjectBackend creates an object storage backend.
func NewObjectBackend(client storage.Client, bucket, object string) *ObjectBackend {
	return &ObjectBackend{client: client, bucket: bucket, object: object}
}

// Read downloads the object.
func (b *ObjectBackend) Read(ctx context.Context) ([]byte, error) {
	data, err := b.get(ctx, b.object)
	if storage.IsNotFound(err) {
		return nil, nil
	}
	return data, err
}

// Write copies the current object to the backup name and uploads data.
func (b *ObjectBackend) Write(ctx context.Context, data []byte) error {
	current, err := b.get(ctx, b.object)
	switch {
	case storage.IsNotFound(err):
	case err != nil:
		return err
	default:
		if err := b.put(ctx, b.object+BackupSuffix, current); err != nil {
			return fmt.Errorf("failed to write snapshot backup: %w", err)
		}
	}
	return b.put(ctx, b.object, data)
}

// Location returns bucket/object.
func (b *ObjectBackend) Location() string {
	return b.bucket + "/" + b.object
}

func (b *ObjectBackend) get(ctx context.Context, name string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	// minio reports a missing key on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (b *ObjectBackend) put(ctx context.Context, name string, data []byte) error {
	_, err := b.client.PutObject(ctx, b.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return nil
}

// SnapshotTarget reconciles into the static snapshot. Writes are buffered
// in memory and persisted wholesale by Commit.
type SnapshotTarget struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time

	services []models.LegacyRecord
	nextID   uint64
}

var (
	_ reconcile.Target[models.ServiceRecord] = (*SnapshotTarget)(nil)
	_ reconcile.Preparer                     = (*SnapshotTarget)(nil)
	_ reconcile.Committer                    = (*SnapshotTarget)(nil)
)

// NewSnapshotTarget creates a snapshot target over backend.
func NewSnapshotTarget(backend Backend, logger *zap.Logger) *SnapshotTarget {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotTarget{backend: backend, logger: logger, now: time.Now}
}

// Name returns "snapshot".
func (t *SnapshotTarget) Name() string {
	return string(reconcile.KindSnapshot)
}

// Prepare loads the current snapshot. A missing snapshot starts empty; an
// unreadable one is logged and regenerated from scratch.
func (t *SnapshotTarget) Prepare(ctx context.Context, _ reconcile.ReconcileOptions) error {
	t.services = nil
	t.nextID = 0

	data, err := t.backend.Read(ctx)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.logger.Warn("Snapshot is unreadable, regenerating",
			zap.String("location", t.backend.Location()),
			zap.Error(err),
		)
		return nil
	}

	t.services = doc.Services
	for i := range t.services {
		if n, err := strconv.ParseUint(t.services[i].ID, 10, 64); err == nil && n > t.nextID {
			t.nextID = n
		}
	}
	// Entries without a numeric id get one so they can be updated or pruned.
	for i := range t.services {
		if _, err := strconv.ParseUint(t.services[i].ID, 10, 64); err != nil {
			t.nextID++
			t.services[i].ID = strconv.FormatUint(t.nextID, 10)
		}
	}
	return nil
}

// List returns the snapshot entries in canonical form.
func (t *SnapshotTarget) List(ctx context.Context) ([]reconcile.Item[models.ServiceRecord], error) {
	items := make([]reconcile.Item[models.ServiceRecord], 0, len(t.services))
	for _, s := range t.services {
		items = append(items, reconcile.Item[models.ServiceRecord]{
			ID:    s.ID,
			Value: normalize.ToCanonical(s.Raw()),
		})
	}
	return items, nil
}

// Create appends rec with the next sequential id.
func (t *SnapshotTarget) Create(ctx context.Context, rec models.ServiceRecord) (string, error) {
	t.nextID++
	legacy := normalize.ToLegacyFlat(rec)
	legacy.ID = strconv.FormatUint(t.nextID, 10)
	t.services = append(t.services, legacy)
	return legacy.ID, nil
}

// Update replaces the entry with id.
func (t *SnapshotTarget) Update(ctx context.Context, id string, rec models.ServiceRecord) error {
	i := t.indexOf(id)
	if i < 0 {
		return fmt.Errorf("snapshot entry %s not found", id)
	}
	legacy := normalize.ToLegacyFlat(rec)
	legacy.ID = id
	t.services[i] = legacy
	return nil
}

// Delete removes the entry with id.
func (t *SnapshotTarget) Delete(ctx context.Context, id string) error {
	i := t.indexOf(id)
	if i < 0 {
		return fmt.Errorf("snapshot entry %s not found", id)
	}
	t.services = append(t.services[:i], t.services[i+1:]...)
	return nil
}

// Commit writes the full document through the backend.
func (t *SnapshotTarget) Commit(ctx context.Context) error {
	services := t.services
	if services == nil {
		services = []models.LegacyRecord{}
	}

	data, err := json.MarshalIndent(Document{GeneratedAt: t.now().UTC(), Services: services}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := t.backend.Write(ctx, append(data, '\n')); err != nil {
		return err
	}

	t.logger.Info("Snapshot written",
		zap.String("location", t.backend.Location()),
		zap.Int("services", len(services)),
	)
	return nil
}

func (t *SnapshotTarget) indexOf(id string) int {
	for i := range t.services {
		if t.services[i].ID == id {
			return i
		}
	}
	return -1
}

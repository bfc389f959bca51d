package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/timmy/scribe/internal/logger"
)

// Mirror copies pipeline artifacts to object storage. Copies are best
// effort: failures are logged and never reach the caller. A nil *Mirror
// is valid and does nothing.
type Mirror struct {
	store ObjectStorage
}

// NewMirror wraps store. A nil store yields a nil Mirror.
func NewMirror(store ObjectStorage) *Mirror {
	if store == nil {
		return nil
	}
	return &Mirror{store: store}
}

// Enabled reports whether artifacts are being mirrored.
func (m *Mirror) Enabled() bool {
	return m != nil && m.store != nil
}

// Key joins a prefix and file name into an object key.
func Key(prefix, name string) string {
	return path.Join(prefix, filepath.Base(name))
}

// MirrorFile uploads the file at localPath under prefix/<base name>.
func (m *Mirror) MirrorFile(ctx context.Context, prefix, localPath string) {
	if !m.Enabled() {
		return
	}
	key := Key(prefix, localPath)
	if err := m.uploadFile(ctx, key, localPath); err != nil {
		logger.FromContext(ctx).WithError(err).Warnf("Failed to mirror %s to object storage", key)
		return
	}
	logger.CtxDebug(ctx, "Mirrored %s to %s", localPath, m.store.URL(key))
}

// MirrorContent uploads content under prefix/name.
func (m *Mirror) MirrorContent(ctx context.Context, prefix, name string, content []byte) {
	if !m.Enabled() {
		return
	}
	key := Key(prefix, name)
	err := m.store.Put(ctx, key, bytes.NewReader(content), int64(len(content)), contentType(name))
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warnf("Failed to mirror %s to object storage", key)
	}
}

// Fetch reads prefix/name back from object storage. A disabled mirror
// reports ErrObjectNotFound.
func (m *Mirror) Fetch(ctx context.Context, prefix, name string) ([]byte, error) {
	if !m.Enabled() {
		return nil, ErrObjectNotFound
	}
	body, err := m.store.Get(ctx, Key(prefix, name))
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (m *Mirror) uploadFile(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}
	return m.store.Put(ctx, key, f, info.Size(), contentType(localPath))
}

func contentType(name string) string {
	switch ext := filepath.Ext(name); ext {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".m4a":
		return "audio/mp4"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}

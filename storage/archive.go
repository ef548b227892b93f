// Package storage legt die Rohdaten jedes Ingests zur Nachvollziehbarkeit ab.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"competitor-watch/config"
)

// Archive speichert einen Rohdatensatz unter einem Schlüssel und gibt den Ablageort zurück.
type Archive interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

// ArchiveKey baut den Schlüssel <snapshot>/<quelle>/<native id>.json.
func ArchiveKey(snapshotID, source, nativeID string) string {
	clean := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(nativeID)
	return path.Join(snapshotID, source, clean+".json")
}

// DiskArchive schreibt unterhalb von Root ins lokale Dateisystem.
type DiskArchive struct {
	Root string
}

var _ Archive = (*DiskArchive)(nil)

func (a *DiskArchive) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst := filepath.Join(a.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("archive: create directory: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("archive: write %s: %w", dst, err)
	}
	return dst, nil
}

// NewArchive wählt das Backend anhand von ARCHIVE_BACKEND.
func NewArchive(ctx context.Context, cfg *config.Config) (Archive, error) {
	switch cfg.ArchiveBackend {
	case "", "disk":
		return &DiskArchive{Root: cfg.RawDir}, nil
	case "s3":
		client, err := NewS3Client(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("fehler beim Erstellen des S3-Clients: %w", err)
		}
		return &S3Archive{Client: client, Bucket: cfg.S3Bucket, BaseURL: cfg.S3URL}, nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.ArchiveBackend)
	}
}

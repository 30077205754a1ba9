package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ruteri/ccns/interfaces"
)

// FileBackend implements a record store using the local file system.
// Each record is a JSON document named after the keccak256 of its name.
type FileBackend struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a new file store using the specified base directory.
// It creates the records subdirectory if it doesn't exist.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	recordsDir := filepath.Join(baseDir, "records")
	if err := os.MkdirAll(recordsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create records directory: %w", err)
	}

	return &FileBackend{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Fetch reads the record for name. Returns ErrRecordNotFound if the file doesn't exist.
func (b *FileBackend) Fetch(ctx context.Context, name string) (interfaces.NameRecord, error) {
	filePath := b.getFilePath(name)

	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return interfaces.NameRecord{}, interfaces.ErrRecordNotFound
	}
	if err != nil {
		return interfaces.NameRecord{}, fmt.Errorf("failed to read file: %w", err)
	}

	b.log.Debug("Fetched record from file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return decodeRecord(name, data)
}

// Store writes rec atomically through a temporary file and rename.
func (b *FileBackend) Store(ctx context.Context, rec interfaces.NameRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	filePath := b.getFilePath(rec.Name)
	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".record-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	b.log.Debug("Stored record in file",
		slog.String("path", filePath),
		slog.String("name", rec.Name))

	return nil
}

// Delete removes the record file for name.
func (b *FileBackend) Delete(ctx context.Context, name string) error {
	err := os.Remove(b.getFilePath(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Available checks if the file backend is accessible by verifying the base directory exists.
func (b *FileBackend) Available(ctx context.Context) bool {
	_, err := os.Stat(b.baseDir)
	if err != nil {
		b.log.Debug("File backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

// LocationURI returns the URI that identifies this storage backend.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}

func (b *FileBackend) getFilePath(name string) string {
	return filepath.Join(b.baseDir, "records", interfaces.NewRecordKey(name).String()+".json")
}

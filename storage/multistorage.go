package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/ccns/interfaces"
)

// MultiStoreBackend replicates records across backends. Writes go to every
// backend or to none, so any available replica answers reads with the latest
// record.
type MultiStoreBackend struct {
	backends []interfaces.RecordStore
	log      *slog.Logger
}

// NewMultiStoreBackend creates a new write-through store over backends.
func NewMultiStoreBackend(backends []interfaces.RecordStore, logger *slog.Logger) *MultiStoreBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStoreBackend{
		backends: backends,
		log:      logger,
	}
}

// Fetch returns the record from the first available backend that has it.
// Returns ErrRecordNotFound if any backend answered authoritatively that it
// does not hold the name.
func (m *MultiStoreBackend) Fetch(ctx context.Context, name string) (interfaces.NameRecord, error) {
	start := time.Now()
	var errs []error
	notFound := false

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable",
				slog.String("backend_name", backend.Name()),
				slog.String("name", name))
			continue
		}

		rec, err := backend.Fetch(ctx, name)
		if err == nil {
			m.log.Debug("Fetched record",
				slog.String("backend_name", backend.Name()),
				slog.String("name", name),
				slog.Duration("duration", time.Since(start)))
			return rec, nil
		}

		if errors.Is(err, interfaces.ErrRecordNotFound) {
			notFound = true
			continue
		}

		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			slog.String("name", name),
			"err", err)
	}

	if notFound {
		return interfaces.NameRecord{}, interfaces.ErrRecordNotFound
	}

	m.log.Error("All backends failed to fetch record",
		slog.String("name", name),
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	return interfaces.NameRecord{}, fmt.Errorf("%w: all backends failed to fetch %s: %v", interfaces.ErrBackendUnavailable, name, errs)
}

// Store saves rec to every backend. An unavailable backend fails the call
// before anything is written, and a backend that rejects the write fails it
// after the backends already written are reverted.
func (m *MultiStoreBackend) Store(ctx context.Context, rec interfaces.NameRecord) error {
	return m.writeAll(ctx, "store", rec.Name, func(backend interfaces.RecordStore) error {
		return backend.Store(ctx, rec)
	})
}

// Delete removes the record from every backend, with the same all-or-nothing rules as Store.
func (m *MultiStoreBackend) Delete(ctx context.Context, name string) error {
	return m.writeAll(ctx, "delete", name, func(backend interfaces.RecordStore) error {
		return backend.Delete(ctx, name)
	})
}

func (m *MultiStoreBackend) writeAll(ctx context.Context, op, name string, fn func(interfaces.RecordStore) error) error {
	start := time.Now()
	if len(m.backends) == 0 {
		return fmt.Errorf("%w: no backends configured", interfaces.ErrBackendUnavailable)
	}

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Warn("Backend unavailable, refusing write",
				slog.String("op", op),
				slog.String("backend_name", backend.Name()),
				slog.String("name", name))
			return fmt.Errorf("%w: %s is unavailable, refusing to %s %s", interfaces.ErrBackendUnavailable, backend.Name(), op, name)
		}
	}

	restore := m.snapshot(ctx, name)
	written := make([]interfaces.RecordStore, 0, len(m.backends))
	for _, backend := range m.backends {
		if err := fn(backend); err != nil {
			m.log.Error("Backend operation failed, reverting",
				slog.String("op", op),
				slog.String("backend_name", backend.Name()),
				slog.String("name", name),
				slog.Int("reverted_backends", len(written)),
				"err", err)
			m.revert(name, written, restore)
			return fmt.Errorf("%w: %s failed to %s %s: %v", interfaces.ErrBackendUnavailable, backend.Name(), op, name, err)
		}
		written = append(written, backend)
	}

	m.log.Debug("Replicated record",
		slog.String("op", op),
		slog.String("name", name),
		slog.Int("backends", len(written)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// snapshot captures the current state of name as a function that puts it back on a backend.
func (m *MultiStoreBackend) snapshot(ctx context.Context, name string) func(context.Context, interfaces.RecordStore) error {
	prev, err := m.Fetch(ctx, name)
	switch {
	case err == nil:
		return func(ctx context.Context, backend interfaces.RecordStore) error {
			return backend.Store(ctx, prev)
		}
	case errors.Is(err, interfaces.ErrRecordNotFound):
		return func(ctx context.Context, backend interfaces.RecordStore) error {
			return backend.Delete(ctx, name)
		}
	default:
		return func(context.Context, interfaces.RecordStore) error {
			return fmt.Errorf("previous record unknown: %w", err)
		}
	}
}

func (m *MultiStoreBackend) revert(name string, written []interfaces.RecordStore, restore func(context.Context, interfaces.RecordStore) error) {
	// the caller's context may be the reason the write failed
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, backend := range written {
		if err := restore(ctx, backend); err != nil {
			m.log.Error("Failed to revert backend",
				slog.String("backend_name", backend.Name()),
				slog.String("name", name),
				"err", err)
		}
	}
}

// Available checks if any backend is available
func (m *MultiStoreBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this backend
func (m *MultiStoreBackend) Name() string {
	return "multi-store"
}

// LocationURI combines the location URIs of all backends.
func (m *MultiStoreBackend) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}

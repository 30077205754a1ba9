package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/ruteri/ccns/interfaces"
)

// MemoryBackend keeps records in process memory. It is the default store of a Lookup.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[interfaces.RecordKey]interfaces.NameRecord
	label   string
}

// NewMemoryBackend creates an empty in-memory store. label only affects Name and LocationURI.
func NewMemoryBackend(label string) *MemoryBackend {
	if label == "" {
		label = "default"
	}
	return &MemoryBackend{
		records: make(map[interfaces.RecordKey]interfaces.NameRecord),
		label:   label,
	}
}

func (b *MemoryBackend) Fetch(_ context.Context, name string) (interfaces.NameRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.records[interfaces.NewRecordKey(name)]
	if !ok {
		return interfaces.NameRecord{}, interfaces.ErrRecordNotFound
	}
	return rec, nil
}

func (b *MemoryBackend) Store(_ context.Context, rec interfaces.NameRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[interfaces.NewRecordKey(rec.Name)] = rec
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.records, interfaces.NewRecordKey(name))
	return nil
}

func (b *MemoryBackend) Available(context.Context) bool { return true }

func (b *MemoryBackend) Name() string {
	return fmt.Sprintf("memory-%s", b.label)
}

func (b *MemoryBackend) LocationURI() string {
	return fmt.Sprintf("memory://%s", b.label)
}

// Len returns the number of stored records.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

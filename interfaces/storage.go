package interfaces

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"

	"github.com/ethereum/go-ethereum/crypto"
)

// RecordKey is the storage key of a name: keccak256 of its bytes.
type RecordKey [32]byte

// NewRecordKey computes the storage key for name.
func NewRecordKey(name string) RecordKey {
	return RecordKey(crypto.Keccak256Hash([]byte(name)))
}

// String returns hex representation.
func (k RecordKey) String() string {
	return hex.EncodeToString(k[:])
}

// StoreLocation represents URI for a record store.
type StoreLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   *url.Userinfo
}

// NewStoreLocation creates a new store location from a URI string with validation.
func NewStoreLocation(uri string) (StoreLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StoreLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch parsed.Scheme {
	case "memory", "file", "s3", "vault":
	default:
		return StoreLocation{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	return StoreLocation{
		Raw:    uri,
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   parsed.User,
	}, nil
}

// String returns the original URI string.
func (loc StoreLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc StoreLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StoreLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

var (
	// ErrRecordNotFound is returned when a store holds no record for a name.
	ErrRecordNotFound = errors.New("record not found")

	// ErrBackendUnavailable is returned when a store is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a store location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// RecordStore persists the name table of one Lookup.
type RecordStore interface {
	// Fetch returns the record for name or ErrRecordNotFound.
	Fetch(ctx context.Context, name string) (NameRecord, error)

	// Store upserts rec.
	Store(ctx context.Context, rec NameRecord) error

	// Delete removes the record for name. Deleting a missing record is not an error.
	Delete(ctx context.Context, name string) error

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}

// RecordStoreFactory creates record stores.
type RecordStoreFactory interface {
	// StoreFor creates a store from its location.
	// Supports memory://, file://, s3://, vault://
	StoreFor(location StoreLocation) (RecordStore, error)

	// CreateMultiStore creates an aggregated write-through store.
	CreateMultiStore(locations []StoreLocation) (RecordStore, error)
}

package storage

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ruteri/ccns/interfaces"
)

// StoreFactory creates record stores from location URIs and aggregates
// them into write-through multi-stores.
type StoreFactory struct {
	log *slog.Logger
}

// NewStoreFactory creates a new factory instance.
func NewStoreFactory(logger *slog.Logger) *StoreFactory {
	return &StoreFactory{log: logger}
}

// StoreFor creates a record store from a location.
//
// Supported schemes:
//   - memory://label - in-process map
//   - file:///absolute/path or file://./relative/path - one JSON document per record
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=&endpoint= - S3 or compatible
//   - vault://host:port/mount/path?tls=false - Vault KV v2, token from VAULT_TOKEN
func (sf *StoreFactory) StoreFor(location interfaces.StoreLocation) (interfaces.RecordStore, error) {
	switch strings.ToLower(location.Scheme) {
	case "memory":
		return NewMemoryBackend(location.Host), nil
	case "file":
		return sf.createFileBackend(location)
	case "s3":
		return sf.createS3Backend(location)
	case "vault":
		return sf.createVaultBackend(location)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme: %s", interfaces.ErrInvalidLocationURI, location.Scheme)
	}
}

// CreateMultiStore creates a multi-store from a list of locations.
// Locations that fail to produce a store are skipped. Returns an error if none succeed.
func (sf *StoreFactory) CreateMultiStore(locations []interfaces.StoreLocation) (interfaces.RecordStore, error) {
	backends := make([]interfaces.RecordStore, 0, len(locations))

	for _, location := range locations {
		backend, err := sf.StoreFor(location)
		if err != nil {
			sf.log.Warn("Failed to create record store",
				"err", err,
				slog.String("locationURI", location.String()))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid record stores created")
	}

	return NewMultiStoreBackend(backends, sf.log), nil
}

// StoreForURIs parses uris and returns a single store: a memory store when
// uris is empty, the store itself for one uri, or a multi-store otherwise.
func (sf *StoreFactory) StoreForURIs(uris []string) (interfaces.RecordStore, error) {
	if len(uris) == 0 {
		return NewMemoryBackend(""), nil
	}

	locations := make([]interfaces.StoreLocation, 0, len(uris))
	for _, uri := range uris {
		location, err := interfaces.NewStoreLocation(uri)
		if err != nil {
			return nil, err
		}
		locations = append(locations, location)
	}

	if len(locations) == 1 {
		return sf.StoreFor(locations[0])
	}
	return sf.CreateMultiStore(locations)
}

// createS3Backend creates an S3 or S3-compatible record store.
func (sf *StoreFactory) createS3Backend(location interfaces.StoreLocation) (interfaces.RecordStore, error) {
	sf.log.Debug("Creating S3 backend", slog.String("bucket", location.Host))

	if location.Host == "" {
		return nil, fmt.Errorf("%w: missing bucket in %s", interfaces.ErrInvalidLocationURI, location.Scheme)
	}

	region := location.GetParam("region")
	if region == "" {
		region = "us-east-1"
	}

	var accessKey, secretKey string
	if location.Auth != nil {
		accessKey = location.Auth.Username()
		secretKey, _ = location.Auth.Password()
		sf.log.Debug("Using embedded credentials for write access")
	}

	return NewS3Backend(location.Host, strings.TrimPrefix(location.Path, "/"), region, location.GetParam("endpoint"), accessKey, secretKey, sf.log)
}

// createVaultBackend creates a Vault KV v2 record store.
// The first path segment is the mount, the rest is the data path.
func (sf *StoreFactory) createVaultBackend(location interfaces.StoreLocation) (interfaces.RecordStore, error) {
	sf.log.Debug("Creating Vault backend", slog.String("host", location.Host))

	if location.Host == "" {
		return nil, fmt.Errorf("%w: missing vault host", interfaces.ErrInvalidLocationURI)
	}

	mount, dataPath, _ := strings.Cut(strings.TrimPrefix(location.Path, "/"), "/")
	if mount == "" {
		mount = "secret"
	}

	scheme := "https"
	if location.GetParam("tls") == "false" {
		scheme = "http"
	}
	address := fmt.Sprintf("%s://%s", scheme, location.Host)

	return NewVaultBackend(address, mount, dataPath, os.Getenv("VAULT_TOKEN"), location.GetParamBool("insecure"), sf.log)
}

// createFileBackend creates a file system record store.
func (sf *StoreFactory) createFileBackend(location interfaces.StoreLocation) (interfaces.RecordStore, error) {
	sf.log.Debug("Creating file backend", slog.String("uri", location.String()))

	path := location.Path
	if location.Host != "" {
		// file://./relative/path
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}

	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI: %s", interfaces.ErrInvalidLocationURI, location.String())
	}

	return NewFileBackend(path, sf.log)
}

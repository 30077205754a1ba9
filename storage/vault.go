package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/ccns/interfaces"
)

// VaultBackend stores records in a HashiCorp Vault KV v2 secrets engine.
// Each record lives at <mount>/data/<path>/records/<key> with the JSON
// document under the "record" field.
type VaultBackend struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultBackend creates a new Vault record store authenticated with token.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount (e.g. "secret")
//   - dataPath: path within the mount (e.g. "ccns/sepolia")
//   - token: Vault token; when empty the client falls back to VAULT_TOKEN
//   - insecureSkipVerify: disables TLS certificate checks for development servers
func NewVaultBackend(address, mountPath, dataPath, token string, insecureSkipVerify bool, log *slog.Logger) (*VaultBackend, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.HttpClient = &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: insecureSkipVerify}, //nolint:gosec
		},
		Timeout: 30 * time.Second,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	mountPath = strings.Trim(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultBackend{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(strings.TrimPrefix(address, "https://"), "http://"), mountPath, dataPath),
	}, nil
}

// Fetch reads the record for name.
func (b *VaultBackend) Fetch(ctx context.Context, name string) (interfaces.NameRecord, error) {
	start := time.Now()
	path := b.secretPath("data", name)

	secret, err := b.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		b.log.Error("Failed to read from Vault",
			slog.String("path", path),
			slog.String("name", name),
			"err", err)
		return interfaces.NameRecord{}, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	if secret == nil || secret.Data == nil {
		return interfaces.NameRecord{}, interfaces.ErrRecordNotFound
	}

	// A soft-deleted KV v2 secret reads back with nil data.
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok || data == nil {
		return interfaces.NameRecord{}, interfaces.ErrRecordNotFound
	}

	content, ok := data["record"].(string)
	if !ok {
		b.log.Error("Invalid record format in Vault data",
			slog.String("path", path),
			slog.String("name", name))
		return interfaces.NameRecord{}, fmt.Errorf("invalid record format in Vault data")
	}

	b.log.Debug("Fetched record from Vault",
		slog.String("name", name),
		slog.Duration("duration", time.Since(start)))

	return decodeRecord(name, []byte(content))
}

// Store writes a new version of the record for rec.Name.
func (b *VaultBackend) Store(ctx context.Context, rec interfaces.NameRecord) error {
	start := time.Now()

	encoded, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	path := b.secretPath("data", rec.Name)
	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"record": string(encoded),
		},
	}

	if _, err := b.client.Logical().WriteWithContext(ctx, path, secretData); err != nil {
		b.log.Error("Failed to write to Vault",
			slog.String("path", path),
			slog.String("name", rec.Name),
			"err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored record in Vault",
		slog.String("name", rec.Name),
		slog.Duration("duration", time.Since(start)))

	return nil
}

// Delete removes all versions and metadata of the record for name.
func (b *VaultBackend) Delete(ctx context.Context, name string) error {
	path := b.secretPath("metadata", name)
	if _, err := b.client.Logical().DeleteWithContext(ctx, path); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	return nil
}

// Available checks that Vault is initialized and unsealed.
func (b *VaultBackend) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := b.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		b.log.Debug("Vault health check failed", "err", err)
		return false
	}

	if !health.Initialized || health.Sealed {
		b.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}

	return true
}

// Name returns a unique identifier for this storage backend.
func (b *VaultBackend) Name() string {
	return fmt.Sprintf("vault-%s-%s", b.mountPath, b.dataPath)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *VaultBackend) LocationURI() string {
	return b.locationURI
}

// secretPath builds a KV v2 path; section is "data" or "metadata".
func (b *VaultBackend) secretPath(section, name string) string {
	key := interfaces.NewRecordKey(name).String()
	if b.dataPath == "" {
		return fmt.Sprintf("%s/%s/records/%s", b.mountPath, section, key)
	}
	return fmt.Sprintf("%s/%s/%s/records/%s", b.mountPath, section, b.dataPath, key)
}

// Package storage provides record stores backing the name table of a Lookup.
//
// Every store keeps one JSON document per name, keyed by the keccak256 hash of
// the name:
//
//	{"name":"alice.ccns","owner":"0x..."}
//
// # Store URI Format
//
// Stores are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - memory://sepolia
//   - file:///var/lib/ccns/sepolia
//   - s3://bucket-name/prefix?region=us-west-2&endpoint=http://localhost:9000
//   - s3://ACCESS_KEY:SECRET_KEY@bucket-name/prefix
//   - vault://vault.example.com:8200/secret/ccns?tls=false
//
// The Vault token is read from the VAULT_TOKEN environment variable.
//
// # Redundancy
//
// MultiStoreBackend writes to every store or to none, and reads from the
// first available store that holds the record. A write while any store is
// unavailable is refused, so a store that comes back never serves a stale
// record:
//
//	factory := storage.NewStoreFactory(logger)
//	store, err := factory.StoreForURIs([]string{
//	    "file:///var/lib/ccns/sepolia",
//	    "s3://ccns-backup/sepolia?region=eu-west-1",
//	})
//
// A miss in every store is reported as interfaces.ErrRecordNotFound.
package storage

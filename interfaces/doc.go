// Package interfaces defines core interfaces and types for the cross-chain name
// service, separating interface definitions from implementations.
//
// The package provides the vocabulary shared by the contracts of the system:
//
// # Contract Interfaces
//
// Bridge: the fee-quoted send side of the cross-chain messaging transport, as
// seen from the source chain.
//
// MessageReceiver: the delivery callback invoked by the bridge on a destination
// chain with an authenticated (source chain, sender, payload) tuple.
//
// NameLookup / NameWriter: the read and authorized-write sides of a Lookup.
//
// Ledger: native currency balances of one chain, backing the Register's fee
// reserve.
//
// # Storage Interfaces
//
// RecordStore: persistence of a Lookup table (memory, file, S3, Vault).
//
// RecordStoreFactory: creates stores from URI strings and aggregates them for
// redundant storage.
//
// # Types
//
//   - ChainSelector: opaque uint64 chain identifier
//   - ChainConfig: delivery configuration of an enabled destination
//   - DeliveryPolicy: Strict or BestEffort, per chain
//   - NameRecord: a name and the address it resolves to
//   - OutboundMessage / InboundMessage: the two faces of a cross-chain message
//   - MessageID: 32-byte message identifier assigned by the bridge
//   - DeploymentRecord: addresses deployed on one network
//
// # Key Functions
//
// ValidateName: suffix validation shared by tooling and the Register.
//
// EncodeNameRecord / DecodeNameRecord: the ABI payload carried across chains.
package interfaces

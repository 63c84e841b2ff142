// Package core provides the cryptkeeper vault operations.
//
// A Manager keeps a local working copy of the metadata document and
// reconciles it with the persisted store at the start of every operation:
//   - CreateVault/Recreate: create a vault, or replace it under a new key
//   - AddFile: track a source file as pending
//   - DescribeVault/ListVaults: report vaults and file states
//   - Encrypt: encrypt tracked files into the artifact directory
//   - Decrypt/Diff: restore or compare the encrypted version of a file
//
// A Watcher re-encrypts a vault's files when their sources change, until
// its context is cancelled.
package core

// Package storage holds the cryptkeeper metadata document and the store that
// persists it.
//
// The document is the single source of truth for every vault:
//   - vaults: vault name -> key and tracked files
//   - files: source path -> identifier and last encryption time (empty until
//     the first encryption)
//
// A Store never overwrites the persisted document blindly. Save reloads the
// persisted copy and merges the caller's local copy into it (see Merge), so
// vaults this process never touched survive concurrent edits by other
// processes. There is no inter-process locking.
//
// Two backends carry the same JSON document: a plain file (the default,
// human-diffable) and a BBolt database.
package storage

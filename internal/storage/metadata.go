package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/tidwall/jsonc"
)

// FileState tells whether a tracked file has been encrypted yet
type FileState int

const (
	StatePending   FileState = iota // Added, never encrypted
	StateEncrypted                  // Ciphertext exists under Identifier
)

func (s FileState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateEncrypted:
		return "encrypted"
	default:
		return fmt.Sprintf("FileState(%d)", int(s))
	}
}

// TrackedFile is the encryption record of one source path.
// A freshly added file has neither field set and serializes as {}.
type TrackedFile struct {
	Identifier  string `json:"identifier,omitempty"`
	EncryptedAt int64  `json:"encrypted_at,omitempty"` // Unix seconds
}

// State returns StateEncrypted only when both the identifier and the
// timestamp are recorded. An identifier without a timestamp is kept for
// reuse but the file still counts as pending.
func (f TrackedFile) State() FileState {
	if f.Identifier != "" && f.EncryptedAt != 0 {
		return StateEncrypted
	}
	return StatePending
}

// EncryptedTime returns EncryptedAt as a time.Time, zero when pending
func (f TrackedFile) EncryptedTime() time.Time {
	if f.EncryptedAt == 0 {
		return time.Time{}
	}
	return time.Unix(f.EncryptedAt, 0)
}

// Vault is a named group of files sharing one symmetric key
type Vault struct {
	Key   string                 `json:"key"`
	Files map[string]TrackedFile `json:"files"`
}

// NewVault creates an empty vault with the given key
func NewVault(key string) *Vault {
	return &Vault{
		Key:   key,
		Files: make(map[string]TrackedFile),
	}
}

// Clone returns a deep copy of the vault
func (v *Vault) Clone() *Vault {
	c := &Vault{
		Key:   v.Key,
		Files: make(map[string]TrackedFile, len(v.Files)),
	}
	for path, f := range v.Files {
		c.Files[path] = f
	}
	return c
}

// Paths returns the tracked paths in sorted order
func (v *Vault) Paths() []string {
	paths := make([]string, 0, len(v.Files))
	for path := range v.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Document is the persisted metadata of every vault
type Document struct {
	Vaults map[string]*Vault `json:"vaults"`
}

// NewDocument creates an empty document
func NewDocument() *Document {
	return &Document{Vaults: make(map[string]*Vault)}
}

// Vault returns the named vault
func (d *Document) Vault(name string) (*Vault, bool) {
	v, ok := d.Vaults[name]
	return v, ok
}

// Names returns the vault names in sorted order
func (d *Document) Names() []string {
	names := make([]string, 0, len(d.Vaults))
	for name := range d.Vaults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the document
func (d *Document) Clone() *Document {
	c := &Document{Vaults: make(map[string]*Vault, len(d.Vaults))}
	for name, v := range d.Vaults {
		c.Vaults[name] = v.Clone()
	}
	return c
}

// Identifiers returns every identifier recorded in any vault
func (d *Document) Identifiers() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, v := range d.Vaults {
		for _, f := range v.Files {
			if f.Identifier != "" {
				ids[f.Identifier] = struct{}{}
			}
		}
	}
	return ids
}

// normalize replaces nil maps left by null or absent JSON fields
func (d *Document) normalize() {
	if d.Vaults == nil {
		d.Vaults = make(map[string]*Vault)
	}
	for name, v := range d.Vaults {
		if v == nil {
			v = &Vault{}
			d.Vaults[name] = v
		}
		if v.Files == nil {
			v.Files = make(map[string]TrackedFile)
		}
	}
}

// Merge reconciles a local working copy with the persisted document.
//
// Every vault present in both is taken from local (local wins), every vault
// present only in local is added, and every vault present only in persisted
// is preserved untouched. Neither argument is modified.
func Merge(persisted, local *Document) *Document {
	merged := persisted.Clone()
	for name, v := range local.Vaults {
		merged.Vaults[name] = v.Clone()
	}
	return merged
}

// Encode serializes the document as indented JSON with a trailing newline
func Encode(d *Document) ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a document. Comments and trailing commas left by hand edits
// are accepted.
func Decode(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(jsonc.ToJSON(data), &d); err != nil {
		return nil, err
	}
	d.normalize()
	return &d, nil
}

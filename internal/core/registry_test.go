package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/illarion/cryptkeeper/internal/artifact"
	"github.com/illarion/cryptkeeper/internal/keyring"
	"github.com/illarion/cryptkeeper/internal/prompt"
	"github.com/illarion/cryptkeeper/internal/storage"
	gokeyring "github.com/zalando/go-keyring"
)

func TestNewRequiresStoreAndArtifacts(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("Expected error without a store")
	}
	store := storage.NewStore(storage.NewFileBackend(filepath.Join(t.TempDir(), "m.json")), nil, nil)
	if _, err := New(Options{Store: store}); err == nil {
		t.Error("Expected error without an artifact directory")
	}
}

func TestCreateVault(t *testing.T) {
	env := newEnv(t, prompt.Always(false))
	ctx := context.Background()

	if err := env.m.CreateVault(ctx, "docs"); err != nil {
		t.Fatalf("CreateVault failed: %v", err)
	}

	v, ok := env.persisted(t).Vault("docs")
	if !ok {
		t.Fatal("Vault should be persisted")
	}
	enc, err := encryptor(v)
	if err != nil {
		t.Fatalf("Unusable key: %v", err)
	}
	enc.Destroy()
	if len(v.Files) != 0 {
		t.Errorf("New vault should be empty, has %d files", len(v.Files))
	}
}

func TestCreateVaultInvalidName(t *testing.T) {
	env := newEnv(t, prompt.Always(true))
	for _, name := range []string{"", "   "} {
		if err := env.m.CreateVault(context.Background(), name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("CreateVault(%q): expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestCreateExistingVault(t *testing.T) {
	answer := false
	env := newEnv(t, prompt.Func(func(string) bool { return answer }))
	ctx := context.Background()

	src := filepath.Join(env.dir, "a.txt")
	env.setup(t, "docs", src)
	oldKey := env.persisted(t).Vaults["docs"].Key

	// Declined: vault untouched
	if err := env.m.CreateVault(ctx, "docs"); !errors.Is(err, ErrUserAborted) {
		t.Fatalf("Expected ErrUserAborted, got %v", err)
	}
	v := env.persisted(t).Vaults["docs"]
	if v.Key != oldKey || len(v.Files) != 1 {
		t.Errorf("Declined overwrite changed the vault: %+v", v)
	}

	// Accepted: new key, no files
	answer = true
	if err := env.m.CreateVault(ctx, "docs"); err != nil {
		t.Fatalf("CreateVault failed: %v", err)
	}
	v = env.persisted(t).Vaults["docs"]
	if v.Key == oldKey {
		t.Error("Recreated vault should have a new key")
	}
	if len(v.Files) != 0 {
		t.Errorf("Recreated vault should be empty, has %d files", len(v.Files))
	}
}

func TestRecreateRequiresConfirmation(t *testing.T) {
	env := newEnv(t, prompt.Always(true))
	ctx := context.Background()
	env.setup(t, "docs")
	oldKey := env.persisted(t).Vaults["docs"].Key

	if err := env.m.Recreate(ctx, "docs", false); !errors.Is(err, ErrUserAborted) {
		t.Fatalf("Expected ErrUserAborted, got %v", err)
	}
	if env.persisted(t).Vaults["docs"].Key != oldKey {
		t.Error("Unconfirmed recreate changed the key")
	}

	if err := env.m.Recreate(ctx, "docs", true); err != nil {
		t.Fatalf("Recreate failed: %v", err)
	}
	if env.persisted(t).Vaults["docs"].Key == oldKey {
		t.Error("Confirmed recreate kept the key")
	}
}

func TestAddFileIdempotent(t *testing.T) {
	env := newEnv(t, prompt.Always(true))
	ctx := context.Background()
	env.setup(t, "docs")
	src := filepath.Join(env.dir, "a.txt")

	added, err := env.m.AddFile(ctx, "docs", src)
	if err != nil || !added {
		t.Fatalf("First AddFile = %v, %v", added, err)
	}
	before, _ := os.ReadFile(filepath.Join(env.dir, "metadata.json"))

	added, err = env.m.AddFile(ctx, "docs", src)
	if err != nil || added {
		t.Fatalf("Second AddFile = %v, %v", added, err)
	}
	after, _ := os.ReadFile(filepath.Join(env.dir, "metadata.json"))

	if string(before) != string(after) {
		t.Errorf("Adding a tracked file changed the document:\n%s\n---\n%s", before, after)
	}
	if rec := env.record(t, "docs", src); rec.State() != storage.StatePending {
		t.Errorf("New file should be pending, got %v", rec.State())
	}
	if !strings.Contains(string(after), `"`+src+`": {}`) {
		t.Errorf("Pending file should serialize as {}:\n%s", after)
	}
}

func TestAddFileRelativePath(t *testing.T) {
	env := newEnv(t, prompt.Always(true))
	env.setup(t, "docs")
	t.Chdir(env.dir)

	if _, err := env.m.AddFile(context.Background(), "docs", "./sub/../a.txt"); err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}
	cwd, _ := os.Getwd()
	env.record(t, "docs", filepath.Join(cwd, "a.txt"))
}

func TestAddFileMissingVault(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		env := newEnv(t, prompt.Always(false))
		_, err := env.m.AddFile(context.Background(), "docs", filepath.Join(env.dir, "a.txt"))
		if !errors.Is(err, ErrUserAborted) {
			t.Fatalf("Expected ErrUserAborted, got %v", err)
		}
		if _, ok := env.persisted(t).Vault("docs"); ok {
			t.Error("Vault should not be created after decline")
		}
	})

	t.Run("accepted", func(t *testing.T) {
		env := newEnv(t, prompt.Always(true))
		src := filepath.Join(env.dir, "a.txt")
		added, err := env.m.AddFile(context.Background(), "docs", src)
		if err != nil || !added {
			t.Fatalf("AddFile = %v, %v", added, err)
		}
		env.record(t, "docs", src)
	})
}

func TestMissingMetadataDeclined(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewStore(storage.NewFileBackend(filepath.Join(dir, "metadata.json")), prompt.Always(false), discardLogger)
	arts, err := artifact.Open(filepath.Join(dir, "crypt"))
	if err != nil {
		t.Fatal(err)
	}
	defer arts.Close()
	m, err := New(Options{Store: store, Artifacts: arts, Confirm: prompt.Always(true), Logger: discardLogger})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.CreateVault(context.Background(), "docs"); !errors.Is(err, ErrUserAborted) {
		t.Fatalf("Expected ErrUserAborted, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "metadata.json")); !os.IsNotExist(err) {
		t.Errorf("Metadata should not exist, stat err = %v", err)
	}
}

func TestCorruptMetadataLeftUntouched(t *testing.T) {
	env := newEnv(t, prompt.Always(true))
	path := filepath.Join(env.dir, "metadata.json")
	if err := os.WriteFile(path, []byte("not json"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := env.m.CreateVault(context.Background(), "docs"); !errors.Is(err, ErrCorruptMetadata) {
		t.Fatalf("Expected ErrCorruptMetadata, got %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "not json" {
		t.Errorf("Corrupt metadata was rewritten: %q", data)
	}
}

func TestManagersDoNotClobber(t *testing.T) {
	env := newEnv(t, prompt.Always(true))
	other, err := New(Options{Store: env.store, Artifacts: env.arts, Confirm: prompt.Always(true), Logger: discardLogger})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	src := filepath.Join(env.dir, "a.txt")

	if err := env.m.CreateVault(ctx, "alpha"); err != nil {
		t.Fatal(err)
	}
	if err := other.CreateVault(ctx, "beta"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.m.AddFile(ctx, "alpha", src); err != nil {
		t.Fatal(err)
	}

	doc := env.persisted(t)
	if names := doc.Names(); len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Fatalf("Expected both vaults, got %v", names)
	}
	if _, ok := doc.Vaults["alpha"].Files[src]; !ok {
		t.Error("File added through the first manager is missing")
	}
}

func TestDescribeVault(t *testing.T) {
	env := newEnv(t, prompt.Always(true))
	ctx := context.Background()

	a := filepath.Join(env.dir, "a.txt")
	b := filepath.Join(env.dir, "b.txt")
	c := filepath.Join(env.dir, "c.txt")
	writeSource(t, a, "alpha", base.Add(-time.Hour))
	writeSource(t, b, "beta", base.Add(-time.Hour))
	env.setup(t, "docs", c, b, a)

	if _, err := env.m.Encrypt(ctx, "docs", a); err != nil {
		t.Fatalf("Encrypt(a) failed: %v", err)
	}
	if _, err := env.m.Encrypt(ctx, "docs", b); err != nil {
		t.Fatalf("Encrypt(b) failed: %v", err)
	}
	writeSource(t, b, "beta changed", base.Add(time.Minute))
	if err := os.Remove(a); err != nil {
		t.Fatal(err)
	}

	view, err := env.m.DescribeVault(ctx, "docs")
	if err != nil {
		t.Fatalf("DescribeVault failed: %v", err)
	}
	if view.Name != "docs" || view.Key == "" || view.InKeyring {
		t.Errorf("Unexpected header: %+v", view)
	}
	if len(view.Files) != 3 {
		t.Fatalf("Expected 3 files, got %d", len(view.Files))
	}

	fa, fb, fc := view.Files[0], view.Files[1], view.Files[2]
	if fa.Path != a || fb.Path != b || fc.Path != c {
		t.Fatalf("Files not sorted by path: %s, %s, %s", fa.Path, fb.Path, fc.Path)
	}
	if fa.State != storage.StateEncrypted || !fa.Missing || fa.Stale {
		t.Errorf("a: %+v", fa)
	}
	if fb.State != storage.StateEncrypted || !fb.Stale || fb.Missing {
		t.Errorf("b: %+v", fb)
	}
	if !fb.EncryptedAt.Equal(base) || !storage.IsIdentifier(fb.Identifier) {
		t.Errorf("b record: %+v", fb)
	}
	if fc.State != storage.StatePending || fc.Identifier != "" || !fc.EncryptedAt.IsZero() || !fc.Missing {
		t.Errorf("c: %+v", fc)
	}
	if fa.NoArtifact || fb.NoArtifact || fc.NoArtifact {
		t.Errorf("No artifact should be reported lost yet: %+v", view.Files)
	}

	if err := os.Remove(filepath.Join(env.arts.Path(), fb.Identifier)); err != nil {
		t.Fatal(err)
	}
	view, err = env.m.DescribeVault(ctx, "docs")
	if err != nil {
		t.Fatalf("DescribeVault failed: %v", err)
	}
	if !view.Files[1].NoArtifact {
		t.Errorf("Removed artifact should be reported: %+v", view.Files[1])
	}
}

func TestDescribeMissingVault(t *testing.T) {
	env := newEnv(t, prompt.Always(false))
	if _, err := env.m.DescribeVault(context.Background(), "docs"); !errors.Is(err, ErrUserAborted) {
		t.Fatalf("Expected ErrUserAborted, got %v", err)
	}

	env = newEnv(t, prompt.Always(true))
	view, err := env.m.DescribeVault(context.Background(), "docs")
	if err != nil {
		t.Fatalf("DescribeVault failed: %v", err)
	}
	if len(view.Files) != 0 {
		t.Errorf("New vault should have no files, got %d", len(view.Files))
	}
	if _, ok := env.persisted(t).Vault("docs"); !ok {
		t.Error("Accepted vault should be persisted")
	}
}

func TestListVaults(t *testing.T) {
	env := newEnv(t, prompt.Always(true))
	ctx := context.Background()

	a := filepath.Join(env.dir, "a.txt")
	writeSource(t, a, "alpha", base.Add(-time.Hour))
	env.setup(t, "work", a, filepath.Join(env.dir, "b.txt"))
	env.setup(t, "home")
	if _, err := env.m.Encrypt(ctx, "work", a); err != nil {
		t.Fatal(err)
	}

	list, err := env.m.ListVaults(ctx)
	if err != nil {
		t.Fatalf("ListVaults failed: %v", err)
	}
	want := []VaultSummary{
		{Name: "home"},
		{Name: "work", Files: 2, Encrypted: 1},
	}
	if len(list) != len(want) {
		t.Fatalf("Expected %d vaults, got %+v", len(want), list)
	}
	for i := range want {
		if list[i] != want[i] {
			t.Errorf("list[%d] = %+v, want %+v", i, list[i], want[i])
		}
	}
}

func TestKeyringBackedVault(t *testing.T) {
	gokeyring.MockInit()

	env := newEnv(t, prompt.Always(true))
	env.m.useKeyring = true
	ctx := context.Background()

	src := filepath.Join(env.dir, "a.txt")
	writeSource(t, src, "hello", base.Add(-time.Hour))
	env.setup(t, "docs", src)

	oldRef := env.persisted(t).Vaults["docs"].Key
	if !keyring.IsRef(oldRef) {
		t.Fatalf("Expected a keyring reference, got %q", oldRef)
	}

	res, err := env.m.Encrypt(ctx, "docs", "")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if got := env.decryptArtifact(t, "docs", res.Files[0].Identifier); got != "hello" {
		t.Errorf("Decrypted %q, want hello", got)
	}

	if err := env.m.Recreate(ctx, "docs", true); err != nil {
		t.Fatalf("Recreate failed: %v", err)
	}
	if _, err := keyring.Resolve(oldRef); !errors.Is(err, keyring.ErrNotFound) {
		t.Errorf("Old keyring entry should be deleted, got %v", err)
	}
}

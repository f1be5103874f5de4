package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"abook/internal/abook"
	"abook/internal/config"
	"abook/internal/model"
	"abook/internal/provider"
	"abook/internal/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.Index = config.IndexConfig{Type: "memory"}
	cfg.Encryption = config.EncryptionConfig{Type: "test"}
	cfg.Vaults = []config.VaultConfig{
		{Type: "memory", Name: "mem"},
		{Type: "filesystem", Name: "disk", FSVaultRoot: filepath.Join(cfg.BaseDir, "backups")},
	}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *ABookApp {
	t.Helper()
	a, err := newABookApp(cfg, testutil.FixedClock(), testutil.NewStubIDGenerator(), io.Discard, "test")
	if err != nil {
		t.Fatalf("newABookApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	if err := a.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return a
}

func TestABookApp_Contacts(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	for _, name := range []string{"Zoe Young", "adam brown"} {
		if _, err := a.AddContact(testutil.NewContact(name)); err != nil {
			t.Fatal(err)
		}
	}
	list, err := a.ListContacts(false)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].DisplayName != "adam brown" {
		t.Errorf("ListContacts() not sorted by name: %v", list)
	}

	if _, err := a.EditContact(list[0].ID, model.Patch{}); !errors.Is(err, model.ErrArgument) {
		t.Errorf("EditContact() with empty patch error = %v, want ErrArgument", err)
	}
	edited, err := a.EditContact(list[0].ID, model.Patch{DisplayName: model.Some("Adam Brown")})
	if err != nil || edited.DisplayName != "Adam Brown" {
		t.Errorf("EditContact() = %+v, %v", edited, err)
	}

	hits, err := a.Search("adam", 0, false)
	if err != nil || len(hits) != 1 {
		t.Errorf("Search() = %+v, %v", hits, err)
	}
}

func TestABookApp_ImportAndMerge(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	dir := t.TempDir()
	cards := "BEGIN:VCARD\r\nFN:Jane Smith\r\nEMAIL:jane@example.com\r\nNOTE:from phone\r\nEND:VCARD\r\n" +
		"BEGIN:VCARD\r\nFN:Jane Smith\r\nEMAIL:jane@example.com\r\nNOTE:from laptop\r\nEND:VCARD\r\n"
	if err := os.WriteFile(filepath.Join(dir, "jane.vcf"), []byte(cards), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := a.Import(dir, false)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if len(res.Contacts) != 2 {
		t.Fatalf("Import() = %d contacts", len(res.Contacts))
	}

	dupes, err := a.Duplicates(0, 0)
	if err != nil || len(dupes) != 1 {
		t.Fatalf("Duplicates() = %v, %v", dupes, err)
	}

	first, second := res.Contacts[0].ID, res.Contacts[1].ID
	merged, err := a.Merge([]string{first, second}, "keep-oldest", []string{"note=" + second})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if merged.Contact.Note != "from laptop" {
		t.Errorf("merged note = %q, want the pinned source's", merged.Contact.Note)
	}

	log, err := a.MergeLog()
	if err != nil || len(log) != 1 {
		t.Errorf("MergeLog() = %v, %v", log, err)
	}

	if _, err := a.Merge([]string{first, second}, "bogus", nil); err == nil {
		t.Error("Merge() expected error for unknown strategy")
	}
}

func TestParseOverrides(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[model.Field]string
		wantErr bool
	}{
		{name: "none", pairs: nil, want: nil},
		{name: "one field", pairs: []string{"note=id-2"}, want: map[model.Field]string{model.FieldNote: "id-2"}},
		{name: "missing id", pairs: []string{"note="}, wantErr: true},
		{name: "missing separator", pairs: []string{"note"}, wantErr: true},
		{name: "unknown field", pairs: []string{"shoe_size=id-1"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOverrides(tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOverrides() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseOverrides() = %v, want %v", got, tt.want)
			}
			for f, id := range tt.want {
				if got[f] != id {
					t.Errorf("override %s = %q, want %q", f, got[f], id)
				}
			}
		})
	}
}

func TestABookApp_BackupRestore(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	c, err := a.AddContact(testutil.NewContact("Jane Smith"))
	if err != nil {
		t.Fatal(err)
	}

	for _, vaultName := range []string{"", "disk"} {
		t.Run("vault "+vaultName, func(t *testing.T) {
			name, err := a.Backup(vaultName)
			if err != nil {
				t.Fatalf("Backup() error = %v", err)
			}
			names, err := a.ListBackups(vaultName)
			if err != nil || len(names) != 1 || names[0] != name {
				t.Fatalf("ListBackups() = %v, %v", names, err)
			}
		})
	}

	if err := a.RemoveContact(c.ID, true); err != nil {
		t.Fatal(err)
	}
	res, err := a.Restore("mem", "contacts-20240115T103000Z.vcf.age", "")
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if len(res.Contacts) != 1 || res.Contacts[0].ID != c.ID {
		t.Errorf("Restore() = %+v", res.Contacts)
	}

	if _, err := a.Backup("missing"); err == nil {
		t.Error("Backup() expected error for unknown vault")
	}
}

func TestABookApp_ProvidersAndSync(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	remote := t.TempDir()
	if _, err := a.AddContact(testutil.NewContact("Jane Smith")); err != nil {
		t.Fatal(err)
	}

	if err := a.AddProvider(provider.Entry{Name: "phone", Type: provider.TypeLocal, Path: remote}); err != nil {
		t.Fatalf("AddProvider() error = %v", err)
	}
	if err := a.AddProvider(provider.Entry{Name: "g", Type: provider.TypeGoogle}); err == nil {
		t.Error("AddProvider() expected error for unsupported type")
	}

	res, err := a.Sync(context.Background(), "phone")
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Pushed != 1 {
		t.Errorf("Sync() pushed %d, want 1", res.Pushed)
	}

	providers, err := a.ListProviders()
	if err != nil || len(providers) != 1 {
		t.Fatalf("ListProviders() = %v, %v", providers, err)
	}
	if !providers[0].Since().Equal(res.NewLastSync) {
		t.Errorf("last sync = %v, want %v", providers[0].Since(), res.NewLastSync)
	}

	if _, err := a.Sync(context.Background(), "unknown"); err == nil {
		t.Error("Sync() expected error for unknown provider")
	}
}

func TestABookApp_RollbackAndHistory(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	if _, err := a.AddContact(testutil.NewContact("Jane Smith")); err != nil {
		t.Fatal(err)
	}

	entries, err := a.History(0, "")
	if err != nil || len(entries) < 2 {
		t.Fatalf("History() = %v, %v", entries, err)
	}
	if entries[0].Operation != abook.OpCreate {
		t.Errorf("latest operation = %s, want create", entries[0].Operation)
	}

	res, err := a.Rollback(abook.RollbackOptions{Mode: abook.RollbackLast, Count: 1})
	if err != nil || res.Reverted != 1 {
		t.Fatalf("Rollback() = %+v, %v", res, err)
	}
	if list, _ := a.ListContacts(true); len(list) != 0 {
		t.Errorf("contacts after rollback = %d", len(list))
	}
}

func TestABookApp_CloseLogsOutcome(t *testing.T) {
	cfg := testConfig(t)
	a, err := newABookApp(cfg, testutil.FixedClock(), testutil.NewStubIDGenerator(), io.Discard, "import", "phone.vcf")
	if err != nil {
		t.Fatal(err)
	}
	a.Fail(errors.New("store locked"))
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.LogDir, logFileName))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"operation started\toperation=import\tparams=phone.vcf", "operation failed", "error=store locked"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log missing %q:\n%s", want, data)
		}
	}
}

func TestNewABookApp_BadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.Type = "elastic"
	if _, err := newABookApp(cfg, testutil.FixedClock(), testutil.NewStubIDGenerator(), &bytes.Buffer{}, "x"); err == nil {
		t.Error("newABookApp() expected error for unknown index type")
	}
}

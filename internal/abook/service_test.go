package abook_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"abook/internal/abook"
	"abook/internal/index"
	"abook/internal/merge"
	"abook/internal/model"
	"abook/internal/provider"
	"abook/internal/store"
	"abook/internal/testutil"
	"abook/internal/vcard"
)

type testEnv struct {
	svc   *abook.Service
	store *store.GitStore
	fs    *testutil.MockFilesystemManager
	clock *testutil.StubClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := testutil.FixedClock()
	st := testutil.NewTestStore(t, clock)
	idx, err := index.NewSQLiteIndex(":memory:")
	if err != nil {
		t.Fatalf("opening index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	fsmgr := testutil.NewMockFilesystemManager(".*")

	svc := abook.NewService(st, idx, testutil.NewTestVault(), testutil.NewTestEncryptor(), fsmgr, abook.NewNopLogger(), clock)
	if err := svc.Reindex(); err != nil {
		t.Fatalf("Reindex() error = %v", err)
	}
	return &testEnv{svc: svc, store: st, fs: fsmgr, clock: clock}
}

func (e *testEnv) create(t *testing.T, name string, emails ...string) *model.Contact {
	t.Helper()
	c, err := e.svc.CreateContact(testutil.NewContact(name, emails...))
	if err != nil {
		t.Fatalf("CreateContact(%q) error = %v", name, err)
	}
	return c
}

func hitIDs(hits []*abook.SearchHit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

func TestService_ContactLifecycle(t *testing.T) {
	env := newTestEnv(t)
	jane := env.create(t, "Jane Smith", "jane@example.com")

	got, err := env.svc.GetContact(jane.ID)
	if err != nil || got.DisplayName != "Jane Smith" {
		t.Fatalf("GetContact() = %+v, %v", got, err)
	}

	updated, err := env.svc.UpdateContact(jane.ID, model.Patch{Note: model.Some("met at the conference")})
	if err != nil {
		t.Fatalf("UpdateContact() error = %v", err)
	}
	if updated.Note != "met at the conference" {
		t.Errorf("Note = %q", updated.Note)
	}

	hits, err := env.svc.Search("jane", 10, false)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].ID != jane.ID {
		t.Errorf("Search() = %v, want [%s]", hitIDs(hits), jane.ID)
	}

	if err := env.svc.DeleteContact(jane.ID, false); err != nil {
		t.Fatalf("DeleteContact() error = %v", err)
	}
	if hits, _ := env.svc.Search("jane", 10, false); len(hits) != 0 {
		t.Errorf("archived contact still searchable: %v", hitIDs(hits))
	}
	if hits, _ := env.svc.Search("jane", 10, true); len(hits) != 1 || !hits[0].Archived {
		t.Errorf("Search(includeArchived) = %+v", hits)
	}
	active, _ := env.svc.ListContacts(false)
	all, _ := env.svc.ListContacts(true)
	if len(active) != 0 || len(all) != 1 {
		t.Errorf("ListContacts() active=%d all=%d, want 0 and 1", len(active), len(all))
	}

	if err := env.svc.DeleteContact(jane.ID, true); err != nil {
		t.Fatalf("DeleteContact(permanent) error = %v", err)
	}
	if _, err := env.svc.GetContact(jane.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("GetContact() after permanent delete error = %v, want ErrNotFound", err)
	}
	if hits, _ := env.svc.Search("jane", 10, true); len(hits) != 0 {
		t.Errorf("destroyed contact still indexed: %v", hitIDs(hits))
	}
}

func TestService_History(t *testing.T) {
	env := newTestEnv(t)
	jane := env.create(t, "Jane Smith")
	env.create(t, "Bob Jones")

	entries, err := env.svc.History(0, jane.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Operation != abook.OpCreate {
		t.Errorf("History(%s) = %+v", jane.ID, entries)
	}

	if err := env.svc.DeleteContact(jane.ID, true); err != nil {
		t.Fatalf("DeleteContact() error = %v", err)
	}
	entries, err = env.svc.History(0, jane.ID)
	if err != nil {
		t.Fatalf("History(destroyed) error = %v", err)
	}
	if len(entries) != 2 || entries[0].Operation != abook.OpDelete || entries[1].Operation != abook.OpCreate {
		t.Errorf("History(destroyed) = %+v, want delete then create", entries)
	}

	entries, err = env.svc.History(0, "never-existed")
	if err != nil || len(entries) != 0 {
		t.Errorf("History(never-existed) = %+v, %v, want empty", entries, err)
	}
	if _, err := env.svc.History(0, "a/b"); !errors.Is(err, model.ErrArgument) {
		t.Errorf("History(a/b) error = %v, want ErrArgument", err)
	}
}

const twoCards = "BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Ann Lee\r\nEMAIL:ann@example.com\r\nEND:VCARD\r\n" +
	"BEGIN:VCARD\r\nVERSION:3.0\r\nUID:urn:uuid:id-1\r\nFN:Carl Diaz\r\nEND:VCARD\r\n"

func TestService_ImportPath(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		recursive bool
		wantNames []string
		wantFiles int
		wantSkip  int
	}{
		{name: "single file", path: "/import/a.vcf", wantNames: []string{"Ann Lee", "Carl Diaz"}, wantFiles: 1},
		{name: "directory", path: "/import", wantNames: []string{"Ann Lee", "Carl Diaz"}, wantFiles: 1, wantSkip: 1},
		{name: "recursive directory", path: "/import", recursive: true, wantNames: []string{"Ann Lee", "Carl Diaz", "Dana Fox"}, wantFiles: 2, wantSkip: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			existing := env.create(t, "Existing Person")
			env.fs.AddFile("/import/a.vcf", []byte(twoCards))
			env.fs.AddFile("/import/.hidden.vcf", []byte(twoCards))
			env.fs.AddFile("/import/notes.txt", []byte("not a card"))
			env.fs.AddFile("/import/sub/b.vcard", []byte("BEGIN:VCARD\r\nFN:Dana Fox\r\nEND:VCARD\r\n"))

			path, err := env.fs.Resolve(tt.path)
			if err != nil {
				t.Fatal(err)
			}
			res, err := env.svc.ImportPath(path, tt.recursive)
			if err != nil {
				t.Fatalf("ImportPath() error = %v", err)
			}

			if res.Files != tt.wantFiles || len(res.Skipped) != tt.wantSkip {
				t.Errorf("Files = %d, Skipped = %v, want %d and %d", res.Files, res.Skipped, tt.wantFiles, tt.wantSkip)
			}
			if len(res.Contacts) != len(tt.wantNames) {
				t.Fatalf("imported %d contacts, want %d", len(res.Contacts), len(tt.wantNames))
			}
			if !strings.HasPrefix(res.PreTag, "pre-import-") || !strings.HasPrefix(res.PostTag, "post-import-") {
				t.Errorf("tags = %q, %q", res.PreTag, res.PostTag)
			}
			for i, c := range res.Contacts {
				if c.DisplayName != tt.wantNames[i] {
					t.Errorf("contact %d = %q, want %q", i, c.DisplayName, tt.wantNames[i])
				}
				if c.ID == existing.ID {
					t.Errorf("imported card took the id of an existing contact")
				}
			}

			got, err := env.svc.GetContact(existing.ID)
			if err != nil || got.DisplayName != "Existing Person" {
				t.Errorf("existing contact changed: %+v, %v", got, err)
			}
			if hits, _ := env.svc.Search("ann", 10, false); len(hits) != 1 {
				t.Errorf("imported contact not indexed: %v", hitIDs(hits))
			}
		})
	}
}

func TestService_ImportPathForeignUIDs(t *testing.T) {
	env := newTestEnv(t)
	cards := "BEGIN:VCARD\r\nVERSION:3.0\r\nUID:https://example.com/people/42\r\nFN:Uri Person\r\nEND:VCARD\r\n" +
		"BEGIN:VCARD\r\nVERSION:3.0\r\nUID:.hidden\r\nFN:Dot Person\r\nEND:VCARD\r\n" +
		"BEGIN:VCARD\r\nVERSION:3.0\r\nUID:plain-uid\r\nFN:Plain Person\r\nEND:VCARD\r\n"
	env.fs.AddFile("/import/foreign.vcf", []byte(cards))

	path, err := env.fs.Resolve("/import/foreign.vcf")
	if err != nil {
		t.Fatal(err)
	}
	res, err := env.svc.ImportPath(path, false)
	if err != nil {
		t.Fatalf("ImportPath() error = %v", err)
	}
	if len(res.Contacts) != 3 {
		t.Fatalf("imported %d contacts, want 3", len(res.Contacts))
	}
	for _, c := range res.Contacts[:2] {
		if c.ID == "" || strings.ContainsAny(c.ID, "/") || strings.HasPrefix(c.ID, ".") {
			t.Errorf("%s got id %q, want a generated one", c.DisplayName, c.ID)
		}
	}
	if res.Contacts[2].ID != "plain-uid" {
		t.Errorf("usable UID replaced: %q", res.Contacts[2].ID)
	}
	for _, c := range res.Contacts {
		if _, err := env.svc.GetContact(c.ID); err != nil {
			t.Errorf("GetContact(%q) error = %v", c.ID, err)
		}
	}
}

func TestService_ImportPathErrors(t *testing.T) {
	env := newTestEnv(t)
	env.fs.AddFile("/import/notes.txt", []byte("x"))
	env.fs.AddFile("/empty/.hidden.vcf", []byte(twoCards))
	env.fs.AddFile("/broken/a.vcf", []byte("BEGIN:VCARD\r\nFN:Unterminated\r\n"))

	for _, p := range []string{"/import/notes.txt", "/empty", "/broken"} {
		t.Run(p, func(t *testing.T) {
			path, err := env.fs.Resolve(p)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := env.svc.ImportPath(path, false); err == nil {
				t.Errorf("ImportPath(%s) expected error", p)
			}
		})
	}

	if all, _ := env.svc.ListContacts(true); len(all) != 0 {
		t.Errorf("failed imports stored %d contacts", len(all))
	}
}

func TestService_ExportContacts(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "Zoe Young")
	gone := env.create(t, "Adam Brown")
	if err := env.svc.DeleteContact(gone.ID, false); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name            string
		includeArchived bool
		want            []string
	}{
		{name: "active only", want: []string{"Zoe Young"}},
		{name: "with archived", includeArchived: true, want: []string{"Adam Brown", "Zoe Young"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			n, err := env.svc.ExportContacts(&buf, tt.includeArchived)
			if err != nil {
				t.Fatalf("ExportContacts() error = %v", err)
			}
			if n != len(tt.want) {
				t.Errorf("ExportContacts() = %d, want %d", n, len(tt.want))
			}
			cards, err := vcard.DecodeAll(&buf)
			if err != nil {
				t.Fatalf("exported bundle does not decode: %v", err)
			}
			for i, c := range cards {
				if c.DisplayName != tt.want[i] {
					t.Errorf("card %d = %q, want %q", i, c.DisplayName, tt.want[i])
				}
			}
		})
	}
}

func TestService_FindAndMergeDuplicates(t *testing.T) {
	env := newTestEnv(t)
	a := env.create(t, "Jane Smith", "jane@example.com")
	b := env.create(t, "Jane Smith", "JANE@example.com", "jane@work.example")
	env.create(t, "Bob Jones", "bob@other.example")

	candidates, err := env.svc.FindDuplicates(0.6, 50)
	if err != nil {
		t.Fatalf("FindDuplicates() error = %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("FindDuplicates() = %d candidates, want 1", len(candidates))
	}
	pair := []string{candidates[0].A.ID, candidates[0].B.ID}
	if !(pair[0] == a.ID && pair[1] == b.ID) && !(pair[0] == b.ID && pair[1] == a.ID) {
		t.Errorf("candidate pair = %v", pair)
	}

	res, err := env.svc.MergeContacts([]string{a.ID, b.ID}, merge.Union, nil)
	if err != nil {
		t.Fatalf("MergeContacts() error = %v", err)
	}
	if res.Contact.ID != a.ID || res.Commit == "" {
		t.Errorf("merge result id = %s commit = %q", res.Contact.ID, res.Commit)
	}
	if len(res.Contact.Emails) != 2 {
		t.Errorf("merged emails = %+v, want 2 distinct", res.Contact.Emails)
	}

	secondary, err := env.svc.GetContact(b.ID)
	if err != nil || !secondary.Metadata.Archived {
		t.Errorf("secondary after merge = %+v, %v", secondary, err)
	}
	log, err := env.svc.MergeLog()
	if err != nil || len(log) != 1 || log[0].PrimaryID != a.ID {
		t.Errorf("MergeLog() = %+v, %v", log, err)
	}
	if candidates, _ := env.svc.FindDuplicates(0.6, 50); len(candidates) != 0 {
		t.Errorf("archived secondary still reported as duplicate")
	}

	t.Run("rejects fewer than two ids", func(t *testing.T) {
		if _, err := env.svc.MergeContacts([]string{a.ID}, merge.Union, nil); !errors.Is(err, model.ErrArgument) {
			t.Errorf("error = %v, want ErrArgument", err)
		}
	})
	t.Run("rejects archived records", func(t *testing.T) {
		if _, err := env.svc.MergeContacts([]string{a.ID, b.ID}, merge.Union, nil); !errors.Is(err, model.ErrArgument) {
			t.Errorf("error = %v, want ErrArgument", err)
		}
	})
	t.Run("unknown id", func(t *testing.T) {
		if _, err := env.svc.MergeContacts([]string{a.ID, "missing"}, merge.Union, nil); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestService_RollbackReindexes(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "Jane Smith")

	res, err := env.svc.Rollback(abook.RollbackOptions{Mode: abook.RollbackLast, Count: 1})
	if err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if res.Reverted != 1 {
		t.Errorf("Reverted = %d, want 1", res.Reverted)
	}
	hits, err := env.svc.Search("jane", 10, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("reverted contact still indexed: %v", hitIDs(hits))
	}
}

func TestService_BackupRestore(t *testing.T) {
	env := newTestEnv(t)
	keep := env.create(t, "Jane Smith")
	lost := env.create(t, "Bob Jones")

	name, err := env.svc.Backup()
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if name != "contacts-20240115T103000Z.vcf.age" {
		t.Errorf("Backup() name = %q", name)
	}
	names, err := env.svc.ListBackups()
	if err != nil || len(names) != 1 || names[0] != name {
		t.Errorf("ListBackups() = %v, %v", names, err)
	}

	if err := env.svc.DeleteContact(lost.ID, true); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.UpdateContact(keep.ID, model.Patch{Note: model.Some("edited after backup")}); err != nil {
		t.Fatal(err)
	}

	decrypt, err := testutil.NewTestEncryptor().Unlock("")
	if err != nil {
		t.Fatal(err)
	}
	res, err := env.svc.Restore(name, decrypt)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if len(res.Contacts) != 1 || res.Contacts[0].ID != lost.ID {
		t.Fatalf("Restore() restored %+v, want only %s", res.Contacts, lost.ID)
	}
	got, _ := env.svc.GetContact(keep.ID)
	if got.Note != "edited after backup" {
		t.Errorf("Restore() overwrote a contact still present: note = %q", got.Note)
	}

	again, err := env.svc.Restore(name, decrypt)
	if err != nil || len(again.Contacts) != 0 {
		t.Errorf("second Restore() = %+v, %v", again, err)
	}

	if _, err := env.svc.Restore("contacts-missing.vcf.age", decrypt); err == nil {
		t.Error("Restore() of missing backup expected error")
	}
	if _, err := env.svc.Restore(name, nil); err == nil {
		t.Error("Restore() without a key expected error")
	}
}

func TestService_BackupNeedsVault(t *testing.T) {
	clock := testutil.FixedClock()
	svc := abook.NewService(testutil.NewTestStore(t, clock), nil, nil, nil, nil, nil, clock)
	if _, err := svc.Backup(); err == nil {
		t.Error("Backup() without a vault expected error")
	}
	if _, err := svc.Search("x", 1, false); err == nil {
		t.Error("Search() without an index expected error")
	}
}

func TestService_Sync(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	remoteDir := t.TempDir()
	card := "BEGIN:VCARD\r\nVERSION:4.0\r\nFN:Remote Person\r\nX-ABOOK-MODIFIED:2024-01-01T00:00:00Z\r\nEND:VCARD\r\n"
	if err := os.WriteFile(filepath.Join(remoteDir, "r1.vcf"), []byte(card), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := provider.NewLocalProvider("phone", remoteDir)
	if err != nil {
		t.Fatal(err)
	}
	local := env.create(t, "Jane Smith")

	first, err := env.svc.Sync(ctx, p, time.Time{})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if first.Created != 1 || first.Pushed != 1 || first.Updated != 0 {
		t.Errorf("first sync = %+v", first)
	}
	if !strings.HasPrefix(first.PreTag, "pre-sync-phone-") || !strings.HasPrefix(first.PostTag, "post-sync-phone-") {
		t.Errorf("tags = %q, %q", first.PreTag, first.PostTag)
	}
	linked, _ := env.svc.GetContact(local.ID)
	if linked.Metadata.ProviderIDs["phone"] != local.ID {
		t.Errorf("provider link = %v", linked.Metadata.ProviderIDs)
	}
	if _, err := os.Stat(filepath.Join(remoteDir, local.ID+".vcf")); err != nil {
		t.Errorf("pushed record missing remotely: %v", err)
	}

	env.clock.Advance(time.Hour)
	if _, err := env.svc.UpdateContact(local.ID, model.Patch{Note: model.Some("changed locally")}); err != nil {
		t.Fatal(err)
	}
	second, err := env.svc.Sync(ctx, p, first.NewLastSync)
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if second.RemoteUpdated != 1 || second.Created != 0 || second.Pushed != 0 {
		t.Errorf("second sync = %+v", second)
	}

	env.clock.Advance(time.Hour)
	if err := env.svc.DeleteContact(local.ID, false); err != nil {
		t.Fatal(err)
	}
	third, err := env.svc.Sync(ctx, p, second.NewLastSync)
	if err != nil {
		t.Fatalf("third Sync() error = %v", err)
	}
	if third.RemoteDeleted != 1 {
		t.Errorf("third sync = %+v", third)
	}
	if _, err := os.Stat(filepath.Join(remoteDir, local.ID+".vcf")); !os.IsNotExist(err) {
		t.Errorf("archived record still present remotely: %v", err)
	}
}

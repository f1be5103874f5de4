package vault

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestMemoryVault_PutAndGetBackup(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	tests := []struct {
		name    string
		backup  string
		content string
	}{
		{name: "store and retrieve backup", backup: "contacts-20240115T103000Z.vcf.age", content: "ciphertext"},
		{name: "store empty backup", backup: "empty.vcf.age", content: ""},
		{name: "store large backup", backup: "large.vcf.age", content: strings.Repeat("x", 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := vault.PutBackup(tt.backup, strings.NewReader(tt.content), int64(len(tt.content))); err != nil {
				t.Fatalf("PutBackup() error = %v", err)
			}

			var buf bytes.Buffer
			if err := vault.GetBackup(tt.backup, &buf); err != nil {
				t.Fatalf("GetBackup() error = %v", err)
			}
			if got := buf.String(); got != tt.content {
				t.Errorf("GetBackup() = %q, want %q", got, tt.content)
			}
		})
	}
}

func TestMemoryVault_ListBackups(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	names, err := vault.ListBackups()
	if err != nil || len(names) != 0 {
		t.Fatalf("ListBackups() on empty vault = %v, %v", names, err)
	}

	for _, name := range []string{"contacts-20240302T000000Z.vcf.age", "contacts-20240101T000000Z.vcf.age"} {
		if err := vault.PutBackup(name, strings.NewReader("x"), 1); err != nil {
			t.Fatal(err)
		}
	}
	names, _ = vault.ListBackups()
	want := []string{"contacts-20240101T000000Z.vcf.age", "contacts-20240302T000000Z.vcf.age"}
	if len(names) != 2 || names[0] != want[0] || names[1] != want[1] {
		t.Errorf("ListBackups() = %v, want %v", names, want)
	}
}

func TestMemoryVault_Errors(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	var buf bytes.Buffer
	if err := vault.GetBackup("missing", &buf); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBackup() error = %v, want ErrNotFound", err)
	}
	if err := vault.PutBackup("short", strings.NewReader("abc"), 10); err == nil {
		t.Error("PutBackup() expected size mismatch error")
	}
	if err := vault.PutBackup("../escape", strings.NewReader("a"), 1); err == nil {
		t.Error("PutBackup() expected invalid name error")
	}
	if err := vault.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
}

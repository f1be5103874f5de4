package vault

import (
	"testing"

	"abook/internal/config"
)

func TestNewVaultFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.VaultConfig
		wantErr bool
	}{
		{name: "memory vault", cfg: config.VaultConfig{Type: "memory", Name: "mem"}},
		{name: "filesystem vault", cfg: config.VaultConfig{Type: "filesystem", Name: "local", FSVaultRoot: t.TempDir()}},
		{name: "filesystem vault without root", cfg: config.VaultConfig{Type: "filesystem", Name: "local"}, wantErr: true},
		{name: "s3 vault without bucket", cfg: config.VaultConfig{Type: "s3", Name: "cloud"}, wantErr: true},
		{name: "s3 vault with half of the credentials", cfg: config.VaultConfig{Type: "s3", Name: "cloud", S3Bucket: "b", S3AccessKeyID: "AKIA"}, wantErr: true},
		{name: "unknown type", cfg: config.VaultConfig{Type: "ftp", Name: "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewVaultFromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewVaultFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got == nil {
				t.Error("NewVaultFromConfig() returned nil")
			}
		})
	}
}

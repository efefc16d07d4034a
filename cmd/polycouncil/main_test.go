package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alanyoungcy/polycouncil/internal/crypto"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "polycouncil ") {
		t.Fatalf("output = %q", out)
	}
}

func TestEncryptKeyRoundTrip(t *testing.T) {
	const key = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	path := filepath.Join(t.TempDir(), "wallet.key")

	if _, err := execute(t, "encrypt-key", "--key", "0x"+key, "--password", "hunter2", "--out", path); err != nil {
		t.Fatal(err)
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := crypto.DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if got != key {
		t.Fatalf("decrypted %s", got)
	}
}

func TestEncryptKeyRequiresInputs(t *testing.T) {
	t.Setenv("POLYCOUNCIL_WALLET_PRIVATE_KEY", "")
	t.Setenv("POLYCOUNCIL_WALLET_KEY_PASSWORD", "")
	if _, err := execute(t, "encrypt-key", "--out", filepath.Join(t.TempDir(), "k")); err == nil {
		t.Fatal("expected an error without key and password")
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("mode = \"bogus\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := execute(t, "--config", path, "run")
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Fatalf("err = %v", err)
	}
}

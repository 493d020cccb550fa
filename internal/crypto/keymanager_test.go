package crypto

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptWalletKey("0x"+testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptWalletKey: %v", err)
	}

	var stored struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(blob, &stored); err != nil {
		t.Fatalf("unmarshal blob: %v", err)
	}
	if stored.Address == "" {
		t.Error("keystore blob missing address")
	}

	got, err := DecryptWalletKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptWalletKey: %v", err)
	}
	if got != testKeyHex {
		t.Errorf("decrypted key = %s, want %s", got, testKeyHex)
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptWalletKey(testKeyHex, "correct")
	if err != nil {
		t.Fatalf("EncryptWalletKey: %v", err)
	}
	if _, err := DecryptWalletKey(blob, "wrong"); err == nil {
		t.Fatal("expected error for wrong password")
	}
}

func TestEncryptRejectsInvalidKey(t *testing.T) {
	if _, err := EncryptWalletKey("not-hex", "pw"); err == nil {
		t.Fatal("expected error for invalid key")
	}
	if _, err := EncryptWalletKey(testKeyHex, ""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestResolveKey(t *testing.T) {
	got, err := ResolveKey(KeySource{RawPrivateKey: "0x" + testKeyHex})
	if err != nil {
		t.Fatalf("ResolveKey raw: %v", err)
	}
	if got != testKeyHex {
		t.Errorf("ResolveKey raw = %s", got)
	}

	blob, err := EncryptWalletKey(testKeyHex, "pw")
	if err != nil {
		t.Fatalf("EncryptWalletKey: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keystore.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("write keystore: %v", err)
	}

	got, err = ResolveKey(KeySource{KeystorePath: path, KeystorePassword: "pw"})
	if err != nil {
		t.Fatalf("ResolveKey keystore: %v", err)
	}
	if got != testKeyHex {
		t.Errorf("ResolveKey keystore = %s", got)
	}

	if _, err := ResolveKey(KeySource{}); err == nil {
		t.Fatal("expected error for empty source")
	}
}

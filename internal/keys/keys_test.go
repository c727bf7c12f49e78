package keys

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// testKeyHex is a throwaway secp256k1 key used only in tests.
const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := Encrypt(testKeyHex, "correct horse battery staple")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	got, err := Decrypt(blob, "correct horse battery staple")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != testKeyHex {
		t.Errorf("decrypted key differs from original")
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := Encrypt(testKeyHex, "right")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := Decrypt(blob, "wrong"); err == nil {
		t.Fatal("expected decryption failure with the wrong password")
	}
}

func TestEncryptValidation(t *testing.T) {
	if _, err := Encrypt(testKeyHex, ""); err == nil {
		t.Error("expected error for empty password")
	}
	if _, err := Encrypt("not-hex", "pw"); err == nil {
		t.Error("expected error for malformed key hex")
	}
	if _, err := Encrypt("abcd", "pw"); err == nil {
		t.Error("expected error for short key")
	}
}

func TestLoadRawKey(t *testing.T) {
	for _, raw := range []string{testKeyHex, "0x" + testKeyHex} {
		pk, err := Load(Config{RawKey: raw})
		if err != nil {
			t.Fatalf("load raw key %q: %v", raw[:6], err)
		}
		want := ethcrypto.PubkeyToAddress(pk.PublicKey)
		if want.Hex() == "" || strings.TrimLeft(want.Hex()[2:], "0") == "" {
			t.Error("derived a zero operator address")
		}
	}
}

func TestLoadEncryptedFile(t *testing.T) {
	blob, err := Encrypt(testKeyHex, "pw")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	path := filepath.Join(t.TempDir(), "operator.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	pk, err := Load(Config{EncryptedPath: path, Password: "pw"})
	if err != nil {
		t.Fatalf("load encrypted: %v", err)
	}

	direct, _ := Load(Config{RawKey: testKeyHex})
	if ethcrypto.PubkeyToAddress(pk.PublicKey) != ethcrypto.PubkeyToAddress(direct.PublicKey) {
		t.Error("encrypted path and raw key resolve to different operators")
	}
}

func TestLoadNoSource(t *testing.T) {
	if _, err := Load(Config{}); err == nil {
		t.Fatal("expected error when no key source is configured")
	}
}

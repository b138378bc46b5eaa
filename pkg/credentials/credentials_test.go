package credentials

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// TestCredentialsIsExpired validates token expiration check
func TestCredentialsIsExpired(t *testing.T) {
	testCases := []struct {
		expiresAt time.Time
		expect    bool
		name      string
	}{
		{time.Now().Add(-1 * time.Hour), true, "past expiration"},
		{time.Now().Add(1 * time.Hour), false, "future expiration"},
		{time.Time{}, false, "no expiry"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			creds := &Credentials{AccessToken: "test_token", ExpiresAt: tc.expiresAt}
			if result := creds.IsExpired(); result != tc.expect {
				t.Errorf("Expected IsExpired=%v, got %v", tc.expect, result)
			}
		})
	}
}

// TestCredentialsIsValid validates credential validity check
func TestCredentialsIsValid(t *testing.T) {
	testCases := []struct {
		creds  *Credentials
		expect bool
		name   string
	}{
		{&Credentials{AccessToken: "tok", UserID: "u1"}, true, "valid credentials"},
		{&Credentials{UserID: "u1"}, false, "empty access token"},
		{&Credentials{AccessToken: "tok"}, false, "missing user id"},
		{&Credentials{AccessToken: "tok", UserID: "u1", ExpiresAt: time.Now().Add(-time.Hour)}, false, "expired token"},
		{nil, false, "nil credentials"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if result := tc.creds.IsValid(); result != tc.expect {
				t.Errorf("Expected IsValid=%v, got %v", tc.expect, result)
			}
		})
	}
}

// TestSaveAndLoad validates the on-disk round trip
func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")
	creds := &Credentials{AccessToken: "tok", UserID: "u1", Username: "alice"}

	if err := SaveTo(path, creds); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("Expected 0600 permissions, got %o", info.Mode().Perm())
		}
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if loaded.AccessToken != "tok" || loaded.UserID != "u1" || loaded.DisplayName() != "alice" {
		t.Errorf("Unexpected credentials %+v", loaded)
	}
}

// TestLoadMissing validates that missing credentials are not an error
func TestLoadMissing(t *testing.T) {
	creds, err := LoadFrom(filepath.Join(t.TempDir(), "nope"))
	if err != nil || creds != nil {
		t.Errorf("Expected (nil, nil), got (%v, %v)", creds, err)
	}
}

// TestLoadCorrupt validates that a damaged file is reported
func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("Expected parse error")
	}
}

// TestDisplayName validates the username fallback
func TestDisplayName(t *testing.T) {
	if name := (&Credentials{UserID: "u1"}).DisplayName(); name != "u1" {
		t.Errorf("Expected user id fallback, got %q", name)
	}
}

package secrets

import (
	"errors"
	"strings"
	"testing"
)

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestSealOpen(t *testing.T) {
	box, err := New(testKey())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sealed, err := box.Seal("green-api-token")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if !strings.HasPrefix(sealed, prefix) {
		t.Errorf("Seal() = %q, want %q prefix", sealed, prefix)
	}
	if strings.Contains(sealed, "green-api-token") {
		t.Error("sealed value leaks plaintext")
	}

	got, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got != "green-api-token" {
		t.Errorf("Open() = %q, want %q", got, "green-api-token")
	}
}

func TestOpenWrongKey(t *testing.T) {
	box, _ := New(testKey())
	sealed, _ := box.Seal("token")

	other, _ := New([]byte("ffffffffffffffffffffffffffffffff"))
	if _, err := other.Open(sealed); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Open() error = %v, want ErrDecrypt", err)
	}
}

func TestPassthroughWithoutKey(t *testing.T) {
	box, err := New(nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if box.Enabled() {
		t.Error("Enabled() = true without key")
	}

	sealed, _ := box.Seal("plain")
	if sealed != "plain" {
		t.Errorf("Seal() = %q, want passthrough", sealed)
	}

	keyed, _ := New(testKey())
	enc, _ := keyed.Seal("plain")
	if _, err := box.Open(enc); !errors.Is(err, ErrNoKey) {
		t.Errorf("Open() error = %v, want ErrNoKey", err)
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantLen int
		wantErr bool
	}{
		{"empty", "", 0, false},
		{"hex", strings.Repeat("ab", 32), 32, false},
		{"raw", string(testKey()), 32, false},
		{"short", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKey(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.wantLen {
				t.Errorf("ParseKey() len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

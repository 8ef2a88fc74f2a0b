package utils

import "testing"

func TestNumericCode(t *testing.T) {
	for _, length := range []int{4, 6, 8} {
		code, err := NumericCode(length)
		if err != nil {
			t.Fatalf("NumericCode(%d): %v", length, err)
		}
		if len(code) != length {
			t.Fatalf("NumericCode(%d) = %q, wrong length", length, code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("NumericCode(%d) = %q, non-digit", length, code)
			}
		}
	}
}

func TestNumericCodeBadLength(t *testing.T) {
	for _, length := range []int{0, -1, 13} {
		if _, err := NumericCode(length); err == nil {
			t.Errorf("NumericCode(%d): expected error", length)
		}
	}
}

func TestNewRefreshToken(t *testing.T) {
	tok, err := NewRefreshToken(32)
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	if len(tok) != 64 { // hex: два символа на байт
		t.Fatalf("token length = %d, want 64", len(tok))
	}

	other, err := NewRefreshToken(32)
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	if tok == other {
		t.Fatal("two tokens are identical")
	}

	// nBytes <= 0 падает на дефолт
	tok, err = NewRefreshToken(0)
	if err != nil || len(tok) != 64 {
		t.Fatalf("NewRefreshToken(0) = %q, %v", tok, err)
	}
}

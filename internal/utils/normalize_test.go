package utils

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"+998 (90) 123-45-67", "+998901234567"},
		{"998901234567", "+998901234567"},
		{"  +998901234567  ", "+998901234567"},
		{"8-800-555-35-35", "+88005553535"},
		{"", ""},
		{"+", ""},
		{"abc", ""},
	}
	for _, c := range cases {
		if got := NormalizePhone(c.in); got != c.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{" Student@Example.COM ", "student@example.com"},
		{"+998 90 123 45 67", "+998901234567"},
		{"998901234567", "+998901234567"},
	}
	for _, c := range cases {
		if got := NormalizeIdentifier(c.in); got != c.want {
			t.Errorf("NormalizeIdentifier(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIsEmail(t *testing.T) {
	if !IsEmail("s@example.com") {
		t.Error("email not recognized")
	}
	if IsEmail("+998901234567") {
		t.Error("phone recognized as email")
	}
}

package cache

import "testing"

func TestDeriveKeyNormalizesQuestion(t *testing.T) {
	a := DeriveKey("Show Customers ", "sales_db", "abcd1234abcd1234")
	b := DeriveKey("show customers", "sales_db", "abcd1234abcd1234")
	if a != b {
		t.Fatalf("keys differ for equivalent questions: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("len(key) = %d, want 64 hex chars", len(a))
	}
}

func TestDeriveKeySensitivity(t *testing.T) {
	base := DeriveKey("list all customers", "sales_db", "abcd1234abcd1234")

	cases := map[string]string{
		"question": DeriveKey("list all customer", "sales_db", "abcd1234abcd1234"),
		"database": DeriveKey("list all customers", "marketing_db", "abcd1234abcd1234"),
		"schema":   DeriveKey("list all customers", "sales_db", "abcd1234abcd1235"),
	}
	for name, key := range cases {
		if key == base {
			t.Fatalf("%s change did not change the key", name)
		}
	}
}

func TestNormalizeQuestion(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Show Customers  ", "show customers"},
		{"SELECT", "select"},
		{"", ""},
		{"\talready lower\n", "already lower"},
	}
	for _, tc := range cases {
		if got := NormalizeQuestion(tc.in); got != tc.want {
			t.Fatalf("NormalizeQuestion(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

package helpers

import "testing"

func TestCanonicalURLNormalizesVariants(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"HTTPS://Example.COM:443/news/a?utm_source=x", "https://example.com/news/a"},
		{"http://example.com:80/a/../b", "http://example.com/b"},
		{"example.com/path?b=2&a=1", "https://example.com/path?a=1&b=2"},
		{"https://example.com/page#section", "https://example.com/page"},
	}
	for _, tc := range cases {
		got, err := CanonicalURL(tc.in)
		if err != nil {
			t.Fatalf("CanonicalURL(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("CanonicalURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalURLSameKeyForEquivalentURLs(t *testing.T) {
	a, err := CanonicalURL("https://example.com/report?fbclid=abc")
	if err != nil {
		t.Fatal(err)
	}
	b, err := CanonicalURL("example.com/report")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("expected equivalent URLs to canonicalise identically: %q vs %q", a, b)
	}
}

func TestCanonicalURLRejectsEmpty(t *testing.T) {
	if _, err := CanonicalURL("   "); err == nil {
		t.Fatal("expected error for blank url")
	}
}

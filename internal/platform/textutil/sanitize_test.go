package textutil

import "testing"

func TestCleanTextStripsMarkup(t *testing.T) {
	if got := CleanText("  <b>Rahim</b> Uddin "); got != "Rahim Uddin" {
		t.Fatalf("expected markup stripped, got %q", got)
	}
	if got := CleanText("<script>alert(1)</script>House 7, Road 3"); got != "House 7, Road 3" {
		t.Fatalf("expected script removed, got %q", got)
	}
}

func TestCleanTextLimit(t *testing.T) {
	if got := CleanTextLimit("abcdef", 3); got != "abc" {
		t.Fatalf("expected truncation to abc, got %q", got)
	}
	if got := CleanTextLimit("abc", 0); got != "abc" {
		t.Fatalf("expected no truncation, got %q", got)
	}
}

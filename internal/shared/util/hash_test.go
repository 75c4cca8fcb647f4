package util

import (
	"strings"
	"testing"
)

func TestOwnerKey(t *testing.T) {
	got := OwnerKey("google:12345")
	if got != OwnerKey("google:12345") {
		t.Fatalf("expected stable key, got %s", got)
	}
	if !strings.HasPrefix(got, "user-") || len(got) != len("user-")+32 {
		t.Fatalf("unexpected key %q", got)
	}
	for _, ch := range strings.TrimPrefix(got, "user-") {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("key contains non-hex character: %c", ch)
		}
	}
	guest := OwnerKey("guest:g1")
	if !strings.HasPrefix(guest, "guest-") {
		t.Fatalf("expected guest namespace, got %q", guest)
	}
	if strings.TrimPrefix(guest, "guest-") == strings.TrimPrefix(got, "user-") {
		t.Fatalf("distinct ids must not collide")
	}
}

func TestSanitizeKeySegment(t *testing.T) {
	got, err := SanitizeKeySegment(" analysis-1700/000 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "analysis-1700_000" {
		t.Fatalf("unexpected segment %q", got)
	}
	if _, err := SanitizeKeySegment("../etc"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	if _, err := SanitizeKeySegment("   "); err == nil {
		t.Fatalf("expected blank to be rejected")
	}
}

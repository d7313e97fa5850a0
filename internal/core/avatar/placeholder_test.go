package avatar

import (
	"fmt"
	"strings"
	"testing"
)

func TestPlaceholderColor_KnownValues(t *testing.T) {
	tests := []struct {
		actor string
		want  string
	}{
		{"", "#000000"},
		{"a", "#610000"},
		{"did:plc:abc", "#54fcc8"},
		{"alice.example.com", "#8f4468"},
	}

	for _, tt := range tests {
		if got := PlaceholderColor(tt.actor); got != tt.want {
			t.Errorf("PlaceholderColor(%q) = %q, want %q", tt.actor, got, tt.want)
		}
	}
}

func TestPlaceholder_Deterministic(t *testing.T) {
	a := Placeholder("did:plc:abc123", 128)
	b := Placeholder("did:plc:abc123", 128)
	if string(a) != string(b) {
		t.Fatal("placeholder output differs between calls")
	}

	if string(a) == string(Placeholder("did:plc:other", 128)) {
		t.Error("different actors produced identical placeholders")
	}
}

func TestPlaceholder_Markup(t *testing.T) {
	svg := string(Placeholder("did:plc:abc", 32))
	want := `<svg width="32" height="32" viewBox="0 0 32 32" xmlns="http://www.w3.org/2000/svg"><rect width="32" height="32" fill="#54fcc8"/></svg>`
	if svg != want {
		t.Errorf("unexpected markup:\n got: %s\nwant: %s", svg, want)
	}
}

func TestPlaceholderResponse_Sizes(t *testing.T) {
	for _, tiny := range []bool{false, true} {
		resp := PlaceholderResponse("did:plc:abc123", tiny)

		size := PlaceholderSize
		if tiny {
			size = 32
		}
		if !strings.Contains(string(resp.Body), fmt.Sprintf(`width="%d"`, size)) {
			t.Errorf("tiny=%v: expected width %d in %s", tiny, size, resp.Body)
		}
		if resp.ContentType != PlaceholderContentType {
			t.Errorf("tiny=%v: content type = %q", tiny, resp.ContentType)
		}
		if resp.CacheControl != CacheControl {
			t.Errorf("tiny=%v: cache control = %q", tiny, resp.CacheControl)
		}
		if !resp.Placeholder {
			t.Errorf("tiny=%v: expected Placeholder flag", tiny)
		}
	}
}

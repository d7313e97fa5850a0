package avatar

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

const (
	// PlaceholderSize is the edge length of a regular placeholder.
	PlaceholderSize = 128

	// PlaceholderContentType is the content type of generated placeholders.
	PlaceholderContentType = "image/svg+xml"
)

// PlaceholderColor derives a stable "#rrggbb" color from the actor identifier.
// The hash runs over UTF-16 code units in int32 arithmetic so that the
// appview and any other client computing the same color agree bit for bit.
func PlaceholderColor(actor string) string {
	var hash int32
	for _, c := range utf16.Encode([]rune(actor)) {
		hash = int32(c) + ((hash << 5) - hash)
	}

	var b strings.Builder
	b.WriteByte('#')
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&b, "%02x", (hash>>(i*8))&0xff)
	}
	return b.String()
}

// Placeholder renders a size x size SVG filled with the actor's color.
func Placeholder(actor string, size int) []byte {
	color := PlaceholderColor(actor)
	svg := fmt.Sprintf(
		`<svg width="%[1]d" height="%[1]d" viewBox="0 0 %[1]d %[1]d" xmlns="http://www.w3.org/2000/svg"><rect width="%[1]d" height="%[1]d" fill="%[2]s"/></svg>`,
		size, color,
	)
	return []byte(svg)
}

// PlaceholderResponse packages a placeholder for the requested size variant.
func PlaceholderResponse(actor string, tiny bool) *Response {
	size := PlaceholderSize
	if tiny {
		size = TinyPreset.Width
	}
	return &Response{
		Body:         Placeholder(actor, size),
		ContentType:  PlaceholderContentType,
		CacheControl: CacheControl,
		Placeholder:  true,
	}
}

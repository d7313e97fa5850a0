package avatar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// mockLocator implements Locator for testing
type mockLocator struct {
	name       string
	locateFunc func(ctx context.Context, actor string) (string, bool)
	calls      int
}

func (m *mockLocator) Name() string { return m.name }

func (m *mockLocator) Locate(ctx context.Context, actor string) (string, bool) {
	m.calls++
	return m.locateFunc(ctx, actor)
}

func foundAt(name, url string) *mockLocator {
	return &mockLocator{
		name: name,
		locateFunc: func(ctx context.Context, actor string) (string, bool) {
			return url, true
		},
	}
}

func notFound(name string) *mockLocator {
	return &mockLocator{
		name: name,
		locateFunc: func(ctx context.Context, actor string) (string, bool) {
			return "", false
		},
	}
}

// mockFetcher implements Fetcher for testing
type mockFetcher struct {
	fetchFunc func(ctx context.Context, sourceURL string) ([]byte, string, error)
	urls      []string
}

func (m *mockFetcher) Fetch(ctx context.Context, sourceURL string) ([]byte, string, error) {
	m.urls = append(m.urls, sourceURL)
	return m.fetchFunc(ctx, sourceURL)
}

func fetchReturning(data []byte, contentType string, err error) *mockFetcher {
	return &mockFetcher{
		fetchFunc: func(ctx context.Context, sourceURL string) ([]byte, string, error) {
			return data, contentType, err
		},
	}
}

// mockProcessor implements Processor for testing
type mockProcessor struct {
	processFunc func(data []byte, preset Preset) ([]byte, string, error)
	calls       int
}

func (m *mockProcessor) Process(data []byte, preset Preset) ([]byte, string, error) {
	m.calls++
	return m.processFunc(data, preset)
}

func passthroughProcessor() *mockProcessor {
	return &mockProcessor{
		processFunc: func(data []byte, preset Preset) ([]byte, string, error) {
			return []byte("tiny"), "image/jpeg", nil
		},
	}
}

func mustNewService(t *testing.T, f Fetcher, p Processor, locators ...Locator) *AvatarService {
	t.Helper()
	svc, err := NewService(f, p, locators...)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestGetAvatar_FirstLocatorWins(t *testing.T) {
	pds := foundAt("pds", "https://pds.example/xrpc/com.atproto.sync.getBlob?did=did:plc:abc&cid=bafk")
	bsky := foundAt("bluesky", "https://cdn.example/avatar.jpg")
	fetcher := fetchReturning([]byte("img"), "image/png", nil)

	svc := mustNewService(t, fetcher, passthroughProcessor(), pds, bsky)
	resp, err := svc.GetAvatar(context.Background(), "did:plc:abc", false)
	if err != nil {
		t.Fatalf("GetAvatar failed: %v", err)
	}

	if bsky.calls != 0 {
		t.Errorf("fallback locator called %d times after primary found an avatar", bsky.calls)
	}
	if len(fetcher.urls) != 1 || fetcher.urls[0] != "https://pds.example/xrpc/com.atproto.sync.getBlob?did=did:plc:abc&cid=bafk" {
		t.Errorf("unexpected fetches: %v", fetcher.urls)
	}
	if string(resp.Body) != "img" || resp.ContentType != "image/png" {
		t.Errorf("unexpected response: %q %q", resp.Body, resp.ContentType)
	}
	if resp.CacheControl != CacheControl {
		t.Errorf("unexpected cache control: %q", resp.CacheControl)
	}
	if resp.Placeholder {
		t.Error("fetched avatar marked as placeholder")
	}
}

func TestGetAvatar_FallsBack(t *testing.T) {
	pds := notFound("pds")
	bsky := foundAt("bluesky", "https://cdn.example/avatar.jpg")
	fetcher := fetchReturning([]byte("img"), "", nil)

	svc := mustNewService(t, fetcher, passthroughProcessor(), pds, bsky)
	resp, err := svc.GetAvatar(context.Background(), "alice.test", false)
	if err != nil {
		t.Fatalf("GetAvatar failed: %v", err)
	}

	if pds.calls != 1 || bsky.calls != 1 {
		t.Errorf("expected one call each, got pds=%d bluesky=%d", pds.calls, bsky.calls)
	}
	if resp.ContentType != DefaultContentType {
		t.Errorf("expected default content type, got %q", resp.ContentType)
	}
}

func TestGetAvatar_Placeholder(t *testing.T) {
	fetcher := fetchReturning(nil, "", errors.New("should not be called"))

	svc := mustNewService(t, fetcher, passthroughProcessor(), notFound("pds"), notFound("bluesky"))
	for _, tiny := range []bool{false, true} {
		resp, err := svc.GetAvatar(context.Background(), "did:plc:abc", tiny)
		if err != nil {
			t.Fatalf("GetAvatar failed: %v", err)
		}
		if !bytes.Equal(resp.Body, PlaceholderResponse("did:plc:abc", tiny).Body) {
			t.Errorf("tiny=%v: unexpected placeholder body %s", tiny, resp.Body)
		}
		if resp.ContentType != PlaceholderContentType {
			t.Errorf("tiny=%v: unexpected content type %q", tiny, resp.ContentType)
		}
	}
	if len(fetcher.urls) != 0 {
		t.Errorf("fetcher called for placeholder: %v", fetcher.urls)
	}
}

func TestGetAvatar_UpstreamErrorIsNotDowngraded(t *testing.T) {
	upstream := &UpstreamError{URL: "https://cdn.example/avatar.jpg", StatusCode: http.StatusNotFound}
	fetcher := fetchReturning(nil, "", upstream)
	bsky := notFound("bluesky")

	svc := mustNewService(t, fetcher, passthroughProcessor(), foundAt("pds", "https://cdn.example/avatar.jpg"), bsky)
	resp, err := svc.GetAvatar(context.Background(), "did:plc:abc", false)
	if resp != nil {
		t.Errorf("expected nil response, got %+v", resp)
	}

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) || upstreamErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected upstream 404, got %v", err)
	}
	if bsky.calls != 0 {
		t.Error("fallback locator called after a failed fetch")
	}
}

func TestGetAvatar_Tiny(t *testing.T) {
	processor := passthroughProcessor()
	processor.processFunc = func(data []byte, preset Preset) ([]byte, string, error) {
		if preset.Name != TinyPresetName || preset.Width != 32 || preset.Height != 32 {
			t.Errorf("unexpected preset: %+v", preset)
		}
		return []byte("tiny"), "image/jpeg", nil
	}
	svc := mustNewService(t, fetchReturning([]byte("big"), "image/png", nil), processor, foundAt("pds", "https://x"))

	resp, err := svc.GetAvatar(context.Background(), "did:plc:abc", true)
	if err != nil {
		t.Fatalf("GetAvatar failed: %v", err)
	}
	if processor.calls != 1 {
		t.Errorf("expected processor to run once, ran %d times", processor.calls)
	}
	if string(resp.Body) != "tiny" || resp.ContentType != "image/jpeg" {
		t.Errorf("unexpected tiny response: %q %q", resp.Body, resp.ContentType)
	}

	// Regular size does not touch the processor
	if _, err := svc.GetAvatar(context.Background(), "did:plc:abc", false); err != nil {
		t.Fatalf("GetAvatar failed: %v", err)
	}
	if processor.calls != 1 {
		t.Errorf("processor ran for regular size")
	}
}

func TestGetAvatar_TinyTranscodeFailureServesOriginal(t *testing.T) {
	processor := &mockProcessor{
		processFunc: func(data []byte, preset Preset) ([]byte, string, error) {
			return nil, "", ErrUnsupportedFormat
		},
	}
	svc := mustNewService(t, fetchReturning([]byte("<svg/>"), "image/svg+xml", nil), processor, foundAt("bluesky", "https://x"))

	resp, err := svc.GetAvatar(context.Background(), "did:plc:abc", true)
	if err != nil {
		t.Fatalf("GetAvatar failed: %v", err)
	}
	if string(resp.Body) != "<svg/>" || resp.ContentType != "image/svg+xml" {
		t.Errorf("expected original bytes, got %q %q", resp.Body, resp.ContentType)
	}
}

func TestNewService_NilDependencies(t *testing.T) {
	f := fetchReturning(nil, "", nil)
	p := passthroughProcessor()

	if _, err := NewService(nil, p); !errors.Is(err, ErrNilDependency) {
		t.Errorf("nil fetcher: expected ErrNilDependency, got %v", err)
	}
	if _, err := NewService(f, nil); !errors.Is(err, ErrNilDependency) {
		t.Errorf("nil processor: expected ErrNilDependency, got %v", err)
	}
	if _, err := NewService(f, p, nil); !errors.Is(err, ErrNilDependency) {
		t.Errorf("nil locator: expected ErrNilDependency, got %v", err)
	}
}

func TestGetAvatar_PDSHitNeverQueriesBluesky(t *testing.T) {
	var blobHits, bskyHits int32

	pds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xrpc/com.atproto.repo.getRecord":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"value":{"avatar":{"$type":"blob","ref":{"$link":"%s"},"mimeType":"image/png"}}}`, testCID)
		case "/xrpc/com.atproto.sync.getBlob":
			atomic.AddInt32(&blobHits, 1)
			if r.URL.Query().Get("cid") != testCID || r.URL.Query().Get("did") != "did:plc:abc123" {
				t.Errorf("unexpected getBlob query: %s", r.URL.RawQuery)
			}
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("blob bytes"))
		default:
			t.Errorf("unexpected PDS path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer pds.Close()

	bsky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&bskyHits, 1)
		fmt.Fprint(w, `{"avatar":"https://cdn.example/should-not-be-used.jpg"}`)
	}))
	defer bsky.Close()

	pdsLocator, err := NewPDSLocator(resolverFor(pds.URL), nil)
	if err != nil {
		t.Fatalf("NewPDSLocator failed: %v", err)
	}
	svc := mustNewService(t,
		NewHTTPFetcher(nil, 1),
		NewProcessor(),
		pdsLocator,
		NewBlueskyLocator(bsky.URL, nil),
	)

	resp, err := svc.GetAvatar(context.Background(), "alice.test", false)
	if err != nil {
		t.Fatalf("GetAvatar failed: %v", err)
	}

	if string(resp.Body) != "blob bytes" || resp.ContentType != "image/png" {
		t.Errorf("unexpected response: %q %q", resp.Body, resp.ContentType)
	}
	if n := atomic.LoadInt32(&blobHits); n != 1 {
		t.Errorf("expected exactly one getBlob call, got %d", n)
	}
	if n := atomic.LoadInt32(&bskyHits); n != 0 {
		t.Errorf("expected no Bluesky calls, got %d", n)
	}
}

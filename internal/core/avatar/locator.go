package avatar

import "context"

// Locator finds a fetchable avatar URL for an actor.
// A locator never returns an error: any failure is logged and reported as
// not found (ok == false) so the caller can move on to the next source.
type Locator interface {
	Name() string
	Locate(ctx context.Context, actor string) (sourceURL string, ok bool)
}

package harvester

import (
	"context"
	"net/http"
)

// APIClient is the part of the Cinode client the harvester needs
type APIClient interface {
	// FetchText returns a raw JSON body for the cache
	FetchText(ctx context.Context, url string) (string, error)
	// Get fetches an attachment; the caller closes the body
	Get(ctx context.Context, url string) (*http.Response, error)
	// Halt stops all further requests
	Halt(reason error)
}

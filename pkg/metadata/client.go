package metadata

import (
	"net/http"
)

// HTTPClient is satisfied by *http.Client and by the TLS-fingerprinting client
// from pkg/client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

package interfaces

import (
	"context"

	"github.com/ryawaa/twinkle/src/models"
)

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for outbound HTTP requests.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// Get performs a GET request to the specified URL with parameters.
	// Non-2xx answers are returned as a response, not an error; errors are
	// transport failures only.
	Get(ctx context.Context, url string, params map[string]string) (*models.MResponse, error)
}

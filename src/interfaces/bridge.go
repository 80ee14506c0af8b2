package interfaces

import (
	"context"

	"github.com/ryawaa/twinkle/src/models"
)

// IBridge gates live data on the upstream bridge being started.
type IBridge interface {
	EnsureStarted(ctx context.Context) (models.MBridgeStatus, error)
	Status() (models.MBridgeStatus, bool)
}

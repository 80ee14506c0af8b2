package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ryawaa/twinkle/src/helpers"
	"github.com/ryawaa/twinkle/src/interfaces"
	"github.com/ryawaa/twinkle/src/logger"
	"github.com/ryawaa/twinkle/src/models"
)

// Starter triggers the upstream bridge.
type Starter interface {
	StartWebSocket(ctx context.Context) (models.MBridgeStatus, error)
}

// Bootstrapper makes sure the sparkle trade bridge is running before anyone
// subscribes. Once it has seen the running status it never calls upstream
// again for the life of the process.
type Bootstrapper struct {
	starter       Starter
	runningStatus string
	timeout       time.Duration
	logger        *logger.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	running bool
	status  models.MBridgeStatus
}

var _ interfaces.IBridge = (*Bootstrapper)(nil)

// -----------------------------------------------------------------------------

func NewBootstrapper(starter Starter, cfg *models.MConfig, log *logger.Logger) *Bootstrapper {
	return &Bootstrapper{
		starter:       starter,
		runningStatus: cfg.Sparkle.RunningStatus,
		timeout:       time.Duration(cfg.Sparkle.Timeout) * time.Second,
		logger:        log,
	}
}

// -----------------------------------------------------------------------------

// EnsureStarted returns the cached status when the bridge is known to be
// running. Otherwise it starts it; concurrent callers share one attempt.
func (b *Bootstrapper) EnsureStarted(ctx context.Context) (models.MBridgeStatus, error) {
	if status, ok := b.Status(); ok {
		return status, nil
	}

	ch := b.group.DoChan("start", func() (interface{}, error) {
		if status, ok := b.Status(); ok {
			return status, nil
		}
		return b.start(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return models.MBridgeStatus{}, res.Err
		}
		return res.Val.(models.MBridgeStatus), nil
	case <-ctx.Done():
		return models.MBridgeStatus{}, helpers.NewBootstrapError("bridge start abandoned", ctx.Err())
	}
}

// -----------------------------------------------------------------------------

func (b *Bootstrapper) start(ctx context.Context) (models.MBridgeStatus, error) {
	// The attempt is shared, so one caller going away must not cancel it.
	startCtx := context.WithoutCancel(ctx)
	if b.timeout > 0 {
		var cancel context.CancelFunc
		startCtx, cancel = context.WithTimeout(startCtx, b.timeout)
		defer cancel()
	}

	b.logger.Info("Starting sparkle trade bridge")
	status, err := b.starter.StartWebSocket(startCtx)
	if err != nil {
		b.logger.Error("Failed to start trade bridge: %v", err)
		return models.MBridgeStatus{}, helpers.NewBootstrapError("failed to start trade bridge", err)
	}

	if status.Status != b.runningStatus {
		b.logger.Warning("Trade bridge not ready: %q", status.Status)
		return status, helpers.NewBootstrapError(fmt.Sprintf("trade bridge not ready: %q", status.Status), nil)
	}

	status.StartedAt = time.Now()

	b.mu.Lock()
	b.running = true
	b.status = status
	b.mu.Unlock()

	b.logger.Info("Trade bridge running")
	return status, nil
}

// -----------------------------------------------------------------------------

// Status reports the cached status and whether the bridge is running.
func (b *Bootstrapper) Status() (models.MBridgeStatus, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status, b.running
}

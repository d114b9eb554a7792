package syncer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/clockwork-hr/punchsync/internal/metrics"
	"github.com/clockwork-hr/punchsync/pkg/attstore"
	"github.com/clockwork-hr/punchsync/pkg/device"
	"github.com/clockwork-hr/punchsync/pkg/devicestore"
)

// Engine drives periodic syncs of every configured device. Devices are
// synced sequentially each tick; two syncs of the same device never run
// concurrently, whether triggered by the ticker or manually through
// SyncDeviceByID.
type Engine struct {
	syncer   *Syncer
	devices  devicestore.Store
	ledger   attstore.Store
	interval time.Duration
	logger   *zap.Logger

	locks sync.Map // device id -> *sync.Mutex
	ready atomic.Bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewEngine creates a new sync engine
func NewEngine(s *Syncer, devices devicestore.Store, ledger attstore.Store, interval time.Duration, logger *zap.Logger) *Engine {
	return &Engine{
		syncer:   s,
		devices:  devices,
		ledger:   ledger,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the periodic sync loop. The first pass runs immediately;
// the engine reports ready once it completes.
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info("Starting sync engine", zap.Duration("interval", e.interval))

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx)
	}()
}

// Stop stops the engine and waits for an in-flight pass to finish.
func (e *Engine) Stop() {
	e.logger.Info("Stopping sync engine")
	close(e.stopCh)
	e.wg.Wait()
	e.logger.Info("Sync engine stopped")
}

// IsReady reports whether the initial sync pass has completed.
func (e *Engine) IsReady() bool {
	return e.ready.Load()
}

func (e *Engine) run(ctx context.Context) {
	e.syncAll(ctx)
	e.ready.Store(true)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.syncAll(ctx)
		}
	}
}

// syncAll runs one pass over every configured device. A device failure is
// logged and does not stop the pass.
func (e *Engine) syncAll(ctx context.Context) {
	devs, err := e.devices.ListDevices(ctx)
	if err != nil {
		e.logger.Error("Failed to list devices", zap.Error(err))
		metrics.ErrorsTotal.WithLabelValues("engine", "list_devices").Inc()
		return
	}

	for _, dev := range devs {
		if _, err := e.syncOne(ctx, dev); err != nil {
			e.logger.Error("Device sync failed",
				zap.String("device", dev.Name), zap.Error(err))
			metrics.ErrorsTotal.WithLabelValues("engine", "sync").Inc()
		}
	}

	e.updateGauges(ctx)
}

// SyncDeviceByID triggers one sync for a single device, serialized with
// the ticker loop.
func (e *Engine) SyncDeviceByID(ctx context.Context, id int64) (*Result, error) {
	dev, err := e.devices.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.syncOne(ctx, dev)
}

// SyncUsersByID triggers one user-table download for a single device.
func (e *Engine) SyncUsersByID(ctx context.Context, id int64) (*UserSyncResult, error) {
	dev, err := e.devices.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	mu := e.lockFor(dev.ID)
	if !mu.TryLock() {
		return nil, fmt.Errorf("%w: device %d", ErrSyncInProgress, dev.ID)
	}
	defer mu.Unlock()

	return e.syncer.SyncUsers(ctx, dev)
}

// PurgeByID clears the ledger's punch log for one device, subject to the
// syncer's non-empty-device-log precondition.
func (e *Engine) PurgeByID(ctx context.Context, id int64) (int64, error) {
	dev, err := e.devices.GetDevice(ctx, id)
	if err != nil {
		return 0, err
	}

	mu := e.lockFor(dev.ID)
	if !mu.TryLock() {
		return 0, fmt.Errorf("%w: device %d", ErrSyncInProgress, dev.ID)
	}
	defer mu.Unlock()

	return e.syncer.Purge(ctx, dev)
}

func (e *Engine) syncOne(ctx context.Context, dev *device.Device) (*Result, error) {
	mu := e.lockFor(dev.ID)
	if !mu.TryLock() {
		return nil, fmt.Errorf("%w: device %d", ErrSyncInProgress, dev.ID)
	}
	defer mu.Unlock()

	return e.syncer.SyncDevice(ctx, dev)
}

func (e *Engine) lockFor(deviceID int64) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(deviceID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (e *Engine) updateGauges(ctx context.Context) {
	open, err := e.ledger.CountOpenIntervals(ctx)
	if err != nil {
		e.logger.Warn("Failed to count open intervals", zap.Error(err))
		return
	}
	metrics.OpenIntervals.Set(float64(open))
}

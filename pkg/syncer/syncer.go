package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clockwork-hr/punchsync/internal/metrics"
	"github.com/clockwork-hr/punchsync/pkg/attendance"
	"github.com/clockwork-hr/punchsync/pkg/attstore"
	"github.com/clockwork-hr/punchsync/pkg/device"
	"github.com/clockwork-hr/punchsync/pkg/devicestore"
	"github.com/clockwork-hr/punchsync/pkg/terminal"
)

// Result summarizes one device sync cycle.
type Result struct {
	RunID      uuid.UUID `json:"run_id"`
	DeviceID   int64     `json:"device_id"`
	Fetched    int       `json:"fetched"`
	Ingested   int       `json:"ingested"`
	Skipped    int       `json:"skipped"`
	Duplicates int       `json:"duplicates"`
	Errors     int       `json:"errors"`
}

// UserSyncResult summarizes one user-table download.
type UserSyncResult struct {
	RunID    uuid.UUID `json:"run_id"`
	DeviceID int64     `json:"device_id"`
	Fetched  int       `json:"fetched"`
	Upserted int       `json:"upserted"`
}

// Syncer pulls punch logs from terminals and folds them into the ledger.
// A single Syncer serves all devices; callers must serialize concurrent
// syncs of the same device (the Engine does this with per-device locks).
type Syncer struct {
	dialer  terminal.Dialer
	devices devicestore.Store
	ledger  attstore.Store
	logger  *zap.Logger
}

// NewSyncer creates a new device syncer. The dialer is a required
// capability: a nil dialer is a construction error.
func NewSyncer(dialer terminal.Dialer, devices devicestore.Store, ledger attstore.Store, logger *zap.Logger) (*Syncer, error) {
	if dialer == nil {
		return nil, fmt.Errorf("terminal dialer is required")
	}
	return &Syncer{
		dialer:  dialer,
		devices: devices,
		ledger:  ledger,
		logger:  logger,
	}, nil
}

// SyncDevice pulls the device's full punch log once and processes every
// record in delivery order. Connection and fetch failures are terminal for
// the cycle; per-record problems are counted and skipped. An empty log is
// a healthy no-op.
func (s *Syncer) SyncDevice(ctx context.Context, dev *device.Device) (*Result, error) {
	res := &Result{RunID: uuid.New(), DeviceID: dev.ID}
	logger := s.logger.With(
		zap.String("device", dev.Name),
		zap.String("run_id", res.RunID.String()))

	started := time.Now()
	defer func() {
		metrics.SyncDuration.WithLabelValues(dev.Name).Observe(time.Since(started).Seconds())
	}()

	sess, err := s.connect(ctx, dev)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sess.Disconnect(); err != nil {
			logger.Warn("Failed to disconnect from device", zap.Error(err))
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, dev.Timeout)
	defer cancel()
	punches, err := sess.Punches(fetchCtx)
	if err != nil {
		metrics.DeviceUp.WithLabelValues(dev.Name).Set(0)
		return nil, fmt.Errorf("%w: fetch punch log from %s: %v", ErrDeviceUnreachable, dev.Host, err)
	}
	res.Fetched = len(punches)

	if len(punches) == 0 {
		logger.Info("Device punch log is empty, nothing to sync")
		metrics.LastSyncTimestamp.WithLabelValues(dev.Name).SetToCurrentTime()
		return res, nil
	}

	loc, err := deviceLocation(dev)
	if err != nil {
		return nil, err
	}

	norm := NewNormalizer(dev, loc, s.devices)

	// Strict delivery order: the reconciler's decision for each record
	// depends on the ledger state left by the previous one.
	for _, raw := range punches {
		if err := s.processPunch(ctx, norm, dev, raw, res, logger); err != nil {
			// Record-granular failure: count it, keep going. Only
			// transport loss aborts the cycle.
			res.Errors++
			metrics.ErrorsTotal.WithLabelValues("syncer", "record").Inc()
			logger.Error("Failed to process punch record",
				zap.String("device_user_id", raw.UserID),
				zap.Time("timestamp", raw.Timestamp),
				zap.Error(err))
		}
	}

	metrics.LastSyncTimestamp.WithLabelValues(dev.Name).SetToCurrentTime()
	logger.Info("Device sync complete",
		zap.Int("fetched", res.Fetched),
		zap.Int("ingested", res.Ingested),
		zap.Int("skipped", res.Skipped),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("errors", res.Errors))

	return res, nil
}

func (s *Syncer) processPunch(
	ctx context.Context,
	norm *Normalizer,
	dev *device.Device,
	raw terminal.RawPunch,
	res *Result,
	logger *zap.Logger,
) error {
	ev, verdict, err := norm.Normalize(ctx, raw)
	if err != nil {
		return err
	}
	if verdict != VerdictOK {
		res.Skipped++
		metrics.PunchesSkipped.WithLabelValues(dev.Name, verdict.String()).Inc()
		return nil
	}

	// Read-only dedup check first; the insert below re-checks atomically
	// via the unique index.
	exists, err := s.ledger.EntryExists(ctx, ev.EmployeeID, ev.PunchingTime)
	if err != nil {
		return err
	}
	if exists {
		res.Duplicates++
		metrics.PunchesDuplicate.WithLabelValues(dev.Name).Inc()
		return nil
	}

	entry := &attendance.LogEntry{
		EmployeeID:     ev.EmployeeID,
		DeviceUserID:   ev.DeviceUserID,
		DeviceID:       ev.DeviceID,
		PunchingTime:   ev.PunchingTime,
		PunchDate:      ev.PunchDate,
		PunchType:      ev.PunchType,
		AttendanceType: ev.AttendanceType,
		Workplace:      ev.Workplace,
	}
	// The log insert and the interval transition commit or roll back as
	// one unit: the insert claims the dedup key, so a punch whose row is
	// committed has always had its interval transition applied.
	err = s.ledger.RunInTx(ctx, func(ctx context.Context, tx attstore.Store) error {
		if err := tx.InsertLogEntry(ctx, entry); err != nil {
			return err
		}
		return NewReconciler(tx, logger).Apply(ctx, ev)
	})
	if err != nil {
		if errors.Is(err, attstore.ErrDuplicateEntry) {
			res.Duplicates++
			metrics.PunchesDuplicate.WithLabelValues(dev.Name).Inc()
			return nil
		}
		return err
	}

	res.Ingested++
	metrics.PunchesIngested.WithLabelValues(dev.Name).Inc()
	return nil
}

// SyncUsers downloads the terminal's enrolled-user table and upserts the
// device-user mapping rows. Employee links are never touched here.
func (s *Syncer) SyncUsers(ctx context.Context, dev *device.Device) (*UserSyncResult, error) {
	res := &UserSyncResult{RunID: uuid.New(), DeviceID: dev.ID}
	logger := s.logger.With(
		zap.String("device", dev.Name),
		zap.String("run_id", res.RunID.String()))

	sess, err := s.connect(ctx, dev)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sess.Disconnect(); err != nil {
			logger.Warn("Failed to disconnect from device", zap.Error(err))
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, dev.Timeout)
	defer cancel()
	users, err := sess.Users(fetchCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch user table from %s: %v", ErrDeviceUnreachable, dev.Host, err)
	}
	res.Fetched = len(users)

	for _, u := range users {
		usr := &device.User{
			DeviceID:  dev.ID,
			UserID:    u.UserID,
			Name:      u.Name,
			Privilege: u.Privilege,
			GroupID:   u.GroupID,
		}
		if err := s.devices.UpsertUser(ctx, usr); err != nil {
			logger.Error("Failed to upsert device user",
				zap.String("user_id", u.UserID), zap.Error(err))
			continue
		}
		res.Upserted++
		metrics.UsersDownloaded.WithLabelValues(dev.Name).Inc()
	}

	logger.Info("Device user download complete",
		zap.Int("fetched", res.Fetched),
		zap.Int("upserted", res.Upserted))
	return res, nil
}

// Purge deletes every punch-log row ingested from the device. It refuses
// to run unless the device is reachable and its on-device log is
// non-empty.
func (s *Syncer) Purge(ctx context.Context, dev *device.Device) (int64, error) {
	sess, err := s.connect(ctx, dev)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := sess.Disconnect(); err != nil {
			s.logger.Warn("Failed to disconnect from device",
				zap.String("device", dev.Name), zap.Error(err))
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, dev.Timeout)
	defer cancel()
	punches, err := sess.Punches(fetchCtx)
	if err != nil {
		return 0, fmt.Errorf("%w: fetch punch log from %s: %v", ErrDeviceUnreachable, dev.Host, err)
	}
	if len(punches) == 0 {
		return 0, ErrEmptyLog
	}

	purged, err := s.ledger.PurgeEntriesByDevice(ctx, dev.ID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Purged device punch log",
		zap.String("device", dev.Name),
		zap.Int64("rows", purged))
	return purged, nil
}

func (s *Syncer) connect(ctx context.Context, dev *device.Device) (terminal.Session, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dev.Timeout)
	defer cancel()

	sess, err := s.dialer.Dial(dialCtx, dev.DialConfig())
	if err != nil {
		metrics.DeviceUp.WithLabelValues(dev.Name).Set(0)
		return nil, fmt.Errorf("%w: dial %s:%d: %v", ErrDeviceUnreachable, dev.Host, dev.Port, err)
	}
	metrics.DeviceUp.WithLabelValues(dev.Name).Set(1)
	return sess, nil
}

// deviceLocation resolves the timezone the device's wall clock reports in.
// Defaults to GMT when unset, matching terminals shipped without timezone
// configuration.
func deviceLocation(dev *device.Device) (*time.Location, error) {
	name := dev.Timezone
	if name == "" {
		name = "GMT"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q for device %s: %w", name, dev.Name, err)
	}
	return loc, nil
}

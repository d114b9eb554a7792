package syncd

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/clockwork-hr/punchsync/pkg/config"
	"github.com/clockwork-hr/punchsync/pkg/device"
	"github.com/clockwork-hr/punchsync/pkg/devicestore"
)

// seedEntry is one device in the YAML seed file.
type seedEntry struct {
	Name        string `yaml:"name"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Password    string `yaml:"password"`
	Timezone    string `yaml:"timezone"`
	Workplace   string `yaml:"workplace"`
	SyncHorizon string `yaml:"sync_horizon"` // RFC 3339 or YYYY-MM-DD, optional
}

type seedFile struct {
	Devices []seedEntry `yaml:"devices"`
}

// parseHorizon accepts a full RFC 3339 instant or a bare date, which is
// read as midnight UTC.
func parseHorizon(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}

// SeedDevices upserts the devices listed in a YAML file, keyed by
// host:port. Existing rows are updated, never duplicated, so the file can
// be re-applied on every start.
func SeedDevices(ctx context.Context, path string, syncCfg config.SyncConfig, devices devicestore.Store, logger *zap.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read device file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse device file: %w", err)
	}

	for i, entry := range file.Devices {
		if entry.Host == "" {
			return fmt.Errorf("device %d: host is required", i)
		}

		dev := &device.Device{
			Name:      entry.Name,
			Host:      entry.Host,
			Port:      entry.Port,
			Password:  entry.Password,
			Timezone:  entry.Timezone,
			Workplace: entry.Workplace,
			Timeout:   syncCfg.DeviceTimeout,
		}
		if dev.Name == "" {
			dev.Name = entry.Host
		}
		if dev.Port == 0 {
			dev.Port = syncCfg.DefaultPort
		}
		if entry.SyncHorizon != "" {
			horizon, err := parseHorizon(entry.SyncHorizon)
			if err != nil {
				return fmt.Errorf("device %q: invalid sync_horizon: %w", dev.Name, err)
			}
			dev.SyncHorizon = &horizon
		}

		if err := devices.UpsertDevice(ctx, dev); err != nil {
			return fmt.Errorf("upsert device %q: %w", dev.Name, err)
		}
		logger.Info("Seeded device",
			zap.String("name", dev.Name),
			zap.String("host", dev.Host),
			zap.Int("port", dev.Port))
	}

	return nil
}

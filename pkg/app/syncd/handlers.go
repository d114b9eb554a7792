package syncd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clockwork-hr/punchsync/pkg/attendance"
	"github.com/clockwork-hr/punchsync/pkg/attstore"
	"github.com/clockwork-hr/punchsync/pkg/device"
	"github.com/clockwork-hr/punchsync/pkg/devicestore"
	"github.com/clockwork-hr/punchsync/pkg/syncer"
)

func writeJSON(w http.ResponseWriter, logger *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

type deviceResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Timezone  string `json:"timezone"`
	Workplace string `json:"workplace,omitempty"`
}

func toDeviceResponse(dev *device.Device) deviceResponse {
	return deviceResponse{
		ID:        dev.ID,
		Name:      dev.Name,
		Host:      dev.Host,
		Port:      dev.Port,
		Timezone:  dev.Timezone,
		Workplace: dev.Workplace,
	}
}

func handleListDevices(devices devicestore.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		devs, err := devices.ListDevices(r.Context())
		if err != nil {
			logger.Error("Failed to list devices", zap.Error(err))
			http.Error(w, "failed to list devices", http.StatusInternalServerError)
			return
		}

		out := make([]deviceResponse, 0, len(devs))
		for _, dev := range devs {
			out = append(out, toDeviceResponse(dev))
		}
		writeJSON(w, logger, map[string]any{"devices": out})
	}
}

// syncStatus maps a trigger failure to an HTTP status.
func syncStatus(err error) int {
	switch {
	case errors.Is(err, devicestore.ErrDeviceNotFound):
		return http.StatusNotFound
	case errors.Is(err, syncer.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, syncer.ErrDeviceUnreachable):
		return http.StatusBadGateway
	case errors.Is(err, syncer.ErrEmptyLog):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

func handleSyncDevice(engine *syncer.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			http.Error(w, "invalid device id", http.StatusBadRequest)
			return
		}

		res, err := engine.SyncDeviceByID(r.Context(), id)
		if err != nil {
			logger.Error("Manual sync failed", zap.Int64("device_id", id), zap.Error(err))
			http.Error(w, err.Error(), syncStatus(err))
			return
		}
		writeJSON(w, logger, res)
	}
}

func handleSyncUsers(engine *syncer.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			http.Error(w, "invalid device id", http.StatusBadRequest)
			return
		}

		res, err := engine.SyncUsersByID(r.Context(), id)
		if err != nil {
			logger.Error("User sync failed", zap.Int64("device_id", id), zap.Error(err))
			http.Error(w, err.Error(), syncStatus(err))
			return
		}
		writeJSON(w, logger, res)
	}
}

func handlePurge(engine *syncer.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			http.Error(w, "invalid device id", http.StatusBadRequest)
			return
		}

		purged, err := engine.PurgeByID(r.Context(), id)
		if err != nil {
			logger.Error("Purge failed", zap.Int64("device_id", id), zap.Error(err))
			http.Error(w, err.Error(), syncStatus(err))
			return
		}

		logger.Info("Punch log purged", zap.Int64("device_id", id), zap.Int64("rows", purged))
		writeJSON(w, logger, map[string]any{"purged": purged})
	}
}

type intervalResponse struct {
	ID          int64      `json:"id"`
	EmployeeID  int64      `json:"employee_id"`
	CheckIn     time.Time  `json:"check_in"`
	CheckOut    *time.Time `json:"check_out,omitempty"`
	CheckInDate string     `json:"check_in_date"`
	WorkedHours string     `json:"worked_hours"`
	Open        bool       `json:"open"`
}

func toIntervalResponse(iv *attendance.Interval) intervalResponse {
	return intervalResponse{
		ID:          iv.ID,
		EmployeeID:  iv.EmployeeID,
		CheckIn:     iv.CheckIn,
		CheckOut:    iv.CheckOut,
		CheckInDate: iv.CheckInDate.Format("2006-01-02"),
		WorkedHours: iv.WorkedHours().String(),
		Open:        iv.Open(),
	}
}

func handleListIntervals(ledger attstore.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			http.Error(w, "invalid employee id", http.StatusBadRequest)
			return
		}

		intervals, err := ledger.ListIntervalsByEmployee(r.Context(), id, defaultListLimit)
		if err != nil {
			logger.Error("Failed to list intervals", zap.Int64("employee_id", id), zap.Error(err))
			http.Error(w, "failed to list intervals", http.StatusInternalServerError)
			return
		}

		out := make([]intervalResponse, 0, len(intervals))
		for _, iv := range intervals {
			out = append(out, toIntervalResponse(iv))
		}
		writeJSON(w, logger, map[string]any{"intervals": out})
	}
}

type punchResponse struct {
	ID             int64     `json:"id"`
	EmployeeID     int64     `json:"employee_id"`
	DeviceID       int64     `json:"device_id"`
	PunchingTime   time.Time `json:"punching_time"`
	PunchDate      string    `json:"punch_date"`
	PunchType      string    `json:"punch_type"`
	AttendanceType string    `json:"attendance_type"`
	Workplace      string    `json:"workplace,omitempty"`
}

func handleListPunches(ledger attstore.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			http.Error(w, "invalid employee id", http.StatusBadRequest)
			return
		}

		entries, err := ledger.ListEntriesByEmployee(r.Context(), id, defaultListLimit)
		if err != nil {
			logger.Error("Failed to list punches", zap.Int64("employee_id", id), zap.Error(err))
			http.Error(w, "failed to list punches", http.StatusInternalServerError)
			return
		}

		out := make([]punchResponse, 0, len(entries))
		for _, e := range entries {
			out = append(out, punchResponse{
				ID:             e.ID,
				EmployeeID:     e.EmployeeID,
				DeviceID:       e.DeviceID,
				PunchingTime:   e.PunchingTime,
				PunchDate:      e.PunchDate.Format("2006-01-02"),
				PunchType:      e.PunchType.String(),
				AttendanceType: e.AttendanceType.String(),
				Workplace:      e.Workplace,
			})
		}
		writeJSON(w, logger, map[string]any{"punches": out})
	}
}

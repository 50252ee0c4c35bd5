package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/brojonat/txfeed/service/activity"
	"github.com/brojonat/txfeed/service/config"
	"github.com/brojonat/txfeed/service/reconcile"
	"github.com/brojonat/txfeed/service/solana"
	"github.com/brojonat/txfeed/service/temporal"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxAddressLength   = 100     // base58 public keys are at most 44 chars
	maxPollInterval    = 24 * time.Hour
)

type activitiesResponse struct {
	Address    string              `json:"address"`
	Count      int                 `json:"count"`
	Activities []activity.Activity `json:"activities"`
}

type reconcileResponse struct {
	PassID      string                  `json:"pass_id"`
	Address     string                  `json:"address"`
	Listed      int                     `json:"listed"`
	Fetched     int                     `json:"fetched"`
	Orders      int                     `json:"orders"`
	Total       int                     `json:"total"`
	Changes     []activity.StatusChange `json:"changes"`
	PatchErrors int                     `json:"patch_errors"`
	DurationMS  int64                   `json:"duration_ms"`
}

type scheduleResponse struct {
	Address      string `json:"address"`
	PollInterval string `json:"poll_interval"`
}

// handleGetActivities returns the merged timeline of an address, newest first.
// GET /api/v1/activities/{address}
func handleGetActivities(service ActivityService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			logger.DebugContext(r.Context(), "invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		list, err := service.GetMergedActivities(r.Context(), address)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to load activities", "address", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []activity.Activity{}
		}

		writeJSON(w, activitiesResponse{
			Address:    address,
			Count:      len(list),
			Activities: list,
		}, http.StatusOK)
	})
}

// handleReconcile runs a reconciliation pass for the address and reports its outcome.
// POST /api/v1/activities/{address}/reconcile
func handleReconcile(service ActivityService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			logger.DebugContext(r.Context(), "invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		res, err := service.Run(r.Context(), address)
		switch {
		case errors.Is(err, activity.ErrInvalidAddress):
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		case errors.Is(err, reconcile.ErrPassAbandoned):
			logger.WarnContext(r.Context(), "reconciliation pass abandoned", "address", address)
			writeError(w, "reconciliation abandoned before commit", http.StatusServiceUnavailable)
			return
		case err != nil:
			logger.ErrorContext(r.Context(), "reconciliation pass failed", "address", address, "error", err)
			writeError(w, "reconciliation failed", http.StatusBadGateway)
			return
		}

		changes := res.Changes
		if changes == nil {
			changes = []activity.StatusChange{}
		}
		writeJSON(w, reconcileResponse{
			PassID:      res.PassID,
			Address:     res.Address,
			Listed:      res.Listed,
			Fetched:     res.Fetched,
			Orders:      res.Orders,
			Total:       res.Total,
			Changes:     changes,
			PatchErrors: res.PatchErrors,
			DurationMS:  res.Duration.Milliseconds(),
		}, http.StatusOK)
	})
}

// handleCreateSchedule creates or updates the timer-driven passes of an address.
// POST /api/v1/schedules
func handleCreateSchedule(scheduler temporal.Scheduler, cfg *config.Config, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req struct {
			Address      string `json:"address"`
			PollInterval string `json:"poll_interval"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.DebugContext(r.Context(), "failed to decode schedule request", "error", err)
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		if err := validateAddress(req.Address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		interval := cfg.DefaultPollInterval
		if req.PollInterval != "" {
			d, err := time.ParseDuration(req.PollInterval)
			if err != nil {
				writeError(w, "invalid poll_interval: must be a duration like 30s", http.StatusBadRequest)
				return
			}
			interval = d
		}
		if err := validatePollInterval(interval, cfg.MinPollInterval); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := scheduler.UpsertReconcileSchedule(r.Context(), req.Address, interval); err != nil {
			logger.ErrorContext(r.Context(), "failed to upsert schedule", "address", req.Address, "error", err)
			writeError(w, "failed to create schedule", http.StatusInternalServerError)
			return
		}

		logger.InfoContext(r.Context(), "reconcile schedule upserted", "address", req.Address, "poll_interval", interval)
		writeJSON(w, scheduleResponse{Address: req.Address, PollInterval: interval.String()}, http.StatusCreated)
	})
}

// handleDeleteSchedule stops the timer-driven passes of an address.
// DELETE /api/v1/schedules/{address}
func handleDeleteSchedule(scheduler temporal.Scheduler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := scheduler.DeleteReconcileSchedule(r.Context(), address); err != nil {
			logger.ErrorContext(r.Context(), "failed to delete schedule", "address", address, "error", err)
			writeError(w, "failed to delete schedule", http.StatusInternalServerError)
			return
		}

		logger.InfoContext(r.Context(), "reconcile schedule deleted", "address", address)
		w.WriteHeader(http.StatusNoContent)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress rejects empty, oversized, or non-base58 addresses before
// they reach RPC or storage.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}
	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}
	for _, r := range address {
		if r == 0 || unicode.IsControl(r) || unicode.IsSpace(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}
	if err := solana.ValidateAddress(address); err != nil {
		return errorf("invalid address format: %s", strings.TrimPrefix(err.Error(), activity.ErrInvalidAddress.Error()+": "))
	}
	return nil
}

func validatePollInterval(interval, minInterval time.Duration) error {
	if interval < minInterval {
		return errorf("poll_interval too short: minimum is %s", minInterval)
	}
	if interval > maxPollInterval {
		return errorf("poll_interval too long: maximum is %s", maxPollInterval)
	}
	return nil
}

// validationError is a client-facing validation failure.
type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}

func errorf(format string, args ...interface{}) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

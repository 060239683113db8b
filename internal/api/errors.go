package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/smarthome-core/internal/bridge"
	"github.com/nerrad567/smarthome-core/internal/device"
	"github.com/nerrad567/smarthome-core/internal/location"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
	ErrCodeDeviceIO       = "device_unreachable"
	ErrCodeDeviceTimeout  = "device_timeout"
	ErrCodeUnavailable    = "unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps registry and device errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	writeError(w, status, code, message)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, location.ErrRoomNotFound),
		errors.Is(err, location.ErrDeviceNotFound):
		return http.StatusNotFound, ErrCodeNotFound

	case errors.Is(err, location.ErrDuplicateRoomName),
		errors.Is(err, location.ErrDuplicateDeviceName),
		errors.Is(err, location.ErrRoomFull):
		return http.StatusConflict, ErrCodeConflict

	case errors.Is(err, location.ErrInvalidName),
		errors.Is(err, location.ErrInvalidCapacity),
		errors.Is(err, device.ErrInvalidName),
		errors.Is(err, device.ErrUnknownKind),
		errors.Is(err, bridge.ErrNotSwitchable):
		return http.StatusBadRequest, ErrCodeValidation

	case errors.Is(err, device.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeDeviceTimeout

	case errors.Is(err, device.ErrDeviceIO),
		errors.Is(err, device.ErrListen),
		errors.Is(err, device.ErrClosed):
		return http.StatusBadGateway, ErrCodeDeviceIO

	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

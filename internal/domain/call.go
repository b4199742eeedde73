// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrDeviceIDEmpty = errors.New("device id empty")
	ErrUnknownMode   = errors.New("unknown call mode")
)

type (
	// PeerID is the relay-assigned identifier of the remote endpoint.
	// Learned when the device signals readiness, empty before that.
	PeerID string

	// DeviceID names the dashcam the console calls.
	DeviceID string

	// SessionID identifies one call session. A fresh one is minted per
	// call so late callbacks from a torn-down session can be recognized.
	SessionID string
)

// CallMode is fixed for the lifetime of a session.
type CallMode string

const (
	ModeAudio CallMode = "audio"
	ModeVideo CallMode = "video"
)

func (m CallMode) Valid() bool {
	return m == ModeAudio || m == ModeVideo
}

// NewSessionID mints an identifier for a new call session.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// NewDeviceID validates the configured target device name.
func NewDeviceID(raw string) (DeviceID, error) {
	if raw == "" {
		return "", ErrDeviceIDEmpty
	}
	return DeviceID(raw), nil
}

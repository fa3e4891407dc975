package monitor

import "errors"

var (
	// ErrDeviceIDRequired is returned when an alert is created without a
	// device id.
	ErrDeviceIDRequired = errors.New("device id is required")

	// ErrInvalidLevel is returned when an alert is created with an
	// undefined severity level.
	ErrInvalidLevel = errors.New("invalid alert level")

	// ErrNoAlertIDs is returned when a batch resolve is called with no ids.
	ErrNoAlertIDs = errors.New("alert id list is empty")
)

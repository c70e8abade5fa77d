package cloud

import "errors"

var (
	// ErrAdapterUnavailable means the Bluetooth adapter is absent or its state
	// cannot be read.
	ErrAdapterUnavailable = errors.New("cloud: bluetooth adapter unavailable")
	// ErrAdapterNotPoweredOn means a scan was requested while the adapter is
	// off or still initializing. Check again once it is powered on.
	ErrAdapterNotPoweredOn = errors.New("cloud: bluetooth adapter is not powered on")
	ErrScanFailed          = errors.New("cloud: scan failed")
	ErrNoDevice            = errors.New("cloud: no device connected")
	ErrUnknownCloud        = errors.New("cloud: unknown cloud")
	ErrPermissionDenied    = errors.New("cloud: bluetooth permission denied")
	ErrLinkLost            = errors.New("cloud: connection lost")
	ErrEmptyName           = errors.New("cloud: name must not be empty")
	ErrClosed              = errors.New("cloud: manager is shut down")
)

// IsRetryable reports whether err is worth retrying after the user checks the
// adapter again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAdapterNotPoweredOn)
}

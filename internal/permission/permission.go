// Package permission implements the runtime permission gate that must pass
// before Bluetooth scanning on Android. Every other platform is authorized
// unconditionally.
package permission

import (
	"context"
	"log/slog"
)

// Permission is an Android runtime permission name.
type Permission string

const (
	FineLocation     Permission = "android.permission.ACCESS_FINE_LOCATION"
	CoarseLocation   Permission = "android.permission.ACCESS_COARSE_LOCATION"
	BluetoothScan    Permission = "android.permission.BLUETOOTH_SCAN"
	BluetoothConnect Permission = "android.permission.BLUETOOTH_CONNECT"
)

// Result is the outcome of a permission request.
type Result string

const (
	Granted       Result = "granted"
	Denied        Result = "denied"
	NeverAskAgain Result = "never_ask_again"
)

// MobileOS is the only OS where the gate consults the platform.
const MobileOS = "android"

// BluetoothPermissionsSDK is the first Android SDK level (12) with the
// separate BLUETOOTH_SCAN and BLUETOOTH_CONNECT permissions.
const BluetoothPermissionsSDK = 31

// Platform abstracts the OS permission API for testing.
type Platform interface {
	// OS returns the platform name, e.g. "android" or "linux".
	OS() string
	// Version returns the OS API level.
	Version() (int, error)
	// Check reports whether p is already granted.
	Check(ctx context.Context, p Permission) (bool, error)
	// RequestMultiple asks for all perms at once. It may prompt the user.
	RequestMultiple(ctx context.Context, perms []Permission) (map[Permission]Result, error)
}

// Required returns the permissions needed for BLE at the given SDK level.
func Required(version int) []Permission {
	perms := []Permission{FineLocation, CoarseLocation}
	if version >= BluetoothPermissionsSDK {
		perms = append(perms, BluetoothScan, BluetoothConnect)
	}
	return perms
}

// Gate decides whether Bluetooth may be used.
type Gate struct {
	platform Platform
}

// NewGate creates a Gate backed by platform.
func NewGate(platform Platform) *Gate {
	return &Gate{platform: platform}
}

// Authorize checks the required permissions and, if any is missing, requests
// all of them together. It returns true only when every required permission
// ends up granted. Non-mobile platforms are always authorized. Errors are
// logged and yield false; there is no retry.
func (g *Gate) Authorize(ctx context.Context) bool {
	if g.platform.OS() != MobileOS {
		return true
	}

	version, err := g.platform.Version()
	if err != nil {
		slog.Warn("[PERM] read OS version failed", "error", err)
		return false
	}
	required := Required(version)

	missing := false
	for _, p := range required {
		ok, err := g.platform.Check(ctx, p)
		if err != nil {
			slog.Warn("[PERM] check failed", "permission", p, "error", err)
			return false
		}
		if !ok {
			missing = true
		}
	}
	if !missing {
		slog.Debug("[PERM] all permissions already granted", "sdk", version)
		return true
	}

	if version >= BluetoothPermissionsSDK {
		slog.Debug("[PERM] requesting bluetooth permissions", "sdk", version)
	}
	results, err := g.platform.RequestMultiple(ctx, required)
	if err != nil {
		slog.Warn("[PERM] request failed", "error", err)
		return false
	}
	for _, p := range required {
		if results[p] != Granted {
			slog.Info("[PERM] permission not granted", "permission", p, "result", results[p])
			return false
		}
	}
	return true
}

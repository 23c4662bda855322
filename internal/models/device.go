package models

import "strings"

// DeviceType is the kind of client a connection was opened from.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceWeb     DeviceType = "web"
	DeviceUnknown DeviceType = "unknown"
)

// ParseDeviceType lower-cases the raw value. Unrecognised kinds are kept
// as-is so newer clients can still register; only an empty value maps to
// DeviceUnknown.
func ParseDeviceType(raw string) DeviceType {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return DeviceUnknown
	}
	return DeviceType(v)
}

// Known reports whether the device type is one of the built-in kinds.
func (d DeviceType) Known() bool {
	switch d {
	case DeviceDesktop, DeviceMobile, DeviceWeb:
		return true
	}
	return false
}

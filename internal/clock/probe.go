package clock

import "os"

// Probe reports whether a hardware clock source is actually usable. A source
// is selected only when it is both declared by configuration and probed
// available; declaration alone is never trusted.
type Probe interface {
	Available(source Source) bool
}

// DeviceProbe checks for the device nodes hardware sources expose. This is
// the software contract real GPS/PTP drivers must satisfy; no register-level
// access happens here.
type DeviceProbe struct {
	PTPDevice string
	GPSDevice string
}

func (p DeviceProbe) Available(source Source) bool {
	var path string
	switch source {
	case SourcePTP:
		path = p.PTPDevice
	case SourceGPS:
		path = p.GPSDevice
	case SourceSystem:
		return true
	}
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// staticProbe is a test double with a fixed answer per source.
type staticProbe map[Source]bool

func (p staticProbe) Available(s Source) bool { return p[s] }

// Package env describes the build environment (target platform and
// architecture) and expands ${...} template variables in configured values.
package env

import (
	"fmt"
	"runtime"
)

// Platform identifies the packaging target operating system.
type Platform uint8

const (
	Linux Platform = iota
	Windows
	Darwin
)

// Node returns the platform tag as used by the Node.js ecosystem.
func (p Platform) Node() string {
	switch p {
	case Windows:
		return "win32"
	case Darwin:
		return "darwin"
	default:
		return "linux"
	}
}

// Key returns the configuration section key for the platform.
func (p Platform) Key() string {
	switch p {
	case Windows:
		return "win"
	case Darwin:
		return "mac"
	default:
		return "linux"
	}
}

// ParsePlatform converts a Node.js platform tag.
func ParsePlatform(s string) (Platform, error) {
	switch s {
	case "linux":
		return Linux, nil
	case "win32", "win", "windows":
		return Windows, nil
	case "darwin", "mac", "macos":
		return Darwin, nil
	default:
		return 0, fmt.Errorf("unknown platform %q", s)
	}
}

// Arch identifies the packaging target CPU architecture.
type Arch uint8

const (
	X64 Arch = iota
	IA32
	Arm64
	Arm
)

// Node returns the architecture tag as used by the Node.js ecosystem.
func (a Arch) Node() string {
	switch a {
	case IA32:
		return "ia32"
	case Arm64:
		return "arm64"
	case Arm:
		return "arm"
	default:
		return "x64"
	}
}

// ParseArch converts a Node.js architecture tag.
func ParseArch(s string) (Arch, error) {
	switch s {
	case "x64", "amd64":
		return X64, nil
	case "ia32", "386":
		return IA32, nil
	case "arm64":
		return Arm64, nil
	case "arm":
		return Arm, nil
	default:
		return 0, fmt.Errorf("unknown architecture %q", s)
	}
}

// Environment is a target platform/architecture pair.
type Environment struct {
	Platform Platform
	Arch     Arch
}

// Host returns the environment of the machine running the build.
func Host() Environment {
	e := Environment{}
	switch runtime.GOOS {
	case "windows":
		e.Platform = Windows
	case "darwin":
		e.Platform = Darwin
	default:
		e.Platform = Linux
	}
	switch runtime.GOARCH {
	case "386":
		e.Arch = IA32
	case "arm64":
		e.Arch = Arm64
	case "arm":
		e.Arch = Arm
	default:
		e.Arch = X64
	}
	return e
}

// Package platform identifies the host the tool runs on and enforces the
// supported operating system family.
package platform

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"
)

// RequiredOS is the only operating system the built-in command sets target.
const RequiredOS = "windows"

// ErrUnsupportedOS is returned by Check on any other operating system.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// HostInfo describes the machine the evidence was collected on.
type HostInfo struct {
	Hostname        string    `json:"hostname"`
	OS              string    `json:"os"`
	Platform        string    `json:"platform,omitempty"`
	PlatformVersion string    `json:"platform_version,omitempty"`
	KernelVersion   string    `json:"kernel_version,omitempty"`
	KernelArch      string    `json:"kernel_arch,omitempty"`
	BootTime        time.Time `json:"boot_time,omitzero"`
}

// Detect reads host metadata. On error the returned HostInfo still carries
// the compile-time OS so that Check remains meaningful.
func Detect(ctx context.Context) (HostInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return HostInfo{OS: runtime.GOOS}, fmt.Errorf("read host info: %w", err)
	}
	hi := HostInfo{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		KernelArch:      info.KernelArch,
	}
	if hi.OS == "" {
		hi.OS = runtime.GOOS
	}
	if info.BootTime > 0 {
		hi.BootTime = time.Unix(int64(info.BootTime), 0).UTC()
	}
	return hi, nil
}

// Check returns ErrUnsupportedOS unless goos is RequiredOS.
func Check(goos string) error {
	if !strings.EqualFold(goos, RequiredOS) {
		return fmt.Errorf("%w: %s (this tool requires %s)", ErrUnsupportedOS, goos, RequiredOS)
	}
	return nil
}

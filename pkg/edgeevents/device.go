package edgeevents

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v4/host"

	apiv1 "github.com/leptonai/edgeprobe/api/v1"
	"github.com/leptonai/edgeprobe/pkg/log"
)

// DefaultDeviceInfo describes the local host for the init message.
// Fields the host does not report stay empty.
func DefaultDeviceInfo(ctx context.Context) *apiv1.DeviceInfo {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		log.Logger.Warnw("failed to read host info", "error", err)
		return &apiv1.DeviceInfo{}
	}

	return &apiv1.DeviceInfo{
		DeviceOS:    strings.TrimSpace(info.OS + " " + info.Platform + " " + info.PlatformVersion),
		DeviceModel: strings.TrimSpace(info.KernelArch + " " + info.VirtualizationSystem),
	}
}

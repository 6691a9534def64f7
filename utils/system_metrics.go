package utils

import (
	"log"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
)

// GetCPUUsage samples total CPU usage over one second and returns the
// percentage. The stats endpoint calls it per request, so the sample cost is
// bounded by that endpoint's traffic. Read failures report as 0 rather than
// failing the stats call.
func GetCPUUsage() float64 {
	percentage, err := cpu.Percent(time.Second, false)
	if err != nil {
		log.Printf("Failed to read CPU usage: %v", err)
		return 0
	}
	if len(percentage) > 0 {
		return percentage[0]
	}
	return 0
}

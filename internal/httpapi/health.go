package httpapi

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// HealthExtra contributes one service-specific field to the health body.
type HealthExtra func() (string, any)

// Health reports liveness plus cheap process stats. The gopsutil probes
// can fail on exotic platforms; those fields are then simply absent.
func Health(service string, extras ...HealthExtra) http.HandlerFunc {
	start := time.Now()
	proc, procErr := process.NewProcess(int32(os.Getpid()))

	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"status":         "ok",
			"service":        service,
			"uptime_seconds": int64(time.Since(start).Seconds()),
			"goroutines":     runtime.NumGoroutine(),
		}
		if procErr == nil {
			if mem, err := proc.MemoryInfo(); err == nil {
				body["memory_rss_mb"] = float64(mem.RSS) / 1024 / 1024
			}
			if cpu, err := proc.CPUPercent(); err == nil {
				body["cpu_percent"] = cpu
			}
		}
		for _, extra := range extras {
			key, value := extra()
			body[key] = value
		}
		writeJSON(w, http.StatusOK, body)
	}
}

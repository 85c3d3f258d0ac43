package monitoring

import (
	"context"
	"runtime"
	"time"

	"serp-similarity/pkg/config"
)

// StartRuntimeMonitor samples runtime and request metrics on an interval and
// calls logf when a threshold from config is crossed. Each alert fires once
// on crossing and once more when it clears. Returns when ctx is done.
func StartRuntimeMonitor(ctx context.Context, cfg *config.Config, m *Metrics, logf func(format string, a ...any)) {
	interval := cfg.AlertSampleEvery
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	active := map[string]bool{}
	check := func(kind string, breached bool, format string, args ...any) {
		switch {
		case breached && !active[kind]:
			logf("ALERT "+format, args...)
			active[kind] = true
		case !breached && active[kind]:
			logf("RESOLVED %s back under threshold", kind)
			active[kind] = false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _, _, p95 := m.Snapshot()
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			goroutines := runtime.NumGoroutine()
			allocMB := float64(ms.Alloc) / (1024 * 1024)
			var gcPauseMs float64
			if ms.NumGC > 0 {
				gcPauseMs = float64(ms.PauseNs[(ms.NumGC+255)%256]) / 1e6
			}

			check("p95", cfg.AlertP95Ms > 0 && p95 > cfg.AlertP95Ms,
				"p95 request duration %.1fms exceeds %.1fms", p95, cfg.AlertP95Ms)
			check("goroutines", cfg.AlertGoroutines > 0 && goroutines > cfg.AlertGoroutines,
				"goroutine count %d exceeds %d", goroutines, cfg.AlertGoroutines)
			check("mem_alloc", cfg.AlertMemAllocMB > 0 && allocMB > cfg.AlertMemAllocMB,
				"heap alloc %.1fMB exceeds %.1fMB", allocMB, cfg.AlertMemAllocMB)
			check("gc_pause", cfg.AlertGCPauseMs > 0 && gcPauseMs > cfg.AlertGCPauseMs,
				"GC pause %.1fms exceeds %.1fms", gcPauseMs, cfg.AlertGCPauseMs)
		}
	}
}

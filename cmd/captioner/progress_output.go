package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"captioner/internal/logging"
	"captioner/internal/progress"
)

// newProgressReporter returns a progress.Func that draws a bar on terminals
// and prints sampled lines elsewhere, plus a func that finishes the output.
func newProgressReporter(w io.Writer, interactive bool) (progress.Func, func()) {
	if !interactive {
		sampler := logging.NewProgressSampler(10)
		var mu sync.Mutex
		return func(ev progress.Event) {
			mu.Lock()
			defer mu.Unlock()
			if sampler.ShouldLog(ev.Percent, string(ev.Phase)) {
				fmt.Fprintf(w, "%-12s %5.1f%%\n", ev.Phase, ev.Percent)
			}
		}, func() {}
	}

	bar := progressbar.NewOptions(1000,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(32),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)
	var (
		mu    sync.Mutex
		phase progress.Phase
	)
	report := func(ev progress.Event) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Phase != phase {
			phase = ev.Phase
			bar.Describe(fmt.Sprintf("%-12s", phase))
		}
		_ = bar.Set(int(ev.Percent * 10))
	}
	finish := func() {
		mu.Lock()
		defer mu.Unlock()
		_ = bar.Finish()
	}
	return report, finish
}

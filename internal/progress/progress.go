package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Indicator renders a one-line progress bar for a pricing run. It is safe to
// call Step from several workers.
type Indicator struct {
	out        io.Writer
	enabled    bool
	message    string
	total      int
	done       int
	failed     int
	startTime  time.Time
	lastUpdate time.Time
	interval   time.Duration
	mu         sync.Mutex
}

// New returns an indicator for total items. A disabled indicator (quiet
// mode) writes nothing.
func New(out io.Writer, message string, total int, enabled bool) *Indicator {
	return &Indicator{
		out:       out,
		enabled:   enabled && out != nil,
		message:   message,
		total:     total,
		startTime: time.Now(),
		interval:  100 * time.Millisecond,
	}
}

// Start prints the header line.
func (p *Indicator) Start() {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.lastUpdate = p.startTime
	fmt.Fprintf(p.out, "%s...\n", p.message)
}

// Step records one finished item and redraws at most every interval, and
// always on the last item.
func (p *Indicator) Step(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if !ok {
		p.failed++
	}
	if !p.enabled {
		return
	}

	now := time.Now()
	if now.Sub(p.lastUpdate) < p.interval && p.done < p.total {
		return
	}
	p.lastUpdate = now
	fmt.Fprintf(p.out, "\r%s", p.render(now))
}

// Counts returns finished and failed item counts.
func (p *Indicator) Counts() (done, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done, p.failed
}

// Finish prints the closing line.
func (p *Indicator) Finish() {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\r%s done: %d items, %d failed in %s\n",
		p.message, p.done, p.failed, formatDuration(time.Since(p.startTime)))
}

func (p *Indicator) render(now time.Time) string {
	if p.total <= 0 {
		return fmt.Sprintf("%s (%d processed, %d failed)", p.message, p.done, p.failed)
	}

	percentage := float64(p.done) / float64(p.total) * 100
	var eta string
	if elapsed := now.Sub(p.startTime); p.done > 0 && p.done < p.total {
		rate := float64(p.done) / elapsed.Seconds()
		remaining := time.Duration(float64(p.total-p.done)/rate) * time.Second
		eta = " ETA: " + formatDuration(remaining)
	}

	return fmt.Sprintf("%s [%s] %d/%d (%.1f%%) %d failed%s",
		p.message, progressBar(percentage), p.done, p.total, percentage, p.failed, eta)
}

func progressBar(percentage float64) string {
	const width = 30
	filled := int(percentage / 100.0 * width)

	var bar strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && percentage < 100:
			bar.WriteString("▓")
		default:
			bar.WriteString("░")
		}
	}
	return bar.String()
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

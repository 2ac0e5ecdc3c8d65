package main

import (
	"os"
	"sync"
	"time"

	"github.com/franz/playlist-janitor/internal/util"
	"github.com/schollz/progressbar/v3"
)

// progressBar renders util.Progress updates on stderr. Off a terminal, or
// with --quiet, it only logs at debug level.
type progressBar struct {
	mu    sync.Mutex
	label string
	bar   *progressbar.ProgressBar
	total int
}

func newProgressBar(label string) *progressBar {
	return &progressBar{label: label}
}

// Func returns the callback to hand to long-running operations
func (p *progressBar) Func() util.ProgressFunc {
	return p.update
}

func (p *progressBar) update(pr util.Progress) {
	if !util.ShowProgressBar() {
		util.DebugLog("%s: %d/%d", p.label, pr.Processed, pr.Total)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil || pr.Total != p.total {
		if p.bar != nil {
			p.bar.Finish()
		}
		p.total = pr.Total
		p.bar = progressbar.NewOptions(pr.Total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(p.label),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	if pr.Stage != "" {
		p.bar.Describe(p.label + " | " + pr.Stage)
	}
	p.bar.Set(pr.Processed)
}

// Finish clears the bar
func (p *progressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}

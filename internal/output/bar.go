package output

import (
	"io"

	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"
)

const barWidth = 60

// IterationBar renders a progress bar over a known number of iterations.
type IterationBar struct {
	progress *mpb.Progress
	bar      *mpb.Bar
}

// NewIterationBar returns a bar that completes after total iterations.
func NewIterationBar(w io.Writer, total int64) *IterationBar {
	p := mpb.New(mpb.WithOutput(w), mpb.WithWidth(barWidth))
	bar := p.AddBar(total,
		mpb.PrependDecorators(
			decor.Name("Iterations "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)
	return &IterationBar{progress: p, bar: bar}
}

// Increment marks one iteration as finished.
func (b *IterationBar) Increment() {
	b.bar.Increment()
}

// Wait flushes the bar. A bar that never completed, because the run was
// cancelled or ended early, is aborted first so Wait does not block.
func (b *IterationBar) Wait() {
	if !b.bar.Completed() {
		b.bar.Abort(false)
	}
	b.progress.Wait()
}

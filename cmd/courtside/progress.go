package main

import (
	"io"
	"sync"

	"github.com/cheggaaa/pb/v3"

	"courtside/internal/workflow"
)

const progressTemplate = `{{ string . "prefix" }} {{ counters . "%s/%s" "%s/?" }} {{ bar . }} {{ percent . "%.01f%%" "?" }} {{ etime . "%s elapsed" }}`

// progressBar renders workflow progress. One bar is shown per stage.
type progressBar struct {
	out io.Writer

	mu    sync.Mutex
	stage string
	bar   *pb.ProgressBar
}

func newProgressBar(out io.Writer) *progressBar {
	return &progressBar{out: out}
}

func (p *progressBar) update(snapshot workflow.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if snapshot.Stage != p.stage {
		p.finishLocked()
		p.stage = snapshot.Stage
		total := snapshot.EstimatedFrames
		prefix := "Sampling frames"
		if snapshot.Stage == workflow.StageSynthesis {
			total = int64(snapshot.BranchesTotal)
			prefix = "Writing reports"
		}
		p.bar = pb.New64(total).
			SetTemplate(pb.ProgressBarTemplate(progressTemplate)).
			SetWriter(p.out).
			Set("prefix", prefix).
			Start()
	}

	switch snapshot.Stage {
	case workflow.StageSynthesis:
		p.bar.SetCurrent(int64(snapshot.BranchesDone))
	default:
		if snapshot.EstimatedFrames > 0 && snapshot.Frames > snapshot.EstimatedFrames {
			p.bar.SetTotal(snapshot.Frames)
		}
		p.bar.SetCurrent(snapshot.Frames)
	}
}

func (p *progressBar) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishLocked()
}

func (p *progressBar) finishLocked() {
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}

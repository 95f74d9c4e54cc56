package workflow

// Stage names reported through Progress.
const (
	StageSampling  = "sampling"
	StageSynthesis = "synthesis"
)

// Progress is a point-in-time snapshot of a run. EstimatedFrames is zero when
// the source cannot report its duration.
type Progress struct {
	Stage           string
	Frames          int64
	EstimatedFrames int64
	BranchesDone    int
	BranchesTotal   int
}

func (r *Runner) progress(p Progress) {
	if r.deps.Progress != nil {
		r.deps.Progress(p)
	}
}

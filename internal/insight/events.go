package insight

// TopicPipelineProgress carries a *ProgressEvent for every pipeline stage
// transition of a session.
const TopicPipelineProgress = "insight.pipeline.progress"

// Stage names a step of the forecast pipeline.
type Stage string

// Pipeline stages in execution order. A request runs either StageFit or
// StageLoadModel.
const (
	StageNormalize Stage = "normalize"
	StageFit       Stage = "fit"
	StageLoadModel Stage = "load_model"
	StageHorizon   Stage = "horizon"
	StagePredict   Stage = "predict"
	StageAnalyze   Stage = "analyze"
	StageDone      Stage = "done"
)

// Progress statuses.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ProgressEvent reports one stage transition.
type ProgressEvent struct {
	SessionID string `json:"session_id"`
	Stage     Stage  `json:"stage"`
	Status    string `json:"status"`
	Step      int    `json:"step"`
	Total     int    `json:"total"`
	Error     string `json:"error,omitempty"`
}

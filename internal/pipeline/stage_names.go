package pipeline

// StageName identifies a pipeline stage.
type StageName string

// Stages in execution order.
const (
	StageDiscover   StageName = "discover"
	StageSynthesize StageName = "synthesize"
	StageBuild      StageName = "build"
	StageCompose    StageName = "compose"
	StageCleanup    StageName = "cleanup"
)

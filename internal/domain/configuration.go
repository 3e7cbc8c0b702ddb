package domain

// Names of the configuration entries read by the dissolution job.
const (
	ConfigNumDissolutionsAllowed = "NUM_DISSOLUTIONS_ALLOWED"
	ConfigDissolutionsOnHold     = "DISSOLUTIONS_ON_HOLD"
	ConfigStage1Schedule         = "DISSOLUTIONS_STAGE_1_SCHEDULE"
	ConfigStage2Schedule         = "DISSOLUTIONS_STAGE_2_SCHEDULE"
	ConfigStage3Schedule         = "DISSOLUTIONS_STAGE_3_SCHEDULE"
	ConfigStage1Delay            = "STAGE_1_DELAY"
	ConfigStage2Delay            = "STAGE_2_DELAY"
)

// Configuration is a named operational parameter managed outside this job.
type Configuration struct {
	Name string
	Val  string
}

package changeset

// Config holds configuration for changeset exports.
type Config struct {
	// Dir is the local directory changeset files are written under.
	Dir string `mapstructure:"dir" default:"./data"`
	// RetentionDays is how long old changeset files are kept before
	// pruning removes them.
	RetentionDays int `mapstructure:"retention_days" default:"7"`
}

package portal

// Config holds configuration for portal access.
type Config struct {
	// ProfilesPath is the JSON file stored portal profiles are read from.
	ProfilesPath string `mapstructure:"profiles_path" default:"./profiles.json"`
	// LogTableURL is a feature-service table that receives sync log
	// events. Empty disables remote logging.
	LogTableURL string `mapstructure:"log_table_url" default:""`
	// LogProfile is the stored profile used to authenticate log table
	// writes. Empty means anonymous access.
	LogProfile string `mapstructure:"log_profile" default:""`
}

package sync

// Config holds the engine defaults applied when a run does not set its own.
type Config struct {
	// ChunkSize is the default records-per-batch cap.
	ChunkSize int `mapstructure:"chunk_size" default:"250"`
	// IDField is the default key field for runs that do not name one.
	IDField string `mapstructure:"id_field" default:""`
}

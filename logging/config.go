package logging

// Options configures every component logger.
type Options struct {
	// Level is the minimum level ("debug", "info", "warn", "error").
	// METAOVERLAY_LOG_LEVEL overrides it.
	Level string

	// Format is "text" (default), "simple" or "json".
	Format string

	// File, when set, receives every entry in addition to stderr.
	File string

	// ReportCaller adds file, line and function. METAOVERLAY_LOG_CALLER=true
	// enables it too.
	ReportCaller bool

	// Stderr is "auto" (default), "always" or "never". In auto mode
	// entries reach stderr only when debugging or when stderr is not a
	// terminal, so interactive commands stay quiet.
	Stderr string
}

// FormatConfig controls the text formatter.
type FormatConfig struct {
	DisableTimestamp bool
	DisableComponent bool
}

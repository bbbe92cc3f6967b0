package ui

// Config contains TUI-specific configuration.
type Config struct {
	// Server address, set from the --addr flag.
	Addr string

	SeekStep  float64 `env:"READALOUD_SEEK_STEP"  envDefault:"10"`
	SpeedStep float64 `env:"READALOUD_SPEED_STEP" envDefault:"0.25"`

	// For debugging the UI
	AltScreen bool `env:"READALOUD_ALT_SCREEN" envDefault:"true"`
}

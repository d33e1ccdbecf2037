package domain

// Config is the persisted deskrun configuration.
type Config struct {
	ConfigFormatVersion string          `yaml:"config_format_version"`
	Shell               string          `yaml:"shell"`
	Execution           ExecutionPolicy `yaml:"execution"`
	Log                 LogSettings     `yaml:"log"`
	Aliases             []string        `yaml:"aliases"`
	Verbose             bool            `yaml:"verbose"`
}

// ExecutionPolicy controls worker scheduling and registry retention.
type ExecutionPolicy struct {
	// MaxConcurrent caps simultaneously running commands. 0 keeps the
	// historical worker-per-execution behavior with no bound.
	MaxConcurrent int `yaml:"max_concurrent"`
	// RetainTerminal is how many finished executions the registry keeps
	// before evicting the oldest. 0 keeps everything.
	RetainTerminal int `yaml:"retain_terminal"`
}

// LogSettings selects the execution record sink.
type LogSettings struct {
	// Store is "sqlite" or "jsonl".
	Store string `yaml:"store"`
	// Path overrides the default store location.
	Path string `yaml:"path"`
}

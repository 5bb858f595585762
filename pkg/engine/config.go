package engine

// Config holds engine settings.
type Config struct {
	// MaxRounds caps the answer rounds of one request. Zero or negative
	// means 10.
	MaxRounds int

	// DefaultTemperature applies when client_details omits temperature.
	// Zero or negative means 0.1. A request may still ask for 0.
	DefaultTemperature float64

	// DefaultMaxTokens applies when client_details omits max_tokens.
	// Zero or negative means 1000.
	DefaultMaxTokens int
}

func (c Config) maxRounds() int {
	if c.MaxRounds <= 0 {
		return 10
	}
	return c.MaxRounds
}

func (c Config) temperature() float64 {
	if c.DefaultTemperature <= 0 {
		return 0.1
	}
	return c.DefaultTemperature
}

func (c Config) maxTokens() int {
	if c.DefaultMaxTokens <= 0 {
		return 1000
	}
	return c.DefaultMaxTokens
}

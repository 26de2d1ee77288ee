package pipeline

// Config tunes one pipeline run. The fan-out bound protects the data
// repository; it is not a correctness requirement.
type Config struct {
	FanOutLimit      int
	ChurnHorizonDays int
	ForecastMonths   int
}

func DefaultConfig() Config {
	return Config{
		FanOutLimit:      25,
		ChurnHorizonDays: 30,
		ForecastMonths:   12,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.FanOutLimit <= 0 {
		c.FanOutLimit = defaults.FanOutLimit
	}
	if c.ChurnHorizonDays <= 0 {
		c.ChurnHorizonDays = defaults.ChurnHorizonDays
	}
	if c.ForecastMonths <= 0 {
		c.ForecastMonths = defaults.ForecastMonths
	}
	return c
}

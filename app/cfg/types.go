package cfg

import "time"

type Cfg struct {
	// Storage configuration
	DBPath   string
	FeedsDir string

	// Application configuration
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Fetching configuration
	UserAgent string
	HostRate  int

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}

func (c *Cfg) SchedulerIntervalDuration() time.Duration {
	return time.Duration(c.SchedulerInterval) * time.Second
}

func (c *Cfg) HostInterval() time.Duration {
	return time.Duration(c.HostRate) * time.Second
}

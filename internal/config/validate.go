package config

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Validate checks the rules env tags cannot express.
func (c *Config) Validate() error {
	if c.AI.MaxAttempts < 1 {
		return fmt.Errorf("ai.max_attempts must be >= 1 (got %d)", c.AI.MaxAttempts)
	}
	if c.AI.InitialBackoff < 0 {
		return fmt.Errorf("ai.initial_backoff must be >= 0 (got %s)", c.AI.InitialBackoff)
	}
	if c.AI.ContextLimit <= 0 {
		return fmt.Errorf("ai.context_limit must be > 0 (got %d)", c.AI.ContextLimit)
	}
	if c.Planner.SlotsPerDay < 0 || c.Planner.SlotsPerDay > 4 {
		return fmt.Errorf("planner.slots_per_day must be between 0 and 4 (got %d)", c.Planner.SlotsPerDay)
	}
	if _, err := time.LoadLocation(c.Planner.Timezone); err != nil {
		return fmt.Errorf("planner.timezone: %w", err)
	}
	if (c.Line.ChannelSecret == "") != (c.Line.ChannelToken == "") {
		return fmt.Errorf("line: channel_secret and channel_token must be set together")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

package chat

import (
	"time"

	"github.com/robfig/cron/v3"
)

// digestSchedule parses a 5-field cron expression (minute hour dom month dow).
func digestSchedule(expr string) (cron.Schedule, error) {
	p := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return p.Parse(expr)
}

// nextCronDuration returns how long until expr next fires, or 0 when the
// expression does not parse.
func nextCronDuration(expr string) time.Duration {
	sched, err := digestSchedule(expr)
	if err != nil {
		return 0
	}
	if d := time.Until(sched.Next(time.Now())); d > 0 {
		return d
	}
	return 0
}

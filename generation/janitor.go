package generation

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor periodically forgets terminal requests nobody queried
type Janitor struct {
	cron   *cron.Cron
	cronID cron.EntryID
}

// StartJanitor schedules Sweep(ttl) on a cron schedule such as "@every 1m"
func (c *Coordinator) StartJanitor(schedule string, ttl time.Duration) (*Janitor, error) {
	j := &Janitor{cron: cron.New()}

	id, err := j.cron.AddFunc(schedule, func() {
		if n := c.Sweep(ttl); n > 0 {
			log.Printf("janitor: dropped %d finished requests older than %v", n, ttl)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add janitor job: %w", err)
	}

	j.cronID = id
	j.cron.Start()
	return j, nil
}

// Stop halts the schedule and waits for a running sweep
func (j *Janitor) Stop() {
	if j == nil || j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

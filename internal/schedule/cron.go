// Package schedule evaluates cron expressions for scheduled assets.
package schedule

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts standard five-field expressions, descriptors such as
// @daily or @every 1h, and a CRON_TZ= prefix.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Cron computes next due times. Parsed expressions are cached.
type Cron struct {
	loc   *time.Location
	cache sync.Map // expr -> cron.Schedule
}

// New returns a Cron evaluating expressions in loc (UTC when nil).
func New(loc *time.Location) *Cron {
	if loc == nil {
		loc = time.UTC
	}
	return &Cron{loc: loc}
}

// Validate reports whether expr parses.
func Validate(expr string) error {
	_, err := parser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

func (c *Cron) parse(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if s, ok := c.cache.Load(expr); ok {
		return s.(cron.Schedule), nil
	}
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	c.cache.Store(expr, s)
	return s, nil
}

// NextDue returns the first activation of expr strictly after last. A zero
// last means the schedule has never fired and is due at now.
func (c *Cron) NextDue(expr string, last, now time.Time) (time.Time, error) {
	s, err := c.parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	if last.IsZero() {
		return now, nil
	}
	return s.Next(last.In(c.loc)), nil
}

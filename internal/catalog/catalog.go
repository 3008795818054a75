// Package catalog holds the static schedule of class offerings. Entries are
// reference data: loaded once at process start and immutable afterwards, so
// lookups are safe from any goroutine without locking.
package catalog

import "time"

type Entry struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Schedule        string         `json:"schedule"`
	Weekdays        []time.Weekday `json:"weekdays"`
	DurationMinutes int            `json:"duration"`
	Capacity        int            `json:"capacity"`
	Level           string         `json:"level"`
}

func (e Entry) AllowsWeekday(wd time.Weekday) bool {
	for _, allowed := range e.Weekdays {
		if allowed == wd {
			return true
		}
	}
	return false
}

type Provider interface {
	Lookup(classID string) (Entry, bool)
	All() []Entry
}

type StaticCatalog struct {
	entries map[string]Entry
	order   []string
}

func NewStaticCatalog(entries ...Entry) *StaticCatalog {
	c := &StaticCatalog{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if _, exists := c.entries[e.ID]; !exists {
			c.order = append(c.order, e.ID)
		}
		c.entries[e.ID] = e
	}
	return c
}

func (c *StaticCatalog) Lookup(classID string) (Entry, bool) {
	e, ok := c.entries[classID]
	return e, ok
}

func (c *StaticCatalog) All() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id])
	}
	return out
}

// Default returns the studio's standing weekly schedule.
func Default() *StaticCatalog {
	return NewStaticCatalog(
		Entry{
			ID:              "hatha",
			Name:            "Hatha Yoga",
			Schedule:        "Mon/Wed/Fri 10:00-11:00",
			Weekdays:        []time.Weekday{time.Monday, time.Wednesday, time.Friday},
			DurationMinutes: 60,
			Capacity:        12,
			Level:           "beginner to intermediate",
		},
		Entry{
			ID:              "power",
			Name:            "Power Yoga",
			Schedule:        "Tue/Thu/Sat 19:00-20:00",
			Weekdays:        []time.Weekday{time.Tuesday, time.Thursday, time.Saturday},
			DurationMinutes: 60,
			Capacity:        10,
			Level:           "intermediate to advanced",
		},
		Entry{
			ID:              "restorative",
			Name:            "Restorative Yoga",
			Schedule:        "Sun 17:00-18:30",
			Weekdays:        []time.Weekday{time.Sunday},
			DurationMinutes: 90,
			Capacity:        8,
			Level:           "all levels",
		},
	)
}

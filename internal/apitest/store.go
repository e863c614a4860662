package apitest

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// collection holds the records of one resource type, keyed by id.
type collection struct {
	records map[int]map[string]any
	next    int
}

func newCollection() *collection {
	return &collection{
		records: make(map[int]map[string]any),
		next:    1,
	}
}

// insert stores rec under its "id" if it carries a usable one, otherwise
// under the next free id, and returns that id.
func (c *collection) insert(rec map[string]any) int {
	rec = maps.Clone(rec)

	id, ok := idOf(rec["id"])
	if !ok {
		id = c.next
	}
	if id >= c.next {
		c.next = id + 1
	}

	rec["id"] = id
	c.records[id] = rec

	return id
}

func (c *collection) ids() []int {
	return slices.Sorted(maps.Keys(c.records))
}

// filter returns the ids of records matching every query filter. A key
// ending in ":in" matches any of its comma separated values.
func (c *collection) filter(filters map[string]string) []int {
	var out []int
	for _, id := range c.ids() {
		rec := c.records[id]

		match := true
		for key, want := range filters {
			field, in := strings.CutSuffix(key, ":in")
			got := fmt.Sprint(rec[field])

			switch {
			case in && !slices.Contains(strings.Split(want, ","), got):
				match = false
			case !in && got != want:
				match = false
			}
		}

		if match {
			out = append(out, id)
		}
	}

	return out
}

func idOf(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, t > 0
	case float64:
		return int(t), t > 0 && t == float64(int(t))
	case string:
		n, err := strconv.Atoi(t)
		return n, err == nil && n > 0
	}

	return 0, false
}

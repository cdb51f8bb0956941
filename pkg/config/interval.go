package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSysInterval is used for sys variables that set no interval.
const DefaultSysInterval = 2 * time.Second

// Interval is how often a poll or sys variable refreshes. In a config file
// it is either a duration string ("500ms", "2m") or a bare number of
// seconds (5, "5", 0.5). An absent interval decodes to zero.
type Interval time.Duration

// UnmarshalTOML decodes a TOML string, integer or float.
func (i *Interval) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		return i.set(v)
	case int64:
		return i.seconds(float64(v), strconv.FormatInt(v, 10))
	case float64:
		return i.seconds(v, strconv.FormatFloat(v, 'g', -1, 64))
	default:
		return fmt.Errorf("interval: expected a string or number, got %T", data)
	}
}

// UnmarshalYAML decodes a YAML scalar.
func (i *Interval) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("interval: expected a scalar at line %d", node.Line)
	}
	return i.set(node.Value)
}

func (i *Interval) set(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*i = 0
		return nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return i.seconds(secs, s)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("interval %q: want a duration like 2s or a number of seconds", s)
	}
	if d < 0 {
		return fmt.Errorf("interval %q is negative", s)
	}
	*i = Interval(d)
	return nil
}

func (i *Interval) seconds(secs float64, raw string) error {
	if secs < 0 {
		return fmt.Errorf("interval %q is negative", raw)
	}
	*i = Interval(secs * float64(time.Second))
	return nil
}

// Or returns the interval, or def when none was configured.
func (i Interval) Or(def time.Duration) time.Duration {
	if i == 0 {
		return def
	}
	return time.Duration(i)
}

func (i Interval) String() string { return time.Duration(i).String() }

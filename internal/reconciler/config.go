package reconciler

import (
	"fmt"
	"strings"

	"waterfall-reconciliation-service/internal/matcher"
)

// PartitionOrder decides which order subset of an account partition is
// matched first: the orders of the same product, or the other ones.
type PartitionOrder string

const (
	PartitionMatchingFirst PartitionOrder = "matching_first"
	PartitionOtherFirst    PartitionOrder = "other_first"
)

// ParsePartitionOrder reads a partition order, defaulting to matching_first
func ParsePartitionOrder(s string) (PartitionOrder, error) {
	switch PartitionOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", PartitionMatchingFirst:
		return PartitionMatchingFirst, nil
	case PartitionOtherFirst:
		return PartitionOtherFirst, nil
	default:
		return PartitionMatchingFirst, fmt.Errorf("invalid partition order %q: expected %s or %s",
			s, PartitionMatchingFirst, PartitionOtherFirst)
	}
}

// AnyShareType makes a segment accept every share type not claimed by an earlier segment
const AnyShareType = "*"

// Segment is a slice of the order pool, selected by share type, with its own
// validity window. Segments run in configuration order and share the payment pool.
type Segment struct {
	Name       string   `json:"name" yaml:"name"`
	ShareTypes []string `json:"share_types" yaml:"share_types"`
	WindowDays int      `json:"window_days" yaml:"window_days"`
}

// Accepts reports whether the segment selects orders of the given share type
func (s Segment) Accepts(shareType string) bool {
	shareType = strings.TrimSpace(shareType)
	for _, st := range s.ShareTypes {
		if st == AnyShareType || strings.EqualFold(strings.TrimSpace(st), shareType) {
			return true
		}
	}
	return false
}

// Config is the immutable configuration of one waterfall run. Build variants
// with Clone and never mutate a Config handed to an Engine.
type Config struct {
	// Entity names the business entity the run belongs to
	Entity string `json:"entity" yaml:"entity"`

	// Matching holds the thresholds of the matching primitives
	Matching *matcher.MatchingConfig `json:"matching" yaml:"matching"`

	// NameColumns lists the payer name columns in the order they are tried.
	// Empty means the name columns of the payment table roles.
	NameColumns []string `json:"name_columns,omitempty" yaml:"name_columns,omitempty"`

	// Segments split the order pool by share type
	Segments []Segment `json:"segments" yaml:"segments"`

	// NToOneWindows and OneToNWindows override the aggregation ladders
	// derived from the segment window.
	NToOneWindows []int `json:"n_to_one_windows,omitempty" yaml:"n_to_one_windows,omitempty"`
	OneToNWindows []int `json:"one_to_n_windows,omitempty" yaml:"one_to_n_windows,omitempty"`

	PartitionOrder PartitionOrder `json:"partition_order" yaml:"partition_order"`

	// NormalizeNames trims, collapses and upper-cases every name before matching
	NormalizeNames bool `json:"normalize_names" yaml:"normalize_names"`
}

// DefaultConfig returns a single catch-all segment of 60 days with the default matching thresholds
func DefaultConfig() *Config {
	return &Config{
		Entity:   "default",
		Matching: matcher.DefaultMatchingConfig(),
		Segments: []Segment{
			{Name: "all", ShareTypes: []string{AnyShareType}, WindowDays: 60},
		},
		PartitionOrder: PartitionMatchingFirst,
		NormalizeNames: true,
	}
}

// ABCDConfig returns the configuration of the ABCD entity: full ownership
// orders are matched first on a 60 day window, everything else on 180 days.
func ABCDConfig() *Config {
	config := DefaultConfig()
	config.Entity = "ABCD"
	config.Matching.AmountThreshold = matcher.BoundedInt(5)
	config.Segments = []Segment{
		{Name: "full_ownership", ShareTypes: []string{"Full ownership"}, WindowDays: 60},
		{Name: "dismemberment", ShareTypes: []string{AnyShareType}, WindowDays: 180},
	}
	return config
}

// XYZConfig returns the configuration of the XYZ entity: exact amounts, one 20 day segment
func XYZConfig() *Config {
	config := DefaultConfig()
	config.Entity = "XYZ"
	config.Matching.AmountThreshold = matcher.BoundedInt(0)
	config.Segments = []Segment{
		{Name: "all", ShareTypes: []string{AnyShareType}, WindowDays: 20},
	}
	return config
}

// Validate checks the configuration for impossible values
func (c *Config) Validate() error {
	if c.Matching == nil {
		return fmt.Errorf("matching configuration is required")
	}
	if err := c.Matching.Validate(); err != nil {
		return fmt.Errorf("matching: %w", err)
	}
	if len(c.Segments) == 0 {
		return fmt.Errorf("at least one segment is required")
	}

	seen := make(map[string]bool)
	for i, s := range c.Segments {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("segment %d: name cannot be empty", i+1)
		}
		if seen[s.Name] {
			return fmt.Errorf("segment %q is declared twice", s.Name)
		}
		seen[s.Name] = true
		if len(s.ShareTypes) == 0 {
			return fmt.Errorf("segment %q: at least one share type is required", s.Name)
		}
		if s.WindowDays < 0 {
			return fmt.Errorf("segment %q: window days cannot be negative: %d", s.Name, s.WindowDays)
		}
	}

	for i, col := range c.NameColumns {
		if strings.TrimSpace(col) == "" {
			return fmt.Errorf("name column %d cannot be empty", i+1)
		}
	}
	for _, ladder := range [][]int{c.NToOneWindows, c.OneToNWindows} {
		for _, days := range ladder {
			if days < 1 {
				return fmt.Errorf("aggregation window must be at least 1 day: %d", days)
			}
		}
	}
	if _, err := ParsePartitionOrder(string(c.PartitionOrder)); err != nil {
		return err
	}
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Matching = c.Matching.Clone()
	clone.NameColumns = append([]string(nil), c.NameColumns...)
	clone.NToOneWindows = append([]int(nil), c.NToOneWindows...)
	clone.OneToNWindows = append([]int(nil), c.OneToNWindows...)
	clone.Segments = make([]Segment, len(c.Segments))
	for i, s := range c.Segments {
		s.ShareTypes = append([]string(nil), s.ShareTypes...)
		clone.Segments[i] = s
	}
	return &clone
}

// NToOneLadder returns the payment aggregation windows used against orders
// of a segment: 4, 6, ... up to half the segment window.
func (c *Config) NToOneLadder(windowDays int) []int {
	if len(c.NToOneWindows) > 0 {
		return append([]int(nil), c.NToOneWindows...)
	}
	return ladder(4, windowDays/2, 2)
}

// OneToNLadder returns the order aggregation windows: 10, 15, ... up to half the segment window.
func (c *Config) OneToNLadder(windowDays int) []int {
	if len(c.OneToNWindows) > 0 {
		return append([]int(nil), c.OneToNWindows...)
	}
	return ladder(10, windowDays/2, 5)
}

// ladder lists start, start+step, ... while below limit+step, so limit is
// included when it falls on a step.
func ladder(start, limit, step int) []int {
	var windows []int
	for n := start; n < limit+step; n += step {
		windows = append(windows, n)
	}
	return windows
}

// String returns a human-readable description of the configuration
func (c *Config) String() string {
	names := make([]string, len(c.Segments))
	for i, s := range c.Segments {
		names[i] = fmt.Sprintf("%s(%dd)", s.Name, s.WindowDays)
	}
	return fmt.Sprintf("Config{Entity: %s, Segments: [%s], PartitionOrder: %s, Matching: %s}",
		c.Entity, strings.Join(names, ", "), c.PartitionOrder, c.Matching)
}

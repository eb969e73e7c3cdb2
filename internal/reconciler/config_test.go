package reconciler

import (
	"testing"

	"waterfall-reconciliation-service/internal/matcher"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{"default", func(c *Config) {}, false},
		{"no matching", func(c *Config) { c.Matching = nil }, true},
		{"no segments", func(c *Config) { c.Segments = nil }, true},
		{"unnamed segment", func(c *Config) { c.Segments[0].Name = " " }, true},
		{"duplicate segment", func(c *Config) { c.Segments = append(c.Segments, c.Segments[0]) }, true},
		{"segment without share types", func(c *Config) { c.Segments[0].ShareTypes = nil }, true},
		{"negative window", func(c *Config) { c.Segments[0].WindowDays = -1 }, true},
		{"blank name column", func(c *Config) { c.NameColumns = []string{"clientname", ""} }, true},
		{"zero aggregation window", func(c *Config) { c.NToOneWindows = []int{0} }, true},
		{"negative 1:N window", func(c *Config) { c.OneToNWindows = []int{10, -5} }, true},
		{"unknown partition order", func(c *Config) { c.PartitionOrder = "random" }, true},
		{"empty partition order", func(c *Config) { c.PartitionOrder = "" }, false},
		{"zero window segment", func(c *Config) { c.Segments[0].WindowDays = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuiltInConfigs(t *testing.T) {
	abcd := ABCDConfig()
	require.NoError(t, abcd.Validate())
	assert.Equal(t, "ABCD", abcd.Entity)
	assert.True(t, abcd.Matching.AmountThreshold.Value().Equal(decimal.NewFromInt(5)))
	require.Len(t, abcd.Segments, 2)
	assert.Equal(t, 60, abcd.Segments[0].WindowDays)
	assert.Equal(t, 180, abcd.Segments[1].WindowDays)

	xyz := XYZConfig()
	require.NoError(t, xyz.Validate())
	assert.True(t, xyz.Matching.AmountThreshold.Value().IsZero())
	require.Len(t, xyz.Segments, 1)
	assert.Equal(t, 20, xyz.Segments[0].WindowDays)
}

func TestConfig_Clone(t *testing.T) {
	original := ABCDConfig()
	original.NameColumns = []string{"clientname"}
	original.NToOneWindows = []int{2, 4}

	clone := original.Clone()
	clone.Segments[0].ShareTypes[0] = "changed"
	clone.NameColumns[0] = "changed"
	clone.NToOneWindows[0] = 99
	clone.Matching.AmountThreshold = matcher.Unbounded()

	assert.Equal(t, "Full ownership", original.Segments[0].ShareTypes[0])
	assert.Equal(t, "clientname", original.NameColumns[0])
	assert.Equal(t, 2, original.NToOneWindows[0])
	assert.False(t, original.Matching.AmountThreshold.IsUnbounded())

	var nilConfig *Config
	assert.Nil(t, nilConfig.Clone())
}

func TestConfig_Ladders(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, []int{4, 6, 8, 10, 12, 14, 16, 18, 20, 22, 24, 26, 28, 30}, config.NToOneLadder(60))
	assert.Equal(t, []int{4, 6, 8, 10}, config.NToOneLadder(20))
	assert.Empty(t, config.NToOneLadder(4))

	assert.Equal(t, []int{10, 15, 20, 25, 30}, config.OneToNLadder(60))
	assert.Equal(t, []int{10}, config.OneToNLadder(20))
	assert.Empty(t, config.OneToNLadder(10))

	config.NToOneWindows = []int{3}
	config.OneToNWindows = []int{7, 14}
	assert.Equal(t, []int{3}, config.NToOneLadder(180))
	assert.Equal(t, []int{7, 14}, config.OneToNLadder(180))
}

func TestParsePartitionOrder(t *testing.T) {
	tests := []struct {
		input     string
		want      PartitionOrder
		wantError bool
	}{
		{"", PartitionMatchingFirst, false},
		{"matching_first", PartitionMatchingFirst, false},
		{" OTHER_FIRST ", PartitionOtherFirst, false},
		{"sideways", PartitionMatchingFirst, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePartitionOrder(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantError, err != nil)
		})
	}
}

func TestSegment_Accepts(t *testing.T) {
	segment := Segment{Name: "full", ShareTypes: []string{"Full ownership"}}
	assert.True(t, segment.Accepts("full ownership"))
	assert.True(t, segment.Accepts(" Full ownership "))
	assert.False(t, segment.Accepts("Dismemberment"))
	assert.False(t, segment.Accepts(""))

	catchAll := Segment{Name: "rest", ShareTypes: []string{AnyShareType}}
	assert.True(t, catchAll.Accepts("Dismemberment"))
	assert.True(t, catchAll.Accepts(""))
}

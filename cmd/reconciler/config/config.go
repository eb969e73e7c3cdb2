package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"waterfall-reconciliation-service/internal/matcher"
	"waterfall-reconciliation-service/internal/models"
	"waterfall-reconciliation-service/internal/parsers"
	"waterfall-reconciliation-service/internal/reconciler"
	"waterfall-reconciliation-service/internal/reporter"
	"waterfall-reconciliation-service/pkg/errors"

	"gopkg.in/yaml.v3"
)

// Profile is the entity configuration read from YAML. Zero fields keep the
// engine defaults.
type Profile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	AmountThreshold  string   `yaml:"amount_threshold,omitempty"`
	MinScore         int      `yaml:"min_score,omitempty"`
	MinNameLength    int      `yaml:"min_name_length,omitempty"`
	MinWordLength    int      `yaml:"min_word_length,omitempty"`
	Stopwords        []string `yaml:"stopwords,omitempty"`
	LightCheckRounds int      `yaml:"light_check_rounds,omitempty"`
	SpanRule         string   `yaml:"span_rule,omitempty"`

	PaymentType      string                 `yaml:"payment_type,omitempty"`
	PaymentColumns   *models.PaymentColumns `yaml:"payment_columns,omitempty"`
	PayerNameColumns []string               `yaml:"payer_name_columns,omitempty"`

	Segments       []reconciler.Segment `yaml:"segments,omitempty"`
	NToOneWindows  []int                `yaml:"n_to_one_windows,omitempty"`
	OneToNWindows  []int                `yaml:"one_to_n_windows,omitempty"`
	PartitionOrder string               `yaml:"partition_order,omitempty"`

	SkipInvalidRows bool `yaml:"skip_invalid_rows,omitempty"`
}

// Overrides carries the command line settings applied on top of a profile.
// Empty values leave the profile untouched.
type Overrides struct {
	AmountThreshold string
	MinScore        int
	NameColumns     []string
	PartitionOrder  string
}

// builtInProfiles ship with the binary, keyed by upper-case entity name
var builtInProfiles = map[string]func() *Profile{
	"ABCD": func() *Profile {
		p := profileFromConfig(reconciler.ABCDConfig())
		p.Description = "Full ownership orders on 60 days, then every other share type on 180 days"
		return p
	},
	"XYZ": func() *Profile {
		p := profileFromConfig(reconciler.XYZConfig())
		p.Description = "Exact amounts on a single 20 day window"
		return p
	},
}

func profileFromConfig(c *reconciler.Config) *Profile {
	return &Profile{
		Name:            c.Entity,
		AmountThreshold: c.Matching.AmountThreshold.String(),
		MinScore:        c.Matching.MinScore,
		Segments:        c.Clone().Segments,
		PartitionOrder:  string(c.PartitionOrder),
	}
}

// BuiltInProfileNames lists the built-in entity names in alphabetical order
func BuiltInProfileNames() []string {
	names := make([]string, 0, len(builtInProfiles))
	for name := range builtInProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetProfile returns a fresh copy of a built-in profile. Lookup ignores case.
func GetProfile(entity string) (*Profile, error) {
	build, ok := builtInProfiles[strings.ToUpper(strings.TrimSpace(entity))]
	if !ok {
		return nil, errors.ConfigurationError(errors.CodeUnknownProfile, "entity", entity, nil).
			WithSuggestion(fmt.Sprintf("Use one of %s or pass --profile with a YAML profile",
				strings.Join(BuiltInProfileNames(), ", ")))
	}
	return build(), nil
}

// LoadProfile reads a YAML profile. Unknown keys are rejected so that typos
// do not silently fall back to defaults.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		return nil, errors.FileError(errors.CodeFilePermission, path, err)
	}
	return ParseProfile(data, path)
}

// ParseProfile decodes a YAML profile document; source names it in errors
func ParseProfile(data []byte, source string) (*Profile, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var profile Profile
	if err := decoder.Decode(&profile); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "profile", source, err).
			WithSuggestion("Check the profile YAML syntax and key names")
	}
	if strings.TrimSpace(profile.Name) == "" {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "profile.name", source, nil)
	}
	return &profile, nil
}

// ResolveProfile picks the profile of a run: the YAML file when path is set,
// otherwise the built-in profile of entity.
func ResolveProfile(entity, path string) (*Profile, error) {
	if path == "" {
		return GetProfile(entity)
	}
	profile, err := LoadProfile(path)
	if err != nil {
		return nil, err
	}
	if entity != "" && !strings.EqualFold(entity, profile.Name) {
		return nil, errors.ConfigurationError(errors.CodeConfigConflict, "entity", entity,
			fmt.Errorf("profile %s declares entity %s", path, profile.Name))
	}
	return profile, nil
}

// ToEngineConfig builds the waterfall configuration of the profile
func (p *Profile) ToEngineConfig() (*reconciler.Config, error) {
	config := reconciler.DefaultConfig()
	config.Entity = p.Name
	m := config.Matching

	if p.AmountThreshold != "" {
		threshold, err := matcher.ParseThreshold(p.AmountThreshold)
		if err != nil {
			return nil, invalidSetting("amount_threshold", p.AmountThreshold, err)
		}
		m.AmountThreshold = threshold
	}
	if p.MinScore != 0 {
		m.MinScore = p.MinScore
	}
	if p.MinNameLength != 0 {
		m.MinNameLength = p.MinNameLength
	}
	if p.MinWordLength != 0 {
		m.MinWordLength = p.MinWordLength
	}
	if p.Stopwords != nil {
		m.Stopwords = append([]string(nil), p.Stopwords...)
	}
	if p.LightCheckRounds != 0 {
		m.LightCheckRounds = p.LightCheckRounds
	}
	if p.SpanRule != "" {
		rule, err := matcher.ParseSpanRule(p.SpanRule)
		if err != nil {
			return nil, invalidSetting("span_rule", p.SpanRule, err)
		}
		m.SpanRule = rule
	}

	if len(p.PayerNameColumns) > 0 {
		config.NameColumns = append([]string(nil), p.PayerNameColumns...)
	}
	if len(p.Segments) > 0 {
		config.Segments = make([]reconciler.Segment, len(p.Segments))
		for i, s := range p.Segments {
			s.ShareTypes = append([]string(nil), s.ShareTypes...)
			config.Segments[i] = s
		}
	}
	config.NToOneWindows = append([]int(nil), p.NToOneWindows...)
	config.OneToNWindows = append([]int(nil), p.OneToNWindows...)

	order, err := reconciler.ParsePartitionOrder(p.PartitionOrder)
	if err != nil {
		return nil, invalidSetting("partition_order", p.PartitionOrder, err)
	}
	config.PartitionOrder = order

	if err := config.Validate(); err != nil {
		return nil, invalidSetting("profile", p.Name, err)
	}
	return config, nil
}

// Apply returns a copy of the profile with the overrides set
func (o Overrides) Apply(p *Profile) *Profile {
	clone := *p
	if o.AmountThreshold != "" {
		clone.AmountThreshold = o.AmountThreshold
	}
	if o.MinScore != 0 {
		clone.MinScore = o.MinScore
	}
	if len(o.NameColumns) > 0 {
		clone.PayerNameColumns = append([]string(nil), o.NameColumns...)
	}
	if o.PartitionOrder != "" {
		clone.PartitionOrder = o.PartitionOrder
	}
	return &clone
}

// CreatePaymentParserConfig creates the payment table configuration of the profile
func CreatePaymentParserConfig(p *Profile) (*parsers.PaymentParserConfig, error) {
	config := parsers.DefaultPaymentParserConfig()
	if p.PaymentColumns != nil {
		config.Columns = *p.PaymentColumns
		config.Columns.Names = append([]string(nil), p.PaymentColumns.Names...)
	}
	if len(p.PayerNameColumns) > 0 {
		config.Columns.Names = append([]string(nil), p.PayerNameColumns...)
	}
	if p.PaymentType != "" {
		config.PaymentType = p.PaymentType
	}
	config.SkipInvalidRows = p.SkipInvalidRows

	if err := config.Validate(); err != nil {
		return nil, invalidSetting("payment_columns", config.Columns, err)
	}
	return config, nil
}

// CreateOrderParserConfig creates the order table configuration of the profile
func CreateOrderParserConfig(p *Profile) *parsers.OrderParserConfig {
	config := parsers.DefaultOrderParserConfig()
	config.SkipInvalidRows = p.SkipInvalidRows
	return config
}

// CreateReportConfig creates report configuration for the requested format
func CreateReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(strings.ToLower(strings.TrimSpace(format)))
	return config
}

func invalidSetting(setting string, value interface{}, err error) error {
	return errors.ConfigurationError(errors.CodeInvalidConfig, setting, value, err)
}

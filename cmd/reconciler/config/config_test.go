package config

import (
	"os"
	"path/filepath"
	"testing"

	"waterfall-reconciliation-service/internal/matcher"
	"waterfall-reconciliation-service/internal/models"
	"waterfall-reconciliation-service/internal/reconciler"
	"waterfall-reconciliation-service/internal/reporter"
	"waterfall-reconciliation-service/pkg/errors"
)

const sampleProfile = `name: QRST
description: two segments, loose threshold
amount_threshold: "10"
min_score: 85
payer_name_columns: [reference1, clientname]
payment_type: cheque
segments:
  - name: full_ownership
    share_types: ["Full ownership"]
    window_days: 30
  - name: rest
    share_types: ["*"]
    window_days: 90
n_to_one_windows: [3, 5]
partition_order: other_first
span_rule: overlap
`

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write profile: %v", err)
	}
	return path
}

func TestGetProfile(t *testing.T) {
	tests := []struct {
		entity    string
		threshold string
		segments  int
	}{
		{"ABCD", "5", 2},
		{"abcd", "5", 2},
		{" XYZ ", "0", 1},
	}

	for _, tt := range tests {
		t.Run(tt.entity, func(t *testing.T) {
			profile, err := GetProfile(tt.entity)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if profile.AmountThreshold != tt.threshold {
				t.Errorf("expected threshold %s, got %s", tt.threshold, profile.AmountThreshold)
			}
			if len(profile.Segments) != tt.segments {
				t.Errorf("expected %d segments, got %d", tt.segments, len(profile.Segments))
			}
			if profile.Description == "" {
				t.Error("expected built-in profile to carry a description")
			}
		})
	}
}

func TestGetProfile_Unknown(t *testing.T) {
	_, err := GetProfile("NOPE")
	if err == nil {
		t.Fatal("expected error for unknown entity")
	}
	if !errors.HasCode(err, errors.CodeUnknownProfile) {
		t.Errorf("expected unknown_profile error, got %v", err)
	}
}

func TestGetProfile_ReturnsCopies(t *testing.T) {
	first, _ := GetProfile("ABCD")
	first.Segments[0].WindowDays = 1

	second, _ := GetProfile("ABCD")
	if second.Segments[0].WindowDays != 60 {
		t.Errorf("built-in profile was modified through a returned copy: %d", second.Segments[0].WindowDays)
	}
}

func TestBuiltInProfileNames(t *testing.T) {
	names := BuiltInProfileNames()
	if len(names) != 2 || names[0] != "ABCD" || names[1] != "XYZ" {
		t.Errorf("unexpected built-in profiles: %v", names)
	}
}

func TestBuiltInProfilesMatchEngineConfigs(t *testing.T) {
	for name, expected := range map[string]*reconciler.Config{
		"ABCD": reconciler.ABCDConfig(),
		"XYZ":  reconciler.XYZConfig(),
	} {
		profile, _ := GetProfile(name)
		config, err := profile.ToEngineConfig()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if config.String() != expected.String() {
			t.Errorf("%s: expected %s, got %s", name, expected, config)
		}
	}
}

func TestLoadProfile(t *testing.T) {
	profile, err := LoadProfile(writeProfile(t, sampleProfile))
	if err != nil {
		t.Fatalf("failed to load profile: %v", err)
	}

	if profile.Name != "QRST" {
		t.Errorf("expected name QRST, got %s", profile.Name)
	}
	if len(profile.PayerNameColumns) != 2 {
		t.Errorf("expected 2 payer name columns, got %v", profile.PayerNameColumns)
	}

	config, err := profile.ToEngineConfig()
	if err != nil {
		t.Fatalf("failed to build engine config: %v", err)
	}
	if config.Matching.AmountThreshold.String() != "10" {
		t.Errorf("expected threshold 10, got %s", config.Matching.AmountThreshold)
	}
	if config.Matching.MinScore != 85 {
		t.Errorf("expected min score 85, got %d", config.Matching.MinScore)
	}
	if config.Matching.MinNameLength != 4 {
		t.Errorf("expected default min name length, got %d", config.Matching.MinNameLength)
	}
	if config.Matching.SpanRule != matcher.SpanOverlap {
		t.Errorf("expected overlap span rule, got %s", config.Matching.SpanRule)
	}
	if config.PartitionOrder != reconciler.PartitionOtherFirst {
		t.Errorf("expected other_first, got %s", config.PartitionOrder)
	}
	if len(config.Segments) != 2 || config.Segments[1].WindowDays != 90 {
		t.Errorf("unexpected segments: %+v", config.Segments)
	}
	if got := config.NToOneLadder(30); len(got) != 2 || got[0] != 3 || got[1] != 5 {
		t.Errorf("expected explicit N to 1 ladder, got %v", got)
	}
	if got := config.OneToNLadder(30); len(got) != 2 || got[0] != 10 || got[1] != 15 {
		t.Errorf("expected derived 1 to N ladder, got %v", got)
	}
}

func TestLoadProfile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    errors.ErrorCode
	}{
		{"unknown key", "name: A\nthreshold: 5\n", errors.CodeInvalidConfig},
		{"bad yaml", "name: [A\n", errors.CodeInvalidConfig},
		{"missing name", "min_score: 90\n", errors.CodeMissingConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProfile(writeProfile(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.HasCode(err, tt.code) {
				t.Errorf("expected code %s, got %v", tt.code, err)
			}
		})
	}

	_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.HasCode(err, errors.CodeFileNotFound) {
		t.Errorf("expected file_not_found, got %v", err)
	}
}

func TestResolveProfile(t *testing.T) {
	path := writeProfile(t, sampleProfile)

	profile, err := ResolveProfile("", path)
	if err != nil || profile.Name != "QRST" {
		t.Fatalf("expected file profile, got %v, %v", profile, err)
	}

	if _, err := ResolveProfile("qrst", path); err != nil {
		t.Errorf("entity matching the profile name should be accepted: %v", err)
	}

	_, err = ResolveProfile("ABCD", path)
	if !errors.HasCode(err, errors.CodeConfigConflict) {
		t.Errorf("expected config_conflict, got %v", err)
	}

	profile, err = ResolveProfile("XYZ", "")
	if err != nil || profile.Name != "XYZ" {
		t.Errorf("expected built-in profile, got %v, %v", profile, err)
	}
}

func TestToEngineConfig_InvalidSettings(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
	}{
		{"threshold", Profile{Name: "A", AmountThreshold: "five"}},
		{"negative threshold", Profile{Name: "A", AmountThreshold: "-1"}},
		{"span rule", Profile{Name: "A", SpanRule: "inside"}},
		{"partition order", Profile{Name: "A", PartitionOrder: "random"}},
		{"segment without share type", Profile{Name: "A", Segments: []reconciler.Segment{{Name: "s", WindowDays: 10}}}},
		{"window", Profile{Name: "A", OneToNWindows: []int{0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.profile.ToEngineConfig()
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.HasCode(err, errors.CodeInvalidConfig) {
				t.Errorf("expected invalid_config, got %v", err)
			}
		})
	}
}

func TestOverridesApply(t *testing.T) {
	base, _ := GetProfile("ABCD")
	overridden := Overrides{
		AmountThreshold: "unbounded",
		MinScore:        80,
		NameColumns:     []string{"reference1"},
		PartitionOrder:  "other_first",
	}.Apply(base)

	if base.AmountThreshold != "5" || base.MinScore != 90 {
		t.Errorf("base profile was modified: %+v", base)
	}

	config, err := overridden.ToEngineConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !config.Matching.AmountThreshold.IsUnbounded() {
		t.Errorf("expected unbounded threshold, got %s", config.Matching.AmountThreshold)
	}
	if config.Matching.MinScore != 80 {
		t.Errorf("expected min score 80, got %d", config.Matching.MinScore)
	}
	if len(config.NameColumns) != 1 || config.NameColumns[0] != "reference1" {
		t.Errorf("expected name column override, got %v", config.NameColumns)
	}

	unchanged := Overrides{}.Apply(base)
	if unchanged.AmountThreshold != "5" || unchanged.PartitionOrder != base.PartitionOrder {
		t.Errorf("empty overrides changed the profile: %+v", unchanged)
	}
}

func TestCreatePaymentParserConfig(t *testing.T) {
	profile, _ := GetProfile("ABCD")
	config, err := CreatePaymentParserConfig(profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Columns.ID != "id" || config.Columns.Names[0] != "clientname" {
		t.Errorf("expected default columns, got %+v", config.Columns)
	}
	if config.PaymentType != "virement" {
		t.Errorf("expected default payment type, got %s", config.PaymentType)
	}

	loaded, _ := LoadProfile(writeProfile(t, sampleProfile))
	config, err = CreatePaymentParserConfig(loaded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(config.Columns.Names) != 2 || config.Columns.Names[0] != "reference1" {
		t.Errorf("expected payer name columns from profile, got %v", config.Columns.Names)
	}
	if config.PaymentType != "cheque" {
		t.Errorf("expected cheque, got %s", config.PaymentType)
	}

	columns := models.DefaultPaymentColumns()
	columns.ID = ""
	broken := &Profile{Name: "A", PaymentColumns: &columns}
	if _, err := CreatePaymentParserConfig(broken); !errors.HasCode(err, errors.CodeInvalidConfig) {
		t.Errorf("expected invalid_config for missing id column, got %v", err)
	}
}

func TestCreateReportConfig(t *testing.T) {
	tests := []struct {
		format   string
		expected reporter.OutputFormat
		valid    bool
	}{
		{"console", reporter.FormatConsole, true},
		{"JSON", reporter.FormatJSON, true},
		{" csv ", reporter.FormatCSV, true},
		{"xlsx", reporter.FormatXLSX, true},
		{"pdf", reporter.OutputFormat("pdf"), false},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			config := CreateReportConfig(tt.format)
			if config.Format != tt.expected {
				t.Errorf("expected format %s, got %s", tt.expected, config.Format)
			}
			if err := config.Validate(); (err == nil) != tt.valid {
				t.Errorf("expected valid=%v, got %v", tt.valid, err)
			}
		})
	}
}

func TestLoadProfile_SampleFile(t *testing.T) {
	profile, err := LoadProfile(filepath.Join("..", "..", "..", "testdata", "profile_sample.yaml"))
	if err != nil {
		t.Fatalf("failed to load sample profile: %v", err)
	}

	config, err := profile.ToEngineConfig()
	if err != nil {
		t.Fatalf("sample profile should be valid: %v", err)
	}
	if config.Entity != "SAMPLE" || len(config.Segments) != 2 {
		t.Errorf("unexpected sample configuration: %s", config)
	}

	parserConfig, err := CreatePaymentParserConfig(profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"id", "effective_date", "amount", "account_num", "reference1", "reference2", "clientname"}
	required := parserConfig.Columns.Required()
	if len(required) != len(expected) {
		t.Fatalf("expected required columns %v, got %v", expected, required)
	}
	for i := range expected {
		if required[i] != expected[i] {
			t.Errorf("expected required columns %v, got %v", expected, required)
			break
		}
	}
}

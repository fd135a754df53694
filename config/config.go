// Package config loads the planner's configuration through koanf,
// merging a YAML file with environment variable overrides — the same
// mechanism the teacher repository uses (config.LoadWithEnv), narrowed
// to the fields spec.md §6 names instead of the teacher's
// postgres/firebase/pubsub/http surface (see DESIGN.md "Dropped teacher
// dependencies").
package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const defaultPath = "."

// Config is the planner process's top-level configuration.
type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	Planner *PlannerConfig `json:"planner" yaml:"planner"`
}

// Log configures the slog logger (internal/infra/log).
type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// PlannerConfig is the configuration surface spec.md §6 names, plus
// the SPEC_FULL.md-added expansion-budget and separator fields.
type PlannerConfig struct {
	EarthRadiusMeters           float64 `json:"earthRadiusMeters" yaml:"earthRadiusMeters"`
	CoordinateEqualityTolerance float64 `json:"coordinateEqualityTolerance" yaml:"coordinateEqualityTolerance"`
	IntersectionEpsilon         float64 `json:"intersectionEpsilon" yaml:"intersectionEpsilon"`
	NodeClearanceSeconds        float64 `json:"nodeClearanceSeconds" yaml:"nodeClearanceSeconds"`
	NodeSafetyWindowSeconds     float64 `json:"nodeSafetyWindowSeconds" yaml:"nodeSafetyWindowSeconds"`
	InconveniencePenaltySeconds float64 `json:"inconveniencePenaltySeconds" yaml:"inconveniencePenaltySeconds"`
	HeadOnPenaltySeconds        float64 `json:"headOnPenaltySeconds" yaml:"headOnPenaltySeconds"`
	HugePenaltySeconds          float64 `json:"hugePenaltySeconds" yaml:"hugePenaltySeconds"`
	DefaultVehicleSpeed         float64 `json:"defaultVehicleSpeed" yaml:"defaultVehicleSpeed"`
	DefaultVehicleLength        float64 `json:"defaultVehicleLength" yaml:"defaultVehicleLength"`
	NodeKeyDecimalDigits        int     `json:"nodeKeyDecimalDigits" yaml:"nodeKeyDecimalDigits"`
	MaxExpansionsPerNode        int     `json:"maxExpansionsPerNode" yaml:"maxExpansionsPerNode"`
	NodeKeySeparator            string  `json:"nodeKeySeparator" yaml:"nodeKeySeparator"`
	SegmentKeySeparator         string  `json:"segmentKeySeparator" yaml:"segmentKeySeparator"`
}

// DefaultPlannerConfig matches spec.md §6's documented defaults.
func DefaultPlannerConfig() PlannerConfig {
	huge := 1e9

	return PlannerConfig{
		EarthRadiusMeters:           6371000,
		CoordinateEqualityTolerance: 1e-7,
		IntersectionEpsilon:         1e-5,
		NodeClearanceSeconds:        10,
		NodeSafetyWindowSeconds:     15,
		InconveniencePenaltySeconds: 30,
		HeadOnPenaltySeconds:        huge / 1000,
		HugePenaltySeconds:          huge,
		DefaultVehicleSpeed:         10,
		DefaultVehicleLength:        5,
		NodeKeyDecimalDigits:        8,
		MaxExpansionsPerNode:        0,
		NodeKeySeparator:            ",",
		SegmentKeySeparator:         "|",
	}
}

// LoadWithEnv loads {currEnv}.yaml through koanf, then overlays
// environment variables, matching the teacher's config.LoadWithEnv.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

// New loads the planner's config, falling back to spec.md §6's
// documented defaults for any unset Planner field (a field left at its
// zero value counts as unset).
func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		defaults := DefaultPlannerConfig()

		return &Config{Planner: &defaults}, nil
	}

	if cfg.Planner == nil {
		defaults := DefaultPlannerConfig()
		cfg.Planner = &defaults
	}

	defaults := reflect.ValueOf(DefaultPlannerConfig())
	fields := reflect.ValueOf(cfg.Planner).Elem()
	for i := 0; i < fields.NumField(); i++ {
		if fields.Field(i).IsZero() {
			fields.Field(i).Set(defaults.Field(i))
		}
	}

	return cfg, nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

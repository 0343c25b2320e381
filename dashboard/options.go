package dashboard

import (
	"fmt"

	"gan_lib/config"
)

const (
	DefaultSampleSize    = 256
	DefaultHistogramBins = 20
)

// Options is the typed view of dashboard_config.
type Options struct {
	Store         string
	DBPath        string
	SampleSize    int
	HistogramBins int
	RunID         string
}

// ParseOptions reads dashboard_config. Unknown keys are ignored; keys present with the
// wrong type are a ConfigError.
func ParseOptions(raw map[string]any) (Options, error) {
	opts := Options{
		Store:         "memory",
		SampleSize:    DefaultSampleSize,
		HistogramBins: DefaultHistogramBins,
	}
	if raw == nil {
		return opts, nil
	}

	stringKeys := map[string]*string{"store": &opts.Store, "db_path": &opts.DBPath, "run_id": &opts.RunID}
	for key, dst := range stringKeys {
		v, present := raw[key]
		if !present || v == nil {
			continue
		}
		s, ok := asString(v)
		if !ok {
			return Options{}, typeError(key, v, "string")
		}
		*dst = s
	}
	intKeys := map[string]*int{"sample_size": &opts.SampleSize, "histogram_bins": &opts.HistogramBins}
	for key, dst := range intKeys {
		v, present := raw[key]
		if !present || v == nil {
			continue
		}
		n, ok := asInt(v)
		if !ok {
			return Options{}, typeError(key, v, "integer")
		}
		if n <= 0 {
			return Options{}, &config.ConfigError{Field: "dashboard_config." + key, Value: fmt.Sprint(n), Reason: "must be > 0"}
		}
		*dst = n
	}

	switch opts.Store {
	case "memory":
	case "sqlite":
		if opts.DBPath == "" {
			return Options{}, &config.ConfigError{Field: "dashboard_config.db_path", Reason: "is required for the sqlite store"}
		}
	default:
		return Options{}, &config.ConfigError{Field: "dashboard_config.store", Value: opts.Store, Reason: "unrecognized value"}
	}
	return opts, nil
}

func typeError(key string, v any, want string) error {
	return &config.ConfigError{
		Field:  "dashboard_config." + key,
		Value:  fmt.Sprint(v),
		Reason: fmt.Sprintf("must be a %s, got %T", want, v),
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if x != float64(int(x)) {
			return 0, false
		}
		return int(x), true
	default:
		return 0, false
	}
}

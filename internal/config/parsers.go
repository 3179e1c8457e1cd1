// Package config loads cadence run settings from flags and YAML or JSON files.
package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Config file values reach applyConfigSettings as whatever viper's decoder
// produced: a budget of 0.5 is a float64, a burst_size of 50 an int, a quoted
// "0.001" a string, and nested sections (headers, feeder, tracing) may be keyed
// by interface{}. The helpers below coerce those into Config field types.

// lookupSetting returns the value stored under the first matching spelling of
// a key, so burst_size, burst-size and burstsize are all accepted. Viper
// lowercases keys, so each candidate is also tried lowercased.
func lookupSetting(settings map[string]interface{}, candidates ...string) (interface{}, bool) {
	for _, key := range candidates {
		if val, ok := settings[key]; ok {
			return val, true
		}
		if val, ok := settings[strings.ToLower(key)]; ok {
			return val, true
		}
	}
	return nil, false
}

func asString(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case []byte:
		return string(v), nil
	default:
		return fmt.Sprint(v), nil
	}
}

// number widens any decoded numeric value to float64.
func number(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// asInt reads counts: burst_size, vus, iterations, expected_status.
// Strings must hold a whole number; fractional numbers are truncated.
func asInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		return strconv.Atoi(s)
	}
	if f, ok := number(value); ok {
		return int(f), nil
	}
	return 0, fmt.Errorf("unsupported numeric type %T", value)
}

// asFloat64 reads start_rate and tracing.sample_rate.
func asFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	}
	if f, ok := number(value); ok {
		return f, nil
	}
	return 0, fmt.Errorf("unsupported float type %T", value)
}

// asBool reads switches such as json_output, allow_failures and feeder.rewind.
func asBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return false, nil
		}
		return strconv.ParseBool(s)
	default:
		return false, fmt.Errorf("unsupported boolean type %T", value)
	}
}

// asDuration reads budget, duration and timeout. Numbers and numeric strings
// are seconds and may be fractional ("0.001" is one millisecond); any other
// string must use Go duration syntax ("30s", "1.5m").
func asDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			return secondsToDuration(secs), nil
		}
		return time.ParseDuration(s)
	}
	if secs, ok := number(value); ok {
		return secondsToDuration(secs), nil
	}
	return 0, fmt.Errorf("unsupported duration type %T", value)
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(math.Round(secs * float64(time.Second)))
}

// eachEntry walks a decoded section whichever key type the decoder chose.
func eachEntry(value interface{}, fn func(key string, val interface{}) error) error {
	switch v := value.(type) {
	case map[string]interface{}:
		for key, val := range v {
			if err := fn(key, val); err != nil {
				return err
			}
		}
	case map[interface{}]interface{}:
		for key, val := range v {
			str, err := asString(key)
			if err != nil {
				return err
			}
			if err := fn(str, val); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("expected map, got %T", value)
	}
	return nil
}

// asStringMap reads the headers section. Header names keep their spelling;
// the loader canonicalizes them.
func asStringMap(value interface{}) (map[string]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		result := make(map[string]string, len(v))
		for k, val := range v {
			result[k] = val
		}
		return result, nil
	}

	result := map[string]string{}
	err := eachEntry(value, func(key string, val interface{}) error {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("header key cannot be empty")
		}
		str, err := asString(val)
		if err != nil {
			return err
		}
		result[key] = str
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// asStringSlice reads the thresholds list. A single string is one threshold.
func asStringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case string:
		return []string{v}, nil
	case []interface{}:
		result := make([]string, len(v))
		for i, item := range v {
			str, err := asString(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			result[i] = str
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unsupported string slice type %T", value)
	}
}

// toStringKeyMap flattens the feeder and tracing sections to lowercase keys.
func toStringKeyMap(value interface{}) (map[string]interface{}, error) {
	result := map[string]interface{}{}
	err := eachEntry(value, func(key string, val interface{}) error {
		result[strings.ToLower(strings.TrimSpace(key))] = val
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

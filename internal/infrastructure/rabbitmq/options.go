package rabbitmq

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection defaults.
const (
	// defaultLocale matches the locale amqp.Dial uses.
	defaultLocale = "en_US"

	// defaultDialTimeout bounds the TCP connect and the AMQP handshake.
	defaultDialTimeout = 30 * time.Second
)

// Option keys understood by BuildConfig.
const (
	OptionHeartbeat      = "heartbeat"
	OptionVhost          = "vhost"
	OptionChannelMax     = "channel_max"
	OptionFrameSize      = "frame_size"
	OptionLocale         = "locale"
	OptionConnectionName = "connection_name"
	OptionProperties     = "properties"
	OptionDialTimeout    = "dial_timeout"
)

// settings is the translated form of a connection options map.
type settings struct {
	config      amqp.Config
	dialTimeout time.Duration
}

// BuildConfig translates a connection options map into an amqp.Config.
//
// Parameters:
//   - options: Passthrough map from connmgr (may be nil)
//
// Returns:
//   - amqp.Config: Config for amqp.DialConfig; always usable, even with an error
//   - error: Joined ErrUnknownOption / ErrInvalidOption problems, or nil
func BuildConfig(options map[string]any) (amqp.Config, error) {
	s, err := buildSettings(options)
	if s.dialTimeout != defaultDialTimeout {
		s.config.Dial = amqp.DefaultDial(s.dialTimeout)
	}
	return s.config, err
}

func buildSettings(options map[string]any) (settings, error) {
	s := settings{
		config: amqp.Config{
			Locale:     defaultLocale,
			Properties: amqp.Table{},
		},
		dialTimeout: defaultDialTimeout,
	}

	var (
		errs           []error
		connectionName string
	)

	for _, key := range slices.Sorted(maps.Keys(options)) {
		value := options[key]
		switch key {
		case OptionHeartbeat:
			d, ok := toDuration(value)
			if !ok || d < 0 {
				errs = append(errs, invalidOption(key, value))
				continue
			}
			s.config.Heartbeat = d

		case OptionDialTimeout:
			d, ok := toDuration(value)
			if !ok || d <= 0 {
				errs = append(errs, invalidOption(key, value))
				continue
			}
			s.dialTimeout = d

		case OptionVhost:
			v, ok := value.(string)
			if !ok {
				errs = append(errs, invalidOption(key, value))
				continue
			}
			s.config.Vhost = v

		case OptionLocale:
			v, ok := value.(string)
			if !ok || v == "" {
				errs = append(errs, invalidOption(key, value))
				continue
			}
			s.config.Locale = v

		case OptionConnectionName:
			v, ok := value.(string)
			if !ok {
				errs = append(errs, invalidOption(key, value))
				continue
			}
			connectionName = v

		case OptionChannelMax:
			n, ok := toInt(value)
			if !ok || n < 0 || n > math.MaxUint16 {
				errs = append(errs, invalidOption(key, value))
				continue
			}
			s.config.ChannelMax = uint16(n)

		case OptionFrameSize:
			n, ok := toInt(value)
			if !ok || n < 0 {
				errs = append(errs, invalidOption(key, value))
				continue
			}
			s.config.FrameSize = n

		case OptionProperties:
			props, ok := toTable(value)
			if !ok {
				errs = append(errs, invalidOption(key, value))
				continue
			}
			maps.Copy(s.config.Properties, props)

		default:
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownOption, key))
		}
	}

	if connectionName != "" {
		s.config.Properties["connection_name"] = connectionName
	}

	return s, errors.Join(errs...)
}

func invalidOption(key string, value any) error {
	return fmt.Errorf("%w: %s=%v (%T)", ErrInvalidOption, key, value, value)
}

// toDuration accepts durations, duration strings and plain numbers of seconds.
func toDuration(v any) (time.Duration, bool) {
	switch d := v.(type) {
	case time.Duration:
		return d, true
	case string:
		if parsed, err := time.ParseDuration(d); err == nil {
			return parsed, true
		}
		secs, err := strconv.Atoi(d)
		if err != nil {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	case float64:
		return time.Duration(d * float64(time.Second)), true
	case float32:
		return time.Duration(float64(d) * float64(time.Second)), true
	}

	n, ok := toInt(v)
	if !ok {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}

// toInt accepts any integer type, integral floats and numeric strings.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case string:
		parsed, err := strconv.Atoi(n)
		return parsed, err == nil
	}
	return 0, false
}

func toTable(v any) (amqp.Table, bool) {
	switch t := v.(type) {
	case amqp.Table:
		return maps.Clone(t), true
	case map[string]any:
		return amqp.Table(maps.Clone(t)), true
	case map[string]string:
		table := make(amqp.Table, len(t))
		for k, val := range t {
			table[k] = val
		}
		return table, true
	}
	return nil, false
}

// FILE: lixenwraith/layered/decode.go
package layered

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// Scan decodes the subtree at path into a tagged Go struct using reflection.
// It is the convenience counterpart of the Decoder: keys match the "toml"
// tag, strings are weakly converted to the field types, and durations,
// times, IPs, CIDRs, URLs and comma-separated lists are parsed. An absent
// path scans an empty table. With struct validation enabled on the builder,
// `validate` tags are checked afterwards.
func (c *Config) Scan(path string, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("scan target must be non-nil pointer, got %T", target)
	}

	section, err := c.Get(path)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		section = EmptyTable()
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "toml",
		WeaklyTypedInput: true,
		DecodeHook:       scanDecodeHook(),
		ZeroFields:       true,
	})
	if err != nil {
		return fmt.Errorf("decoder creation failed: %w", err)
	}

	if err := decoder.Decode(toEncodable(section)); err != nil {
		return &DeserializationError{Path: MustParsePath(path), Reason: err.Error(), Origin: section.Origin()}
	}

	if c.validate != nil {
		if err := c.validate.Struct(target); err != nil {
			var invalid *validator.InvalidValidationError
			if errors.As(err, &invalid) {
				// Not a struct; nothing to validate.
				return nil
			}
			return fmt.Errorf("validation failed for path %q: %w", path, err)
		}
	}
	return nil
}

func scanDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		stringToNetIPHookFunc(),
		stringToNetIPNetHookFunc(),
		stringToURLHookFunc(),

		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func stringToNetIPHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(net.IP{}) {
			return data, nil
		}
		str := data.(string)
		if len(str) > 45 { // longest IPv6 text form
			return nil, fmt.Errorf("invalid IP length: %d", len(str))
		}
		ip := net.ParseIP(str)
		if ip == nil {
			return nil, fmt.Errorf("invalid IP address: %s", str)
		}
		return ip, nil
	}
}

func stringToNetIPNetHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		isPtr := t.Kind() == reflect.Ptr
		if isPtr {
			t = t.Elem()
		}
		if t != reflect.TypeOf(net.IPNet{}) {
			return data, nil
		}
		str := data.(string)
		if len(str) > 49 {
			return nil, fmt.Errorf("invalid CIDR length: %d", len(str))
		}
		_, ipnet, err := net.ParseCIDR(str)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR: %w", err)
		}
		if isPtr {
			return ipnet, nil
		}
		return *ipnet, nil
	}
}

func stringToURLHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		isPtr := t.Kind() == reflect.Ptr
		if isPtr {
			t = t.Elem()
		}
		if t != reflect.TypeOf(url.URL{}) {
			return data, nil
		}
		str := data.(string)
		if len(str) > 2048 {
			return nil, fmt.Errorf("URL too long: %d bytes", len(str))
		}
		u, err := url.Parse(str)
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
		if isPtr {
			return u, nil
		}
		return *u, nil
	}
}

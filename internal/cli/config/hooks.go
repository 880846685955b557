package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

var (
	base64StringType = reflect.TypeOf(Base64String(""))
	bridgeConfigType = reflect.TypeOf(BridgeConfig{})
)

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		base64StringHook,
		bridgeDescriptorHook,
	)
}

// base64StringHook decodes strings assigned to Base64String fields.
func base64StringHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != base64StringType {
		return data, nil
	}
	s := strings.TrimSpace(data.(string))
	if s == "" {
		return Base64String(""), nil
	}
	raw, err := decodeBase64(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 value: %w", err)
	}
	return Base64String(raw), nil
}

// bridgeDescriptorHook decodes a base64 encoded JSON bridge descriptor
// assigned to the bridge section.
func bridgeDescriptorHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != bridgeConfigType {
		return data, nil
	}
	s := strings.TrimSpace(data.(string))
	if s == "" {
		return BridgeConfig{}, nil
	}
	raw, err := decodeBase64(s)
	if err != nil {
		return nil, fmt.Errorf("invalid bridge descriptor: %w", err)
	}
	var b BridgeConfig
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("invalid bridge descriptor: %w", err)
	}
	return b, nil
}

func decodeBase64(s string) ([]byte, error) {
	var err error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		var raw []byte
		if raw, err = enc.DecodeString(s); err == nil {
			return raw, nil
		}
	}
	return nil, err
}

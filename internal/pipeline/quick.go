package pipeline

import (
	"fmt"

	"substore-client/internal/domain"
)

const (
	Default  = "DEFAULT"
	Enabled  = "ENABLED"
	Disabled = "DISABLED"
)

const (
	KeyUseless   = "useless"
	KeyUDP       = "udp"
	KeySkipCert  = "scert"
	KeyTFO       = "tfo"
	KeyVMessAEAD = "vmess aead"
)

// QuickSettingKeys lists the toggles carried by the quick-setting
// operator, in display order.
var QuickSettingKeys = []string{KeyUseless, KeyUDP, KeySkipCert, KeyTFO, KeyVMessAEAD}

// Choice pairs the label a user picks with the value stored in args.
type Choice struct {
	Label string
	Value string
}

var (
	triStateOptions = []Choice{{"DEFAULT", Default}, {"ENABLE", Enabled}, {"DISABLE", Disabled}}
	uselessOptions  = []Choice{{"RETAIN", Disabled}, {"REMOVE", Enabled}}
)

// Options returns the choices for a quick-setting key.
func Options(key string) ([]Choice, bool) {
	switch key {
	case KeyUseless:
		return uselessOptions, true
	case KeyUDP, KeySkipCert, KeyTFO, KeyVMessAEAD:
		return triStateOptions, true
	default:
		return nil, false
	}
}

func defaultValue(key string) string {
	if key == KeyUseless {
		return Disabled
	}
	return Default
}

// normalize maps a label or a value onto the stored value.
func normalize(key, value string) (string, error) {
	options, ok := Options(key)
	if !ok {
		return "", domain.NewValidationError(key, "quick_setting", "unknown quick setting")
	}
	for _, o := range options {
		if value == o.Value || value == o.Label {
			return o.Value, nil
		}
	}
	return "", domain.NewValidationError(key, "oneof", fmt.Sprintf("unsupported value %q", value))
}

// QuickSettings maps every quick-setting key to its stored value.
type QuickSettings map[string]string

func DefaultQuickSettings() QuickSettings {
	q := make(QuickSettings, len(QuickSettingKeys))
	for _, key := range QuickSettingKeys {
		q[key] = defaultValue(key)
	}
	return q
}

// quickSettingsFrom seeds values from an existing operator's args.
// Missing or unrecognized values fall back to the defaults.
func quickSettingsFrom(args map[string]any) QuickSettings {
	q := DefaultQuickSettings()
	for _, key := range QuickSettingKeys {
		raw, ok := args[key].(string)
		if !ok {
			continue
		}
		if v, err := normalize(key, raw); err == nil {
			q[key] = v
		}
	}
	return q
}

func (q QuickSettings) clone() QuickSettings {
	out := make(QuickSettings, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}

// Operator renders the settings as the synthetic chain entry.
func (q QuickSettings) Operator() domain.Operator {
	args := make(map[string]any, len(QuickSettingKeys))
	for _, key := range QuickSettingKeys {
		args[key] = q[key]
	}
	return domain.Operator{Type: domain.QuickSettingType, Args: args}
}

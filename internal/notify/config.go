// Package notify delivers generated reports by e-mail.
package notify

import (
	"fmt"
	"strconv"
	"strings"
)

// Setting keys holding the e-mail configuration.
const (
	SettingHost       = "smtp_host"
	SettingPort       = "smtp_port"
	SettingUser       = "smtp_user"
	SettingPass       = "smtp_pass"
	SettingSSL        = "smtp_ssl"
	SettingTLS        = "smtp_tls"
	SettingRecipients = "recipients"
	SettingEnabled    = "email_enabled"
)

// SettingKeys lists every key read by ConfigFromSettings.
var SettingKeys = []string{
	SettingHost, SettingPort, SettingUser, SettingPass,
	SettingSSL, SettingTLS, SettingRecipients, SettingEnabled,
}

// DefaultPort is the implicit-TLS submission port.
const DefaultPort = 465

// Config is a complete SMTP delivery configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string

	// SSL selects implicit TLS. When false, StartTLS selects STARTTLS;
	// both false means plain SMTP.
	SSL      bool
	StartTLS bool

	Recipients []string
	Enabled    bool
}

// Defaults returns the configuration used for keys that were never set:
// port 465, implicit TLS on, STARTTLS off, delivery off.
func Defaults() Config {
	return Config{Port: DefaultPort, SSL: true}
}

// ConfigFromSettings builds a Config from stored settings. Missing keys take
// their Defaults value. An unparsable port yields Port 0, which Validate
// reports.
func ConfigFromSettings(m map[string]string) Config {
	cfg := Defaults()
	cfg.Host = strings.TrimSpace(m[SettingHost])
	cfg.User = strings.TrimSpace(m[SettingUser])
	cfg.Password = m[SettingPass]
	cfg.Recipients = ParseRecipients(m[SettingRecipients])
	cfg.Enabled = m[SettingEnabled] == "1"

	if raw, ok := m[SettingPort]; ok && strings.TrimSpace(raw) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			port = 0
		}
		cfg.Port = port
	}
	if raw, ok := m[SettingSSL]; ok {
		cfg.SSL = raw == "1"
	}
	if raw, ok := m[SettingTLS]; ok {
		cfg.StartTLS = raw == "1"
	}
	return cfg
}

// Settings is the inverse of ConfigFromSettings.
func (c Config) Settings() map[string]string {
	return map[string]string{
		SettingHost:       c.Host,
		SettingPort:       strconv.Itoa(c.Port),
		SettingUser:       c.User,
		SettingPass:       c.Password,
		SettingSSL:        boolSetting(c.SSL),
		SettingTLS:        boolSetting(c.StartTLS),
		SettingRecipients: strings.Join(c.Recipients, ","),
		SettingEnabled:    boolSetting(c.Enabled),
	}
}

func boolSetting(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// ParseRecipients splits a comma separated list, dropping blanks.
func ParseRecipients(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Validate checks that every field needed for delivery is present.
// It returns a *ConfigError naming all missing fields.
func (c Config) Validate() error {
	var missing []string
	if c.Host == "" {
		missing = append(missing, SettingHost)
	}
	if c.Port <= 0 || c.Port > 65535 {
		missing = append(missing, SettingPort)
	}
	if c.User == "" {
		missing = append(missing, SettingUser)
	}
	if c.Password == "" {
		missing = append(missing, SettingPass)
	}
	if len(c.Recipients) == 0 {
		missing = append(missing, SettingRecipients)
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// String describes the configuration without the password.
func (c Config) String() string {
	mode := "plain"
	switch {
	case c.SSL:
		mode = "ssl"
	case c.StartTLS:
		mode = "starttls"
	}
	return fmt.Sprintf("%s@%s:%d (%s) -> %s", c.User, c.Host, c.Port, mode, strings.Join(c.Recipients, ", "))
}

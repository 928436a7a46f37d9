package connector

import "time"

// Mode selects between the deterministic sandbox carrier and a live
// insurer network.
type Mode string

const (
	ModeSandbox Mode = "sandbox"
	ModeLive    Mode = "live"
)

// Setting keys the hub reads from connector settings.
const (
	// SettingOfficeSequence is the practice's office sequence number,
	// carried on every rail payload.
	SettingOfficeSequence = "officeSequence"
	// SettingWebhookSeed overrides the deployment-wide webhook checksum
	// seed for one org.
	SettingWebhookSeed = "webhookSeed"
)

// Config is one organization's configuration for one rail. The hub
// treats it as read-only reference data owned by the practice management
// layer; it is reloaded on every resolve, never cached.
type Config struct {
	OrgID     string            `json:"orgId"`
	Rail      Rail              `json:"rail"`
	Enabled   bool              `json:"enabled"`
	Mode      Mode              `json:"mode"`
	Settings  map[string]string `json:"settings,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Setting returns a named setting or the fallback when absent.
func (c *Config) Setting(key, fallback string) string {
	if v, ok := c.Settings[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Sandbox returns true unless the config explicitly selects live mode.
// Defaulting to sandbox keeps a half-configured rail from ever reaching
// a real insurer network.
func (c *Config) Sandbox() bool {
	return c.Mode != ModeLive
}

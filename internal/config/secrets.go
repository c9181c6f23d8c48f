package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Wallet.PrivateKey)
	redact(&out.Redis.Password)
	redact(&out.Server.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// RPC URLs often embed provider API keys in the path or query.
	out.Chain.RPCURLs = make([]string, len(cfg.Chain.RPCURLs))
	for i := range cfg.Chain.RPCURLs {
		out.Chain.RPCURLs[i] = redacted
	}

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	out.Venues.Routers = append([]string(nil), cfg.Venues.Routers...)
	out.Notify.Events = append([]string(nil), cfg.Notify.Events...)

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

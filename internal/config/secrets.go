package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)

	redact(&out.Ollama.APIKey)

	redact(&out.Database.DSN)
	redact(&out.Database.Password)

	redact(&out.Redis.Password)

	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	redact(&out.Server.APIKey)

	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices and maps so callers cannot mutate the original through the
	// redacted copy.
	out.Trading.Symbols = append([]string(nil), cfg.Trading.Symbols...)
	out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	out.Polymarket.DiscoveryTags = append([]string(nil), cfg.Polymarket.DiscoveryTags...)
	if cfg.Polymarket.SymbolKeywords != nil {
		out.Polymarket.SymbolKeywords = make(map[string][]string, len(cfg.Polymarket.SymbolKeywords))
		for k, v := range cfg.Polymarket.SymbolKeywords {
			out.Polymarket.SymbolKeywords[k] = append([]string(nil), v...)
		}
	}
	if cfg.Simulation.BasePrices != nil {
		out.Simulation.BasePrices = make(map[string]float64, len(cfg.Simulation.BasePrices))
		for k, v := range cfg.Simulation.BasePrices {
			out.Simulation.BasePrices[k] = v
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

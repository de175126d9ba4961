package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	redact(&out.Privy.AppSecret)

	redact(&out.AuditDB.DSN)
	redact(&out.AuditDB.Password)
	redact(&out.LedgerDB.DSN)
	redact(&out.LedgerDB.Password)

	redact(&out.Redis.Password)

	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	redact(&out.Security.ServiceToken)

	redact(&out.Notify.TelegramToken)

	// Copy slices so callers cannot mutate the original through the
	// redacted copy.
	out.Security.AllowedIPsOrder = cloneStrings(cfg.Security.AllowedIPsOrder)
	out.Security.AllowedIPsAllowance = cloneStrings(cfg.Security.AllowedIPsAllowance)
	out.Security.AllowedIPsTransfer = cloneStrings(cfg.Security.AllowedIPsTransfer)
	out.Whitelist.VerifyingContracts = cloneStrings(cfg.Whitelist.VerifyingContracts)
	out.Whitelist.TokenAddresses = cloneStrings(cfg.Whitelist.TokenAddresses)
	out.Whitelist.SpenderAddresses = cloneStrings(cfg.Whitelist.SpenderAddresses)
	out.Whitelist.TeamWallets = cloneStrings(cfg.Whitelist.TeamWallets)
	out.Notify.Events = cloneStrings(cfg.Notify.Events)

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

package signing

import "strings"

// WhitelistConfig pins the contracts, tokens, spenders, and recipients a
// signing request may reference.
type WhitelistConfig struct {
	ChainID            int64
	VerifyingContracts []string
	TokenAddresses     []string
	SpenderAddresses   []string
	TeamWallets        []string
}

// Whitelist answers membership queries against the pinned address sets.
// Comparisons are case-insensitive; addresses are stored lowercased.
type Whitelist struct {
	chainID   int64
	contracts map[string]bool
	tokens    map[string]bool
	spenders  map[string]bool
	wallets   map[string]bool
}

// NewWhitelist builds a Whitelist from the given configuration.
func NewWhitelist(cfg WhitelistConfig) *Whitelist {
	return &Whitelist{
		chainID:   cfg.ChainID,
		contracts: toSet(cfg.VerifyingContracts),
		tokens:    toSet(cfg.TokenAddresses),
		spenders:  toSet(cfg.SpenderAddresses),
		wallets:   toSet(cfg.TeamWallets),
	}
}

func toSet(addrs []string) map[string]bool {
	set := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		set[strings.ToLower(strings.TrimSpace(a))] = true
	}
	return set
}

// ChainID returns the single chain this broker signs for.
func (w *Whitelist) ChainID() int64 { return w.chainID }

// AllowsContract reports whether addr is a pinned exchange contract.
func (w *Whitelist) AllowsContract(addr string) bool {
	return w.contracts[strings.ToLower(addr)]
}

// AllowsToken reports whether addr is a pinned token contract.
func (w *Whitelist) AllowsToken(addr string) bool {
	return w.tokens[strings.ToLower(addr)]
}

// AllowsSpender reports whether addr may be granted an allowance.
func (w *Whitelist) AllowsSpender(addr string) bool {
	return w.spenders[strings.ToLower(addr)]
}

// AllowsRecipient reports whether addr may receive a commission transfer.
func (w *Whitelist) AllowsRecipient(addr string) bool {
	return w.wallets[strings.ToLower(addr)]
}

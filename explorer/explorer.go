// Package explorer maps transaction hashes to human-viewable explorer pages.
package explorer

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/celerfi/stellar-wallet-sync/models"
)

type Builder struct {
	classicBase  string
	contractBase string
}

// New validates both bases up front; a bad base is a configuration error.
func New(classicBase, contractBase string) (*Builder, error) {
	c, err := normalizeBase(classicBase)
	if err != nil {
		return nil, fmt.Errorf("classic explorer base: %w", err)
	}
	k, err := normalizeBase(contractBase)
	if err != nil {
		return nil, fmt.Errorf("contract explorer base: %w", err)
	}
	return &Builder{classicBase: c, contractBase: k}, nil
}

// Defaults returns the stellar.expert bases for a network.
func Defaults(network models.Network) (classicBase, contractBase string) {
	name := "testnet"
	if network == models.NetworkMainnet {
		name = "public"
	}
	return "https://stellar.expert/explorer/" + name + "/tx",
		"https://stellar.expert/explorer/" + name + "/tx"
}

// Link returns {base-for-kind}/{escaped hash}. Unknown kinds use the classic base.
func (b *Builder) Link(hash string, kind models.TxKind) string {
	base := b.classicBase
	if kind == models.TxKindContract {
		base = b.contractBase
	}
	return base + "/" + url.PathEscape(hash)
}

func normalizeBase(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%q is not an absolute http(s) url", raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("%q must not carry a query or fragment", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

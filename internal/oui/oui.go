// Package oui resolves MAC address prefixes to hardware vendor names
// from an embedded registry. DumaOS reports device MACs but no vendor,
// so the lookup fills in what the router omits.
package oui

import (
	_ "embed"
	"encoding/json"
	"strings"
)

//go:embed data/oui.json
var embeddedDB []byte

type DB struct {
	vendors map[string]string
}

func LoadEmbedded() (*DB, error) {
	return Load(embeddedDB)
}

func Load(data []byte) (*DB, error) {
	m := map[string]string{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	normalized := make(map[string]string, len(m))
	for prefix, vendor := range m {
		normalized[normalizePrefix(prefix)] = strings.TrimSpace(vendor)
	}
	return &DB{vendors: normalized}, nil
}

// Vendor returns the registered vendor for the MAC's OUI prefix, or ""
// when the prefix is unknown.
func (db *DB) Vendor(mac string) string {
	if db == nil {
		return ""
	}
	return db.vendors[normalizePrefix(mac)]
}

func normalizePrefix(v string) string {
	replacer := strings.NewReplacer(":", "", "-", "", ".", "")
	v = strings.ToUpper(strings.TrimSpace(replacer.Replace(v)))
	if len(v) >= 6 {
		return v[:6]
	}
	return v
}

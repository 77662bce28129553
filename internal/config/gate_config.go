package config

import "strings"

type GateConfig interface {
	GetWhitelistedEndpoints() Whitelist
	GetRedirectURI() string
	GetOverwriteRedirectURI() string
}

// Whitelist is a set of route names or slash-trimmed paths exempt from the gate.
type Whitelist map[string]struct{}
type nullValue = struct{}

func NewWhitelist(entries ...string) Whitelist {
	w := Whitelist{}
	for _, e := range entries {
		w.Add(e)
	}
	return w
}

func (w Whitelist) Add(entry string) {
	entry = strings.Trim(strings.TrimSpace(entry), "/")
	if entry != "" {
		w[entry] = nullValue{}
	}
}

func (w Whitelist) Contains(entry string) bool {
	_, ok := w[entry]
	return ok
}

func (w Whitelist) String() string {
	var entries []string
	for k := range w {
		entries = append(entries, k)
	}
	return strings.Join(entries, ",")
}

type Gate struct{}

var _ GateConfig = Gate{}

func (Gate) GetWhitelistedEndpoints() Whitelist {
	return NewWhitelist(splitList(GetEnv("WHITELISTED_ENDPOINTS", "status,healthcheck,health"))...)
}

// GetRedirectURI is the callback path registered with the provider.
func (Gate) GetRedirectURI() string {
	uri := GetEnv("REDIRECT_URI", "/auth")
	if !strings.HasPrefix(uri, "/") {
		uri = "/" + uri
	}
	return uri
}

func (Gate) GetOverwriteRedirectURI() string {
	return GetEnv("OVERWRITE_REDIRECT_URI", "")
}

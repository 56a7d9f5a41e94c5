package discovery

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Service constants.
const (
	ServiceType = "_sockwrap._tcp"
	Domain      = "local."
)

// TXT record keys.
const (
	TXTKeyTLS  = "tls"
	TXTKeyRole = "role"
)

// ErrInvalidInstance is returned for an empty or oversized instance name.
var ErrInvalidInstance = errors.New("invalid instance name")

// maxInstanceLen is the DNS label limit for the instance name.
const maxInstanceLen = 63

// ServiceInfo describes an advertised listener.
type ServiceInfo struct {
	// Instance is the DNS-SD instance name.
	Instance string

	// Port the listener is bound to.
	Port int

	// TLS reports whether accepted connections negotiate TLS.
	TLS bool

	// Role is free-form text describing the listener.
	Role string
}

// Validate checks the fields that end up on the wire.
func (s *ServiceInfo) Validate() error {
	if s.Instance == "" || len(s.Instance) > maxInstanceLen {
		return fmt.Errorf("%w: %q", ErrInvalidInstance, s.Instance)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port %d", s.Port)
	}
	return nil
}

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates TXT records for a listener.
func EncodeTXT(info *ServiceInfo) TXTRecordMap {
	txt := TXTRecordMap{TXTKeyTLS: "0"}
	if info.TLS {
		txt[TXTKeyTLS] = "1"
	}
	if info.Role != "" {
		txt[TXTKeyRole] = info.Role
	}
	return txt
}

// DecodeTXT fills the TXT-derived fields of a ServiceInfo.
func DecodeTXT(txt TXTRecordMap, info *ServiceInfo) {
	info.TLS = txt[TXTKeyTLS] == "1"
	info.Role = txt[TXTKeyRole]
}

// TXTRecordsToStrings converts a map to key=value strings in key order.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	out := make([]string, 0, len(txt))
	for k, v := range txt {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// StringsToTXTRecords parses key=value strings. Entries without '=' are
// kept as keys with empty values.
func StringsToTXTRecords(records []string) TXTRecordMap {
	txt := make(TXTRecordMap, len(records))
	for _, r := range records {
		k, v, _ := strings.Cut(r, "=")
		if k == "" {
			continue
		}
		txt[k] = v
	}
	return txt
}

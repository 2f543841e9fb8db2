package manageapi

import (
	"strings"

	"github.com/red-hat-storage/noobaa-core/internal/errs"
)

// kind names the accepted Go representation of one option value, as
// decoded from JSON/CLI input ahead of dispatch.
type kind string

const (
	kindString kind = "string"
	kindInt    kind = "int"
	kindBool   kind = "bool"
)

// schema maps every option key an action accepts to its expected kind.
// Any key in the caller's Options not present here is rejected with
// InvalidArgument; any present key whose value fails the kind check is
// rejected with InvalidArgumentType (spec §4.2 rule 4).
type schema map[string]kind

func (s schema) validate(opts map[string]any) error {
	for key, v := range opts {
		want, ok := s[key]
		if !ok {
			return errs.Newf(errs.InvalidArgument, "unknown option %q", key)
		}
		if !matchesKind(v, want) {
			return errs.Newf(errs.InvalidArgumentType, "option %q must be a %s", key, want)
		}
	}
	return nil
}

func matchesKind(v any, want kind) bool {
	switch want {
	case kindString:
		_, ok := v.(string)
		return ok
	case kindBool:
		_, ok := v.(bool)
		return ok
	case kindInt:
		switch v.(type) {
		case int, int32, int64, float64:
			return true
		default:
			return false
		}
	default:
		return false
	}
}

func optString(opts map[string]any, key string) string {
	if v, ok := opts[key].(string); ok {
		return v
	}
	return ""
}

func optBool(opts map[string]any, key string) bool {
	if v, ok := opts[key].(bool); ok {
		return v
	}
	return false
}

// optInt returns nil if key is absent, matching §4.2's "uid/gid may be
// omitted" semantics for update.
func optInt(opts map[string]any, key string) *int {
	v, ok := opts[key]
	if !ok {
		return nil
	}
	var i int
	switch n := v.(type) {
	case int:
		i = n
	case int32:
		i = int(n)
	case int64:
		i = int(n)
	case float64:
		i = int(n)
	default:
		return nil
	}
	return &i
}

// optBoolPtr returns nil if key is absent, distinguishing "not supplied"
// from an explicit false (needed for allow_bucket_creation tri-state).
func optBoolPtr(opts map[string]any, key string) *bool {
	v, ok := opts[key].(bool)
	if !ok {
		return nil
	}
	return &v
}

// splitHosts parses the CLI's comma-separated --expected_hosts flag.
func splitHosts(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

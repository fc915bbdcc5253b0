package layer

import (
	"github.com/spf13/cast"
)

// IEMap is a decoded information element map as carried by layer update events.
type IEMap map[string]any

// lookup returns the first non-nil value among keys.
func (m IEMap) lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (m IEMap) Float(def float64, keys ...string) float64 {
	v, ok := m.lookup(keys...)
	if !ok {
		return def
	}
	if _, isBool := v.(bool); isBool {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def
	}
	return f
}

func (m IEMap) Int(def int, keys ...string) int {
	v, ok := m.lookup(keys...)
	if !ok {
		return def
	}
	if _, isBool := v.(bool); isBool {
		return def
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return i
}

func (m IEMap) Bool(def bool, keys ...string) bool {
	v, ok := m.lookup(keys...)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func (m IEMap) String(def string, keys ...string) string {
	v, ok := m.lookup(keys...)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return def
	}
	return s
}

func (m IEMap) Strings(def []string, keys ...string) []string {
	v, ok := m.lookup(keys...)
	if !ok {
		return def
	}
	out, err := cast.ToStringSliceE(v)
	if err != nil || len(out) == 0 {
		return def
	}
	return out
}

// maps returns v as a list of objects, skipping elements that are not objects.
func (m IEMap) maps(keys ...string) ([]IEMap, bool) {
	v, ok := m.lookup(keys...)
	if !ok {
		return nil, false
	}
	items, err := cast.ToSliceE(v)
	if err != nil {
		return nil, false
	}
	out := make([]IEMap, 0, len(items))
	for _, it := range items {
		obj, err := cast.ToStringMapE(it)
		if err != nil {
			continue
		}
		out = append(out, IEMap(obj))
	}
	return out, len(out) > 0
}

func (m IEMap) object(keys ...string) (IEMap, bool) {
	v, ok := m.lookup(keys...)
	if !ok {
		return nil, false
	}
	obj, err := cast.ToStringMapE(v)
	if err != nil {
		return nil, false
	}
	return IEMap(obj), true
}

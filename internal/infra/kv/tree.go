// Package kv holds the pieces shared by the key-value store adapters that
// persist a JSON tree as flat rows (SQLite, Supabase): path validation,
// flattening, subtree assembly, push keys and polling watches.
package kv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Node is one stored leaf: a path and the JSON encoding of a scalar or array.
type Node struct {
	Path  string
	Value json.RawMessage
}

// CleanPath trims surrounding slashes and rejects empty segments and the
// characters the realtime database does not allow in keys.
func CleanPath(p string) (string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return "", fmt.Errorf("kv: empty path")
	}
	for _, seg := range strings.Split(p, "/") {
		if err := validKey(seg); err != nil {
			return "", fmt.Errorf("kv: invalid path %q: %w", p, err)
		}
	}
	return p, nil
}

func validKey(k string) error {
	if k == "" {
		return fmt.Errorf("empty segment")
	}
	if strings.ContainsAny(k, ".$#[]/") {
		return fmt.Errorf("segment %q contains a forbidden character", k)
	}
	return nil
}

// Flatten encodes value and splits it into leaf nodes under path. Objects
// are walked; scalars and arrays become leaves. Null values and empty
// objects produce no nodes, which matches delete semantics.
func Flatten(path string, value any) ([]Node, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("kv: encoding value: %w", err)
	}
	tree, err := decode(raw)
	if err != nil {
		return nil, err
	}

	var out []Node
	if err := walk(path, tree, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walk(p string, v any, out *[]Node) error {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := validKey(k); err != nil {
				return fmt.Errorf("kv: invalid key under %q: %w", p, err)
			}
			if err := walk(p+"/"+k, t[k], out); err != nil {
				return err
			}
		}
		return nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		*out = append(*out, Node{Path: p, Value: b})
		return nil
	}
}

// Assemble rebuilds the JSON subtree rooted at path from its leaf nodes.
// Nodes outside path are ignored. It returns nil when nothing is stored.
// Object keys come out sorted, so equal trees encode to equal bytes.
func Assemble(path string, nodes []Node) (json.RawMessage, error) {
	var root any
	prefix := path + "/"

	for _, n := range nodes {
		val, err := decode(n.Value)
		if err != nil {
			return nil, fmt.Errorf("kv: decoding %q: %w", n.Path, err)
		}
		if n.Path == path {
			if _, isMap := root.(map[string]any); !isMap {
				root = val
			}
			continue
		}
		if !strings.HasPrefix(n.Path, prefix) {
			continue
		}

		obj, ok := root.(map[string]any)
		if !ok {
			obj = map[string]any{}
			root = obj
		}
		segs := strings.Split(strings.TrimPrefix(n.Path, prefix), "/")
		for _, seg := range segs[:len(segs)-1] {
			next, ok := obj[seg].(map[string]any)
			if !ok {
				next = map[string]any{}
				obj[seg] = next
			}
			obj = next
		}
		obj[segs[len(segs)-1]] = val
	}

	if root == nil {
		return nil, nil
	}
	return json.Marshal(root)
}

// Ancestors returns the proper ancestors of path, nearest last.
func Ancestors(path string) []string {
	segs := strings.Split(path, "/")
	out := make([]string, 0, len(segs)-1)
	for i := 1; i < len(segs); i++ {
		out = append(out, strings.Join(segs[:i], "/"))
	}
	return out
}

// ChildKeys returns the sorted child keys of an assembled object. Integer
// keys sort numerically before the rest, which is the realtime database's
// child order.
func ChildKeys(obj map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return KeyLess(keys[i], keys[j]) })
	return keys
}

// KeyLess orders keys the way the realtime database orders children:
// 32-bit integer keys ascending first, then all other keys in byte order.
func KeyLess(a, b string) bool {
	ai, aInt := intKey(a)
	bi, bInt := intKey(b)
	switch {
	case aInt && bInt:
		if ai != bi {
			return ai < bi
		}
		return a < b
	case aInt:
		return true
	case bInt:
		return false
	}
	return a < b
}

func intKey(k string) (int64, bool) {
	if k == "" || len(k) > 11 {
		return 0, false
	}
	if k != "0" && (k[0] == '0' || strings.HasPrefix(k, "-0") || k == "-") {
		return 0, false
	}
	var n int64
	neg := false
	for i, r := range k {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int64(r-'0')
	}
	if neg {
		n = -n
	}
	if n < -2147483648 || n > 2147483647 {
		return 0, false
	}
	return n, true
}

// PushKey returns a new time-ordered child key.
func PushKey() string {
	return uuid.Must(uuid.NewV7()).String()
}

func decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("kv: decoding json: %w", err)
	}
	return v, nil
}

package settings

import (
	"fmt"
	"sort"
	"strings"
)

// JoinPath builds a key path from segments, escaping dots and backslashes.
func JoinPath(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		s = strings.ReplaceAll(s, `\`, `\\`)
		escaped[i] = strings.ReplaceAll(s, ".", `\.`)
	}
	return strings.Join(escaped, ".")
}

// SplitPath reverses JoinPath.
func SplitPath(path string) []string {
	var segs []string
	var cur strings.Builder
	for i := 0; i < len(path); i++ {
		switch c := path[i]; {
		case c == '\\' && i+1 < len(path):
			i++
			cur.WriteByte(path[i])
		case c == '.':
			segs = append(segs, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(segs, cur.String())
}

// PluginKey returns the key path enabling plugin.
func PluginKey(plugin string) string {
	return JoinPath(pluginsKey, plugin)
}

// Leaf is one key path declared by a settings fragment.
type Leaf struct {
	Path  string
	Value interface{}
}

// Flatten turns a nested fragment into leaf key paths sorted by path.
// Nested objects recurse; scalars, arrays and empty objects are leaves.
func Flatten(fragment map[string]interface{}) []Leaf {
	var leaves []Leaf
	var walk func(prefix []string, v interface{})
	walk = func(prefix []string, v interface{}) {
		if m, ok := asMap(v); ok && len(m) > 0 {
			for k, child := range m {
				walk(append(append([]string(nil), prefix...), k), child)
			}
			return
		}
		leaves = append(leaves, Leaf{Path: JoinPath(prefix...), Value: v})
	}
	for k, v := range fragment {
		walk([]string{k}, v)
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].Path < leaves[j].Path })
	return leaves
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	}
	return nil, false
}

// Lookup returns the value at path.
func (d *Document) Lookup(path string) (interface{}, bool) {
	segs := SplitPath(path)
	switch segs[0] {
	case hooksKey:
		if len(segs) == 1 && len(d.Hooks) > 0 {
			return d.Hooks, true
		}
		return nil, false
	case pluginsKey:
		if len(segs) == 1 {
			return d.EnabledPlugins, len(d.EnabledPlugins) > 0
		}
		if len(segs) != 2 {
			return nil, false
		}
		v, ok := d.EnabledPlugins[segs[1]]
		return v, ok
	}

	var cur interface{} = d.Extra
	for _, s := range segs {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[s]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetIfAbsent writes value at path only if nothing is there yet. Missing
// parent objects are created; a non-object in the way counts as present.
// It returns whether the value was written.
func (d *Document) SetIfAbsent(path string, value interface{}) (bool, error) {
	segs := SplitPath(path)
	switch segs[0] {
	case hooksKey:
		return false, fmt.Errorf("key %q is managed through hook registrations", path)
	case pluginsKey:
		enabled, ok := value.(bool)
		if len(segs) != 2 || !ok {
			return false, fmt.Errorf("key %q must be %s.<plugin> with a boolean value", path, pluginsKey)
		}
		if _, exists := d.EnabledPlugins[segs[1]]; exists {
			return false, nil
		}
		d.EnabledPlugins[segs[1]] = enabled
		return true, nil
	}

	cur := d.Extra
	for _, s := range segs[:len(segs)-1] {
		next, exists := cur[s]
		if !exists {
			m := make(map[string]interface{})
			cur[s] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]interface{})
		if !ok {
			return false, nil
		}
		cur = m
	}
	leaf := segs[len(segs)-1]
	if _, exists := cur[leaf]; exists {
		return false, nil
	}
	cur[leaf] = value
	return true, nil
}

// Delete removes the value at path and prunes parents it left empty.
// It returns whether anything was removed.
func (d *Document) Delete(path string) bool {
	segs := SplitPath(path)
	switch segs[0] {
	case hooksKey:
		return false
	case pluginsKey:
		if len(segs) != 2 {
			return false
		}
		if _, ok := d.EnabledPlugins[segs[1]]; !ok {
			return false
		}
		delete(d.EnabledPlugins, segs[1])
		return true
	}
	return deleteIn(d.Extra, segs)
}

func deleteIn(m map[string]interface{}, segs []string) bool {
	if len(segs) == 1 {
		if _, ok := m[segs[0]]; !ok {
			return false
		}
		delete(m, segs[0])
		return true
	}
	child, ok := m[segs[0]].(map[string]interface{})
	if !ok {
		return false
	}
	if !deleteIn(child, segs[1:]) {
		return false
	}
	if len(child) == 0 {
		delete(m, segs[0])
	}
	return true
}

package rewrite

import (
	"net/url"
	"strings"

	"github.com/gaspardpetit/lsrelay/internal/jsonrpc"
)

const fileScheme = "file://"

// Mapping pairs the host and container views of the shared project
// tree. Both roots are absolute, cleaned, and trailing-slash-free;
// internal/config validates this at startup.
type Mapping struct {
	HostRoot      string
	ContainerRoot string
}

// ToContainer returns the rule applied to editor → server traffic.
func (m Mapping) ToContainer() Rule { return Rule{From: m.HostRoot, To: m.ContainerRoot} }

// ToHost returns the rule applied to server → editor traffic.
func (m Mapping) ToHost() Rule { return Rule{From: m.ContainerRoot, To: m.HostRoot} }

// Rule rewrites path strings carrying the From prefix into the To
// prefix. Rules are pure values; both pumps apply them concurrently
// without synchronization.
type Rule struct {
	From string
	To   string
}

// Apply returns a deep copy of v with every string leaf rewritten.
// The rule is applied uniformly regardless of the enclosing key: the
// protocol's extension surface keeps adding path-bearing fields, so no
// closed key set is assumed.
func (r Rule) Apply(v jsonrpc.Value) jsonrpc.Value {
	out, _ := r.ApplyCount(v)
	return out
}

// ApplyCount is Apply plus the number of string leaves rewritten.
func (r Rule) ApplyCount(v jsonrpc.Value) (jsonrpc.Value, int) {
	switch v.Kind() {
	case jsonrpc.KindString:
		s, changed := r.rewriteString(v.StringValue())
		if !changed {
			return v, 0
		}
		return jsonrpc.String(s), 1
	case jsonrpc.KindArray:
		elems := v.Elems()
		out := make([]jsonrpc.Value, len(elems))
		total := 0
		for i, e := range elems {
			var n int
			out[i], n = r.ApplyCount(e)
			total += n
		}
		return jsonrpc.Array(out...), total
	case jsonrpc.KindObject:
		members := v.Members()
		out := make([]jsonrpc.Member, len(members))
		total := 0
		for i, m := range members {
			val, n := r.ApplyCount(m.Value)
			out[i] = jsonrpc.Member{Key: m.Key, Value: val}
			total += n
		}
		return jsonrpc.Object(out...), total
	default:
		return v, 0
	}
}

func (r Rule) rewriteString(s string) (string, bool) {
	if strings.HasPrefix(s, fileScheme) {
		path, err := url.PathUnescape(s[len(fileScheme):])
		if err != nil {
			return s, false
		}
		swapped, ok := r.swapPrefix(path)
		if !ok {
			return s, false
		}
		return fileScheme + escapePath(swapped), true
	}
	return r.swapPrefix(s)
}

// swapPrefix replaces the From prefix with To when the match ends at a
// path-segment boundary, so "/srv/app" never rewrites "/srv/app2".
func (r Rule) swapPrefix(path string) (string, bool) {
	if path == r.From {
		return r.To, true
	}
	if strings.HasPrefix(path, r.From+"/") {
		return r.To + path[len(r.From):], true
	}
	return path, false
}

// escapePath percent-encodes reserved characters while keeping path
// separators intact, following standard URI path encoding.
func escapePath(path string) string {
	u := url.URL{Path: path}
	return u.EscapedPath()
}

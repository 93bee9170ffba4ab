package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Key builds the cache key for a call of fn with positional args.
func Key(fn string, args ...any) string {
	return KeyWithOptions(fn, args, nil)
}

// KeyWithOptions builds the cache key for a call of fn with positional args
// and named options. Options are sorted by name so map order never matters.
//
// Two calls collide when fn and the string form of every argument match, so
// callers must pass arguments whose %v form is stable and distinguishing.
func KeyWithOptions(fn string, args []any, opts map[string]any) string {
	positional := make([]string, len(args))
	for i, a := range args {
		positional[i] = fmt.Sprint(a)
	}

	names := make([]string, 0, len(opts))
	for name := range opts {
		names = append(names, name)
	}
	sort.Strings(names)

	named := make([]string, len(names))
	for i, name := range names {
		named[i] = fmt.Sprintf("%s=%v", name, opts[name])
	}

	return fn + ":" + strings.Join(positional, ",") + ":" + strings.Join(named, ",")
}

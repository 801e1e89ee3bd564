// Package interpolate implements ${VAR} expansion against a scoped
// environment map, as used for cmd, args, database URLs, and action paths
// throughout the bintest engine (spec.md §4.2).
package interpolate

import (
	"strings"

	"github.com/bintest/bintest/internal/bterrors"
)

// Expand substitutes every ${NAME} literal in s with env[NAME]. An
// unresolved name fails with an *bterrors.InterpolationError carrying the
// name and the given where (a human-readable location, e.g.
// "step[run-it].cmd") rather than silently substituting empty. The
// sequence "$${" yields a literal "${" in the output.
func Expand(s, where string, env map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		c := s[i]
		if c != '$' {
			b.WriteByte(c)
			i++
			continue
		}

		// "$${" -> literal "${"
		if i+2 < len(s) && s[i+1] == '$' && s[i+2] == '{' {
			b.WriteString("${")
			i += 3
			continue
		}

		if i+1 < len(s) && s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				// Unclosed reference: treat literally past this point so
				// the caller gets a stable, non-empty output on error
				// paths that only warn.
				b.WriteString(s[i:])
				break
			}
			name := s[i+2 : i+2+end]
			value, ok := env[name]
			if !ok {
				return "", &bterrors.InterpolationError{Name: name, Where: where}
			}
			b.WriteString(value)
			i += 2 + end + 1
			continue
		}

		b.WriteByte(c)
		i++
	}

	return b.String(), nil
}

// ExpandAll applies Expand to every element of ss, in order, stopping at
// the first error.
func ExpandAll(ss []string, where string, env map[string]string) ([]string, error) {
	out := make([]string, len(ss))
	for i, s := range ss {
		v, err := Expand(s, where, env)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

package text

import (
	"fmt"
	"strconv"
	"strings"
)

// Format substitutes {N} with args[N] and {} with the next sequential
// argument. {{ and }} produce literal braces. Placeholders without a
// matching argument are left as written.
func Format(tmpl string, args ...any) string {
	var b strings.Builder
	b.Grow(len(tmpl))
	next := 0

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				b.WriteString(tmpl[i:])
				return b.String()
			}
			field := tmpl[i+1 : i+1+end]
			placeholder := tmpl[i : i+2+end]
			i += 1 + end

			idx := next
			if field == "" {
				next++
			} else {
				n, err := strconv.Atoi(field)
				if err != nil {
					b.WriteString(placeholder)
					continue
				}
				idx = n
			}
			if idx < 0 || idx >= len(args) {
				b.WriteString(placeholder)
				continue
			}
			fmt.Fprint(&b, args[idx])
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

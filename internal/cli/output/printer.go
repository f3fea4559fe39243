// Package output formats server replies for terminal display.
//
// Replies are rendered in the conventional key-value CLI style:
// integers as "(integer) n", absent values as "(nil)", errors as
// "(error) ...", arrays as numbered lines.
package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/noxkv/nox-go/internal/resp"
)

// Reply renders a reply frame for display.
func Reply(f resp.Frame) string {
	var b strings.Builder
	writeFrame(&b, f, "")
	return b.String()
}

func writeFrame(b *strings.Builder, f resp.Frame, indent string) {
	switch v := f.(type) {
	case resp.Simple:
		b.WriteString(string(v))
	case resp.Error:
		b.WriteString("(error) ")
		b.WriteString(string(v))
	case resp.Integer:
		b.WriteString("(integer) ")
		b.WriteString(strconv.FormatInt(int64(v), 10))
	case resp.Bulk:
		b.WriteString(strconv.Quote(string(v)))
	case resp.Null:
		b.WriteString("(nil)")
	case resp.Array:
		if len(v) == 0 {
			b.WriteString("(empty array)")
			return
		}
		for i, item := range v {
			if i > 0 {
				b.WriteByte('\n')
				b.WriteString(indent)
			}
			fmt.Fprintf(b, "%d) ", i+1)
			writeFrame(b, item, indent+"   ")
		}
	default:
		fmt.Fprintf(b, "(unknown frame %T)", f)
	}
}

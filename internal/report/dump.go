package report

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Dump renders the plan as stable text: operation order and content, no
// coordinates. Image boxes are printed to one decimal.
func (p *Plan) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "title %q\n", p.Title)
	for i, pg := range p.Pages {
		fmt.Fprintf(&b, "page %d\n", i+1)
		for _, op := range pg.Ops {
			switch op.Kind {
			case OpText:
				style := ""
				if op.Bold {
					style = "b"
				}
				fmt.Fprintf(&b, "  text %s%g %q\n", style, op.Size, op.Text)
			case OpLine:
				b.WriteString("  line\n")
			case OpImage:
				fmt.Fprintf(&b, "  image %s %.1fx%.1f\n", filepath.Base(op.Image), op.W, op.H)
			}
		}
	}
	return b.String()
}

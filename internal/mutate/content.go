package mutate

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// contentBuilder accumulates page content-stream operators.
type contentBuilder struct {
	buf bytes.Buffer
}

func (b *contentBuilder) Bytes() []byte { return b.buf.Bytes() }

func (b *contentBuilder) rect(x, y, w, h float64, fill color.Color) {
	r, g, bl := rgb(fill)
	fmt.Fprintf(&b.buf, "q\n%s %s %s rg\n%s %s %s %s re\nf\nQ\n",
		num(r), num(g), num(bl), num(x), num(y), num(w), num(h))
}

func (b *contentBuilder) text(font string, size, x, y float64, fill color.Color, s string) {
	r, g, bl := rgb(fill)
	fmt.Fprintf(&b.buf, "q\nBT\n/%s %s Tf\n%s %s %s rg\n1 0 0 1 %s %s Tm\n(%s) Tj\nET\nQ\n",
		font, num(size), num(r), num(g), num(bl), num(x), num(y), escape(winAnsi(s)))
}

// winAnsi encodes s for a standard Type1 font with WinAnsiEncoding. Runes
// outside cp1252 become '?'.
func winAnsi(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return string(out)
}

var stringEscaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`, "\r", `\r`, "\n", `\n`)

func escape(s string) string { return stringEscaper.Replace(s) }

func rgb(c color.Color) (float64, float64, float64) {
	if c == nil {
		return 0, 0, 0
	}
	r, g, b, _ := c.RGBA()
	return float64(r) / 0xffff, float64(g) / 0xffff, float64(b) / 0xffff
}

func num(f float64) string {
	return strconv.FormatFloat(math.Round(f*1000)/1000, 'f', -1, 64)
}

package captcha

import (
	"bytes"
	"fmt"
	"html"

	"github.com/MrEthical07/sensorgate/internal"
)

const (
	svgWidth  = 120
	svgHeight = 40
)

// SVGRenderer draws the code as jittered SVG text over a few noise lines.
type SVGRenderer struct{}

func (SVGRenderer) ContentType() string { return "image/svg+xml" }

func (SVGRenderer) Render(code string) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, svgWidth, svgHeight, svgWidth, svgHeight)
	b.WriteString(`<rect width="100%" height="100%" fill="#f4f4f4"/>`)

	for i := 0; i < 4; i++ {
		pts, err := randInts(4, svgWidth)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#999" stroke-width="1"/>`,
			pts[0], pts[1]%svgHeight, pts[2], pts[3]%svgHeight)
	}

	step := svgWidth / (len(code) + 1)
	for i, c := range code {
		jitter, err := randInts(2, 30)
		if err != nil {
			return nil, err
		}
		x := step * (i + 1)
		y := 26 + jitter[0]%8 - 4
		rot := jitter[1] - 15
		fmt.Fprintf(&b, `<text x="%d" y="%d" font-size="24" font-family="monospace" fill="#333" transform="rotate(%d %d %d)">%s</text>`,
			x, y, rot, x, y, html.EscapeString(string(c)))
	}

	b.WriteString(`</svg>`)
	return b.Bytes(), nil
}

func randInts(n int, max int64) ([]int, error) {
	out := make([]int, n)
	for i := range out {
		v, err := internal.NewIntn(max)
		if err != nil {
			return nil, err
		}
		out[i] = int(v)
	}
	return out, nil
}

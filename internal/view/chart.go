package view

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strconv"
	"strings"

	"github.com/dj-oyu/affectra-dashboard/internal/emotion"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Chart geometry in pixels.
const (
	ChartWidth  = 420
	chartRowH   = 22
	chartPad    = 8
	chartLabelW = 84
)

var (
	chartBackground = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	chartTrack      = color.RGBA{R: 238, G: 238, B: 238, A: 255}
	chartText       = color.RGBA{R: 51, G: 51, B: 51, A: 255}
)

// ChartImage draws one horizontal bar per row. An empty row set yields a
// single "No data" line.
func ChartImage(rows []emotion.Row) *image.RGBA {
	n := len(rows)
	if n == 0 {
		n = 1
	}
	h := chartPad*2 + n*chartRowH
	img := image.NewRGBA(image.Rect(0, 0, ChartWidth, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(chartBackground), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	ascent := face.Metrics().Ascent.Ceil()
	if len(rows) == 0 {
		drawText(img, face, chartPad, chartPad+ascent+4, "No data", chartText)
		return img
	}

	trackW := ChartWidth - chartLabelW - chartPad*2
	for i, row := range rows {
		top := chartPad + i*chartRowH
		drawText(img, face, chartPad, top+ascent+4, row.Emotion, chartText)

		track := image.Rect(chartPad+chartLabelW, top+3, chartPad+chartLabelW+trackW, top+chartRowH-3)
		draw.Draw(img, track, image.NewUniform(chartTrack), image.Point{}, draw.Src)

		barW := int(float64(trackW) * emotion.Width(row.Percent) / 100)
		if barW > 0 {
			bar := image.Rect(track.Min.X, track.Min.Y, track.Min.X+barW, track.Max.Y)
			draw.Draw(img, bar, image.NewUniform(ParseHex(row.Color)), image.Point{}, draw.Src)
		}

		label := strconv.FormatFloat(row.Percent, 'f', -1, 64) + "%"
		tw := font.MeasureString(face, label).Ceil()
		x := track.Max.X - tw - 4
		drawText(img, face, x, top+ascent+4, label, chartText)
	}
	return img
}

// WriteChart encodes the chart for rows as PNG.
func WriteChart(w io.Writer, rows []emotion.Row) error {
	if err := png.Encode(w, ChartImage(rows)); err != nil {
		return fmt.Errorf("encode chart: %w", err)
	}
	return nil
}

func drawText(dst draw.Image, face font.Face, x, y int, text string, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// ParseHex converts "#rgb" or "#rrggbb" into an opaque color. Anything else
// maps to the default emotion color (#333).
func ParseHex(s string) color.RGBA {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if len(s) != 6 || err != nil {
		return chartText
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}

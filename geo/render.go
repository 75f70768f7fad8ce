package geo

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// nrgbaToRGBA converts color.NRGBA to color.RGBA by premultiplying alpha.
// The canvas library expects premultiplied RGBA.
func nrgbaToRGBA(c color.NRGBA) color.RGBA {
	if c.A == 0 {
		return color.RGBA{0, 0, 0, 0}
	}
	if c.A == 255 {
		return color.RGBA{c.R, c.G, c.B, 255}
	}
	alpha32 := uint32(c.A)
	return color.RGBA{
		R: uint8((uint32(c.R) * alpha32) / 255),
		G: uint8((uint32(c.G) * alpha32) / 255),
		B: uint8((uint32(c.B) * alpha32) / 255),
		A: c.A,
	}
}

// MapRenderer draws county outlines through a MapView as vector graphics.
type MapRenderer struct {
	View        *MapView
	Fill        color.NRGBA
	Stroke      color.NRGBA
	StrokeWidth float64
	Highlight   map[string]color.NRGBA // per-GEOID fill overrides
	Labels      bool                   // draw county names on PNG output
	Resolution  canvas.Resolution
}

// NewMapRenderer creates a renderer with the standard palette.
func NewMapRenderer(view *MapView) *MapRenderer {
	return &MapRenderer{
		View:        view,
		Fill:        color.NRGBA{R: 226, G: 232, B: 240, A: 255},
		Stroke:      color.NRGBA{R: 71, G: 85, B: 105, A: 255},
		StrokeWidth: 1.0,
		Highlight:   make(map[string]color.NRGBA),
		Resolution:  canvas.DPI(96),
	}
}

// canvasRenderer is the part of the svg and rasterizer renderers we use.
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the collection as an SVG to the writer.
func (r *MapRenderer) RenderToSVG(w io.Writer, fc *FeatureCollection) error {
	width := r.View.Options.Width
	height := r.View.Options.Height

	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, fc)
	return svgRenderer.Close()
}

// RenderToPNG writes the collection as a PNG to the writer. County name
// labels, when enabled, are drawn at each centroid after rasterization.
func (r *MapRenderer) RenderToPNG(w io.Writer, fc *FeatureCollection) error {
	width := r.View.Options.Width
	height := r.View.Options.Height

	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, fc)

	if r.Labels {
		r.drawLabels(rast, fc)
	}
	return png.Encode(w, rast)
}

// renderToCanvas draws the background and every county path. Canvas
// coordinates grow upward, so screen y is flipped against the viewport
// height.
func (r *MapRenderer) renderToCanvas(renderer canvasRenderer, fc *FeatureCollection) {
	width := r.View.Options.Width
	height := r.View.Options.Height

	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	if fc == nil {
		return
	}

	for _, f := range fc.Features {
		style := canvas.DefaultStyle
		fill := r.Fill
		if hl, ok := r.Highlight[f.GeoID()]; ok {
			fill = hl
		}
		style.Fill = canvas.Paint{Color: nrgbaToRGBA(fill)}
		style.Stroke = canvas.Paint{Color: nrgbaToRGBA(r.Stroke)}
		style.StrokeWidth = r.StrokeWidth

		for _, ring := range FeaturePaths(r.View.Projection, f) {
			cp := &canvas.Path{}
			for i, pt := range ring {
				sp := r.View.Transform.Apply(pt)
				if i == 0 {
					cp.MoveTo(sp[0], height-sp[1])
				} else {
					cp.LineTo(sp[0], height-sp[1])
				}
			}
			cp.Close()
			renderer.RenderPath(cp, style, canvas.Identity)
		}
	}
}

// drawLabels renders each county's name at its screen centroid.
func (r *MapRenderer) drawLabels(img draw.Image, fc *FeatureCollection) {
	for _, f := range fc.Features {
		name := f.Name()
		if name == "" {
			continue
		}
		centroid, ok := FeatureCentroid(r.View.Projection, f)
		if !ok {
			continue
		}
		sp := r.View.Transform.Apply(centroid)
		// Center the label roughly over the centroid.
		x := int(sp[0]) - len(name)*basicfont.Face7x13.Advance/2
		drawText(img, x, int(sp[1]), name, color.RGBA{0, 0, 0, 255})
	}
}

// drawText renders text onto an image at the specified position.
func drawText(img draw.Image, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

package screener

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// AddTextToImage draws text in a bar along the bottom edge of the image.
// The image keeps its dimensions.
func (imgB Image) AddTextToImage(text string) (Image, error) {
	img, err := png.Decode(bytes.NewReader(imgB))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	const padding = 20
	const borderSize = 1

	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if h <= padding*2 {
		return nil, fmt.Errorf("image too small for text (%dx%d)", w, h)
	}

	face, err := loadFont()
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(w, h)
	dc.DrawImage(img, 0, 0)

	yLine := float64(h - padding*2)
	dc.SetColor(color.White)
	dc.DrawRectangle(0, yLine, float64(w), float64(padding*2))
	dc.Fill()
	dc.SetColor(color.Black)
	dc.SetLineWidth(float64(borderSize))
	dc.DrawLine(0, yLine, float64(w), yLine)
	dc.Stroke()
	dc.SetFontFace(face)
	dc.DrawStringAnchored(text, float64(w)/2, yLine+float64(padding), 0.5, 0.35)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return buf.Bytes(), nil
}

var (
	fontOnce sync.Once
	fontFace font.Face
	fontErr  error
)

func loadFont() (font.Face, error) {
	fontOnce.Do(func() {
		ttFont, err := truetype.Parse(goregular.TTF)
		if err != nil {
			fontErr = fmt.Errorf("failed to parse font: %w", err)
			return
		}
		fontFace = truetype.NewFace(ttFont, &truetype.Options{
			Size: 14,
		})
	})
	return fontFace, fontErr
}

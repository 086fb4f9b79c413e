// Package img contains routines for loading and viewing sets of grayscale images.
package img

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
)

var GrayModel = color.ModelFunc(grayModel)

// Gray color stored a float in range 0-1
type Gray struct {
	Y float32
}

func (c Gray) RGBA() (r, g, b, a uint32) {
	y := clampu(c.Y, 0, 1)
	return y, y, y, 0xffff
}

func grayModel(c color.Color) color.Color {
	if _, ok := c.(Gray); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return Gray{Y: 0.299*float32(r)/0xffff + 0.587*float32(g)/0xffff + 0.114*float32(b)/0xffff}
}

// GrayImage type stores the image data as float32 values in row major order.
type GrayImage struct {
	Pix    []float32
	Height int
	Width  int
}

func NewGray(width, height int) *GrayImage {
	return &GrayImage{Pix: make([]float32, height*width), Height: height, Width: width}
}

// FromPixels creates an image from row major float values in range 0-1.
func FromPixels(width, height int, pix []float64) *GrayImage {
	m := NewGray(width, height)
	for i := range m.Pix {
		m.Pix[i] = float32(pix[i])
	}
	return m
}

func (m *GrayImage) ColorModel() color.Model {
	return GrayModel
}

func (m *GrayImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

func (m *GrayImage) GrayAt(x, y int) Gray {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return Gray{}
	}
	return Gray{Y: m.Pix[x+y*m.Width]}
}

func (m *GrayImage) At(x, y int) color.Color {
	return m.GrayAt(x, y)
}

func (m *GrayImage) Set(x, y int, c color.Color) {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return
	}
	m.Pix[x+y*m.Width] = grayModel(c).(Gray).Y
}

// Pixels returns the image data as float64 values
func (m *GrayImage) Pixels() []float64 {
	pix := make([]float64, len(m.Pix))
	for i, v := range m.Pix {
		pix[i] = float64(v)
	}
	return pix
}

// WritePNG saves the image scaled up by the given factor.
func WritePNG(filePath string, m *GrayImage, scale int) error {
	if scale < 1 {
		scale = 1
	}
	dst := image.NewGray(image.Rect(0, 0, m.Width*scale, m.Height*scale))
	for y := 0; y < m.Height*scale; y++ {
		for x := 0; x < m.Width*scale; x++ {
			dst.Set(x, y, m.At(x/scale, y/scale))
		}
	}
	dir, name := filepath.Split(filePath)
	tmpPath := filepath.Join(dir, "."+name)
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	if err = png.Encode(f, dst); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err = f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err = os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func clampu(x, x0, x1 float32) uint32 {
	return uint32(clamp(x, x0, x1) * 0xffff)
}

func clamp(x, x0, x1 float32) float32 {
	if x < x0 {
		return x0
	}
	if x > x1 {
		return x1
	}
	return x
}

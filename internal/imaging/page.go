package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"

	_ "image/gif"
	_ "image/jpeg"
)

// Page is an in-memory raster page handed to the model gateway. Derived crops
// and segments are Pages too; they live only for the extraction call that
// created them.
type Page struct {
	Img image.Image
}

// LoadPage decodes a raster image from disk.
func LoadPage(path string) (*Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return &Page{Img: img}, nil
}

// EncodePNG renders the page as PNG bytes for transport to the model.
func (p *Page) EncodePNG() ([]byte, error) {
	if p == nil || p.Img == nil {
		return nil, fmt.Errorf("empty page")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.Img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

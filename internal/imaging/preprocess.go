package imaging

import (
	"image"
	"image/draw"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/atelierflow/formscan/constants"
)

const (
	// maxSendWidth caps pixel width before transport; handwriting stays legible
	// well below this and oversized pages blow the request size limit.
	maxSendWidth = 2200

	segmentMaxHeight = 1400
	segmentOverlap   = 120

	maxDiscoveredCrops = 12
)

// Preprocess converts a page to grayscale and caps its width.
func Preprocess(p *Page) *Page {
	if p == nil || p.Img == nil {
		return p
	}
	img := p.Img
	b := img.Bounds()

	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)

	if gray.Bounds().Dx() > maxSendWidth {
		scale := float64(maxSendWidth) / float64(gray.Bounds().Dx())
		h := int(float64(gray.Bounds().Dy()) * scale)
		scaled := image.NewGray(image.Rect(0, 0, maxSendWidth, h))
		xdraw.BiLinear.Scale(scaled, scaled.Bounds(), gray, gray.Bounds(), xdraw.Src, nil)
		return &Page{Img: scaled}
	}
	return &Page{Img: gray}
}

// SliceVerticalSegments splits a tall page into overlapping bands so the model
// sees every table section. Pages within ~one band of the cap stay whole.
func SliceVerticalSegments(p *Page) []*Page {
	b := p.Img.Bounds()
	w, h := b.Dx(), b.Dy()
	if h <= segmentMaxHeight+200 {
		return []*Page{p}
	}
	var segments []*Page
	top := 0
	for top < h {
		bottom := top + segmentMaxHeight
		if bottom > h {
			bottom = h
		}
		segments = append(segments, &Page{Img: cropRect(p.Img, image.Rect(b.Min.X, b.Min.Y+top, b.Min.X+w, b.Min.Y+bottom))})
		if bottom == h {
			break
		}
		top = bottom - segmentOverlap
	}
	return segments
}

// FieldFocusedCrops returns band crops covering the regions where the critical
// fields of a document type live. The full page is not included.
func FieldFocusedCrops(p *Page, docType constants.DocType) []*Page {
	b := p.Img.Bounds()
	w, h := b.Dx(), b.Dy()

	band := func(fromFrac, toFrac float64) *Page {
		top := b.Min.Y + int(float64(h)*fromFrac)
		bottom := b.Min.Y + int(float64(h)*toFrac)
		return &Page{Img: cropRect(p.Img, image.Rect(b.Min.X, top, b.Min.X+w, bottom))}
	}

	switch docType {
	case constants.Kosu:
		return []*Page{
			band(0, 0.25),    // header
			band(0.25, 0.75), // hourly table
			band(0.75, 1),    // summary
		}
	case constants.NPT:
		return []*Page{band(0, 0.3)} // header
	}
	return nil
}

func cropRect(img image.Image, r image.Rectangle) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// DiscoverCropPaths finds pre-rendered sibling crops for a page image:
// "<stem>_crop*" next to it and "<stem>*" inside a crops/ subdirectory.
func DiscoverCropPaths(basePath string) []string {
	dir := filepath.Dir(basePath)
	stem := strings.TrimSuffix(filepath.Base(basePath), filepath.Ext(basePath))

	isImage := func(name string) bool {
		switch strings.ToLower(filepath.Ext(name)) {
		case ".png", ".jpg", ".jpeg":
			return true
		}
		return false
	}

	seen := map[string]struct{}{}
	var found []string
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		if st, err := os.Stat(path); err != nil || st.IsDir() {
			return
		}
		seen[path] = struct{}{}
		found = append(found, path)
	}

	if matches, err := filepath.Glob(filepath.Join(dir, stem+"_crop*")); err == nil {
		for _, m := range matches {
			if isImage(m) {
				add(m)
			}
		}
	}
	cropsDir := filepath.Join(dir, "crops")
	if st, err := os.Stat(cropsDir); err == nil && st.IsDir() {
		if matches, err := filepath.Glob(filepath.Join(cropsDir, stem+"*")); err == nil {
			for _, m := range matches {
				if isImage(m) {
					add(m)
				}
			}
		}
	}

	sort.Strings(found)
	if len(found) > maxDiscoveredCrops {
		found = found[:maxDiscoveredCrops]
	}
	return found
}

// GatherSiblingCrops loads and preprocesses discovered crop files. Unreadable
// crops are skipped, never fatal.
func GatherSiblingCrops(basePath string, logger *slog.Logger) []*Page {
	if logger == nil {
		logger = slog.Default()
	}
	var out []*Page
	for _, path := range DiscoverCropPaths(basePath) {
		p, err := LoadPage(path)
		if err != nil {
			logger.Warn("imaging.crop_load_failed", "path", path, "error", err)
			continue
		}
		out = append(out, Preprocess(p))
	}
	return out
}

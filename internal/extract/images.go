package extract

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"

	"github.com/ledongthuc/pdf"
)

// ExtractedImage is one embedded raster image found on a page, already
// normalized to PNG bytes per spec.md §4.4's "file_hash = SHA-256(canonical
// PNG bytes)" requirement.
type ExtractedImage struct {
	PageNumber int
	Index      int
	PNGBytes   []byte
	WidthPx    int
	HeightPx   int
}

// Images walks each page's XObject resources for embedded raster images
// and decodes the ones this module can handle (JPEG/DCTDecode, the
// overwhelmingly common case for scanned service-manual photos and
// diagrams) into canonical PNG bytes. Vector-graphic XObjects and
// filters this module doesn't decode are skipped rather than failing
// the stage — spec.md §4.4 treats vector-graphic rendering as a
// separately config-gated path, not a hard requirement.
func Images(data []byte) ([]ExtractedImage, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("extract: open pdf: %w", err)
	}

	var out []ExtractedImage
	total := r.NumPage()
	for pageNum := 1; pageNum <= total; pageNum++ {
		p := r.Page(pageNum)
		if p.V.IsNull() {
			continue
		}
		res := p.Resources()
		if res.IsNull() {
			continue
		}
		xobjs := res.Key("XObject")
		if xobjs.IsNull() {
			continue
		}

		idx := 0
		for _, key := range xobjs.Keys() {
			obj := xobjs.Key(key)
			if obj.Key("Subtype").Name() != "Image" {
				continue
			}
			img, w, h, ok := decodeImageXObject(obj)
			if !ok {
				continue
			}
			idx++
			out = append(out, ExtractedImage{
				PageNumber: pageNum,
				Index:      idx,
				PNGBytes:   img,
				WidthPx:    w,
				HeightPx:   h,
			})
		}
	}
	return out, nil
}

// decodeImageXObject decodes a single Image XObject into canonical PNG
// bytes. Only the DCTDecode (JPEG) filter is supported directly; other
// filters (CCITTFax, JPX, raw Flate-encoded samples needing a
// ColorSpace/BitsPerComponent interpretation) are left unimplemented and
// simply skipped.
func decodeImageXObject(obj pdf.Value) ([]byte, int, int, bool) {
	filter := obj.Key("Filter").Name()
	if filter != "DCTDecode" {
		return nil, 0, 0, false
	}

	reader := obj.Reader()
	if reader == nil {
		return nil, 0, 0, false
	}
	defer func() { _ = reader.Close() }()

	decoded, err := jpeg.Decode(reader)
	if err != nil {
		return nil, 0, 0, false
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, decoded); err != nil {
		return nil, 0, 0, false
	}

	bounds := decoded.Bounds()
	return buf.Bytes(), bounds.Dx(), bounds.Dy(), true
}

package chathistory

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"strings"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

const dataURIPrefix = "data:"

// Downsample recompresses a data-URI encoded image so that its longer
// side is at most maxDim pixels, preserving aspect ratio, re-encoded as
// JPEG at the given quality (0-1). Inputs that are not embedded image
// data, fail to decode, or already fit within maxDim are returned
// unchanged. Downsample never fails: malformed payloads fall back to
// the original. Safe for concurrent use.
func Downsample(dataURI string, maxDim int, quality float64) string {
	payload, ok := decodeImageDataURI(dataURI)
	if !ok {
		return dataURI
	}

	src, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return dataURI
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return dataURI
	}

	// Scale the longer side down to maxDim.
	var nw, nh int
	if w >= h {
		nw = maxDim
		nh = h * maxDim / w
	} else {
		nh = maxDim
		nw = w * maxDim / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: int(quality * 100)}); err != nil {
		return dataURI
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// decodeImageDataURI extracts the raw bytes of a base64 image data URI.
// It reports false for anything that is not embedded image data.
func decodeImageDataURI(s string) ([]byte, bool) {
	if !strings.HasPrefix(s, dataURIPrefix) {
		return nil, false
	}
	rest := s[len(dataURIPrefix):]

	sep := strings.Index(rest, ",")
	if sep < 0 {
		return nil, false
	}

	meta := rest[:sep]
	if !strings.HasPrefix(meta, "image/") || !strings.HasSuffix(meta, ";base64") {
		return nil, false
	}

	payload, err := base64.StdEncoding.DecodeString(rest[sep+1:])
	if err != nil {
		return nil, false
	}
	return payload, true
}

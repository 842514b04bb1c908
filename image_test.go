package chathistory

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"strings"
	"testing"
)

// makeImageDataURI encodes a solid-color JPEG of the given size as a
// data URI.
func makeImageDataURI(t *testing.T, w, h int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// decodeDims decodes a data URI produced by Downsample and returns its
// pixel dimensions.
func decodeDims(t *testing.T, dataURI string) (int, int) {
	t.Helper()

	payload, ok := decodeImageDataURI(dataURI)
	if !ok {
		t.Fatalf("expected an image data URI, got: %.40s", dataURI)
	}
	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestDownsample(t *testing.T) {
	t.Run("scales an oversized image to the target dimension", func(t *testing.T) {
		in := makeImageDataURI(t, 4000, 3000)

		out := Downsample(in, 800, 0.7)
		w, h := decodeDims(t, out)

		if w != 800 || h != 600 {
			t.Errorf("expected 800x600, got: %dx%d", w, h)
		}
		if !strings.HasPrefix(out, "data:image/jpeg;base64,") {
			t.Error("expected a JPEG data URI")
		}
	})

	t.Run("preserves aspect ratio for portrait images", func(t *testing.T) {
		in := makeImageDataURI(t, 1000, 2000)

		w, h := decodeDims(t, Downsample(in, 800, 0.7))
		if h != 800 || w != 400 {
			t.Errorf("expected 400x800, got: %dx%d", w, h)
		}
	})

	t.Run("returns an image within bounds unchanged", func(t *testing.T) {
		in := makeImageDataURI(t, 640, 480)

		if out := Downsample(in, 800, 0.7); out != in {
			t.Error("expected in-bounds image to be returned unchanged")
		}
	})

	t.Run("returns non-image payloads unchanged", func(t *testing.T) {
		inputs := []string{
			"plain text",
			"data:text/plain;base64,aGVsbG8=",
			"https://example.com/photo.jpg",
			"",
		}
		for _, in := range inputs {
			if out := Downsample(in, 800, 0.7); out != in {
				t.Errorf("expected %q unchanged, got: %.40s", in, out)
			}
		}
	})

	t.Run("returns malformed payloads unchanged", func(t *testing.T) {
		inputs := []string{
			"data:image/jpeg;base64,!!!not-base64!!!",
			"data:image/jpeg;base64,aGVsbG8=", // valid base64, not an image
			"data:image/png",                  // no payload separator
		}
		for _, in := range inputs {
			if out := Downsample(in, 800, 0.7); out != in {
				t.Errorf("expected %q unchanged, got: %.40s", in, out)
			}
		}
	})
}

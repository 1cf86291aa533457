package utils

import (
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDownloadImageSavesToTempFile(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_ = png.Encode(w, img)
	}))
	defer srv.Close()

	f, err := DownloadImage(srv.URL)
	if err != nil {
		t.Fatalf("couldn't download test file: %v", err)
	}
	defer os.Remove(f.Name())

	if !strings.Contains(f.Name(), "image") {
		t.Errorf("the downloaded image should have been saved in a temp file, got %s", f.Name())
	}
}

func TestIsValidUrlAcceptsWellFormedUrl(t *testing.T) {
	if !IsValidUrl("https://example.com/img.png") {
		t.Errorf("a valid URL should have been accepted")
	}
}

func TestIsValidUrlRejectsPlainPath(t *testing.T) {
	if IsValidUrl("/local/path/img.png") {
		t.Errorf("a bare filesystem path should not be treated as a URL")
	}
}

func TestDetectFileContentTypeDetectsPNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.png")
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("could not create sample image: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("could not encode sample image: %v", err)
	}
	f.Close()

	ftype, err := DetectFileContentType(path)
	if err != nil {
		t.Fatalf("could not detect content type: %v", err)
	}
	if !strings.Contains(ftype.(string), "image") {
		t.Errorf("content type expected to be of type image, got: %v", ftype)
	}
}

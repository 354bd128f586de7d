package market

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrUploadFailed is returned when the upload response carries no URL.
var ErrUploadFailed = errors.New("image upload failed")

// UploadedImage is the CDN location and pixel size of an uploaded image.
type UploadedImage struct {
	URL    string
	Width  int
	Height int
}

// UploadImage posts a local image file to the marketplace CDN.
func (c *Client) UploadImage(ctx context.Context, credentialID, path string) (UploadedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return UploadedImage{}, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return UploadedImage{}, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return UploadedImage{}, err
	}
	if err := mw.Close(); err != nil {
		return UploadedImage{}, err
	}

	blob, err := c.Jar.Cookies(ctx, credentialID)
	if err != nil {
		return UploadedImage{}, err
	}
	if err := c.Limiter.Wait(ctx); err != nil {
		return UploadedImage{}, &Error{Kind: KindTransient, API: "upload", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.UploadURL, &buf)
	if err != nil {
		return UploadedImage{}, err
	}
	c.decorate(req, blob)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return UploadedImage{}, &Error{Kind: KindTransient, API: "upload", Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return UploadedImage{}, &Error{Kind: KindTransient, API: "upload", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return UploadedImage{}, &Error{Kind: KindTransient, API: "upload", Err: errors.New(resp.Status)}
	}

	obj := gjson.GetBytes(body, "object")
	url := obj.Get("url").String()
	if url == "" {
		return UploadedImage{}, fmt.Errorf("%w: %s", ErrUploadFailed, truncate(string(body), 200))
	}
	w, h := parsePix(obj.Get("pix").String())
	return UploadedImage{URL: url, Width: w, Height: h}, nil
}

// parsePix reads "800x600"; unknown sizes default to 800x600.
func parsePix(s string) (int, int) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if ok {
		w, err1 := strconv.Atoi(strings.TrimSpace(ws))
		h, err2 := strconv.Atoi(strings.TrimSpace(hs))
		if err1 == nil && err2 == nil && w > 0 && h > 0 {
			return w, h
		}
	}
	return 800, 600
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

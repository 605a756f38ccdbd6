package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
)

var (
	pngData  = append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, []byte("fake png payload")...)
	jpegData = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte("fake jpeg payload")...)
	gifData  = append([]byte("GIF89a"), []byte("fake gif payload")...)
)

type testFile struct {
	name        string
	contentType string
	data        []byte
}

// multipartHeaders builds a real multipart request and returns the parsed
// file headers for the "files" field.
func multipartHeaders(t *testing.T, files ...testFile) []*multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.name))
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("creating part: %v", err)
		}
		part.Write(f.data)
	}
	w.Close()

	r := httptest.NewRequest(http.MethodPost, "/", &buf)
	r.Header.Set("Content-Type", w.FormDataContentType())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		t.Fatalf("parsing multipart form: %v", err)
	}
	return r.MultipartForm.File["files"]
}

func TestReceiver_Open(t *testing.T) {
	headers := multipartHeaders(t, testFile{"photo.png", "image/png", pngData})

	var rc Receiver
	f, closer, err := rc.Open(headers[0])
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer closer.Close()

	if f.Filename != "photo.png" {
		t.Errorf("filename = %q", f.Filename)
	}
	if f.ContentType != "image/png" {
		t.Errorf("content type = %q", f.ContentType)
	}

	// The magic-byte sniff must seek back: the full payload is readable.
	data, err := io.ReadAll(f.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if !bytes.Equal(data, pngData) {
		t.Errorf("body = %q, want full original payload", data)
	}
}

func TestReceiver_Open_DisallowedContentType(t *testing.T) {
	headers := multipartHeaders(t, testFile{"notes.txt", "text/plain", []byte("hello")})

	var rc Receiver
	_, _, err := rc.Open(headers[0])
	if !errors.Is(err, ErrInvalidContentType) {
		t.Errorf("err = %v, want ErrInvalidContentType", err)
	}
}

func TestReceiver_Open_TooLarge(t *testing.T) {
	headers := multipartHeaders(t, testFile{"big.png", "image/png", pngData})

	rc := Receiver{MaxFileSize: 4}
	_, _, err := rc.Open(headers[0])
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("err = %v, want ErrFileTooLarge", err)
	}
}

func TestReceiver_Open_BadMagicBytes(t *testing.T) {
	// Declared as PNG but the content is not an image.
	headers := multipartHeaders(t, testFile{"fake.png", "image/png", []byte("<html>not an image</html>")})

	var rc Receiver
	_, _, err := rc.Open(headers[0])
	if !errors.Is(err, ErrInvalidMagicBytes) {
		t.Errorf("err = %v, want ErrInvalidMagicBytes", err)
	}
}

func TestReceiver_OpenAll(t *testing.T) {
	headers := multipartHeaders(t,
		testFile{"a.png", "image/png", pngData},
		testFile{"b.jpg", "image/jpeg", jpegData},
		testFile{"c.gif", "image/gif", gifData},
	)

	var rc Receiver
	files, closeAll, err := rc.OpenAll(headers)
	if err != nil {
		t.Fatalf("OpenAll: %v", err)
	}
	defer closeAll()

	if len(files) != 3 {
		t.Fatalf("files: got %d, want 3", len(files))
	}
	for i, want := range []string{"a.png", "b.jpg", "c.gif"} {
		if files[i].Filename != want {
			t.Errorf("file %d: name %q, want %q (input order)", i, files[i].Filename, want)
		}
	}
}

func TestReceiver_OpenAll_RejectsWholeBatch(t *testing.T) {
	headers := multipartHeaders(t,
		testFile{"ok.png", "image/png", pngData},
		testFile{"bad.txt", "text/plain", []byte("nope")},
	)

	var rc Receiver
	_, _, err := rc.OpenAll(headers)
	if !errors.Is(err, ErrInvalidContentType) {
		t.Fatalf("err = %v, want ErrInvalidContentType", err)
	}
}

func TestIsValidImageMagicBytes(t *testing.T) {
	webp := append([]byte("RIFF"), 0, 0, 0, 0)
	webp = append(webp, []byte("WEBP")...)

	tests := []struct {
		name string
		buf  []byte
		want bool
	}{
		{"png", pngData, true},
		{"jpeg", jpegData, true},
		{"gif", gifData, true},
		{"webp", webp, true},
		{"html", []byte("<html></html>"), false},
		{"empty", nil, false},
		{"short", []byte{0x89}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isValidImageMagicBytes(tt.buf); got != tt.want {
				t.Errorf("isValidImageMagicBytes = %v, want %v", got, tt.want)
			}
		})
	}
}

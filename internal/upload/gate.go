// Package upload validates and sanitizes inbound files before anything else
// touches them. The only proof of image content it accepts is a successful
// decode; file extensions are ignored.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strings"
	"unicode/utf8"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	MB = 1 << 20

	DefaultMaxSize      = 5 * MB
	DefaultMaxDimension = 10000
	maxBaseNameLength   = 100
)

var ErrValidation = errors.New("validation failed")

// ValidationError carries a reason that is safe to show to the uploader.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func reject(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

type Constraints struct {
	MaxSizeBytes int64
	RequireImage bool
	// MaxDimension bounds width and height of decoded images. Zero disables it.
	MaxDimension int
}

func DefaultConstraints() Constraints {
	return Constraints{
		MaxSizeBytes: DefaultMaxSize,
		RequireImage: true,
		MaxDimension: DefaultMaxDimension,
	}
}

// File is an uploaded file. Size is the size declared by the client; Data is
// what actually arrived.
type File struct {
	Name string
	Size int64
	Data []byte

	// Set by Validate when the content check ran.
	Format      string
	ContentType string
}

var contentTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

// Validate runs sanitization, the size check and, if required, the content
// check, stopping at the first rejection. The returned File shares Data with
// f; neither is modified.
func Validate(f File, c Constraints) (File, error) {
	out := f
	out.Name = Sanitize(f.Name)

	if len(f.Data) == 0 {
		return File{}, reject("file is empty")
	}
	size := max(f.Size, int64(len(f.Data)))
	if c.MaxSizeBytes > 0 && size > c.MaxSizeBytes {
		return File{}, reject("file too large: maximum size is %s", humanSize(c.MaxSizeBytes))
	}

	if !c.RequireImage {
		return out, nil
	}

	format, err := checkImage(f.Data, c.MaxDimension)
	if err != nil {
		return File{}, err
	}
	ct, ok := contentTypes[format]
	if !ok {
		return File{}, reject("image type %q is not allowed", format)
	}
	out.Format = format
	out.ContentType = ct
	return out, nil
}

// checkImage fails closed: any decoder error or panic rejects the file.
func checkImage(data []byte, maxDim int) (format string, err error) {
	defer func() {
		if r := recover(); r != nil {
			format, err = "", reject("file is not a valid image")
		}
	}()

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", reject("file is not a valid image")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", reject("file is not a valid image")
	}
	if maxDim > 0 && (cfg.Width > maxDim || cfg.Height > maxDim) {
		return "", reject("image too large: maximum %dx%d pixels", maxDim, maxDim)
	}

	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return "", reject("file is not a valid image")
	}
	return format, nil
}

var dangerous = strings.NewReplacer(
	"..", "_",
	"/", "_",
	`\`, "_",
	"<", "_",
	">", "_",
	":", "_",
	`"`, "_",
	"|", "_",
	"?", "_",
	"*", "_",
)

// Sanitize reduces a client-supplied filename to a base name that is safe to
// store as metadata. It never fails; unusable input becomes "file".
func Sanitize(name string) string {
	name = strings.ToValidUTF8(name, "_")
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)
	if name == "." || name == "/" {
		return "file"
	}

	name = dangerous.Replace(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, name)

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if utf8.RuneCountInString(base) > maxBaseNameLength {
		base = string([]rune(base)[:maxBaseNameLength])
	}

	name = strings.TrimSpace(base + ext)
	if name == "" {
		return "file"
	}
	return name
}

func humanSize(n int64) string {
	if n%MB == 0 {
		return fmt.Sprintf("%dMB", n/MB)
	}
	return fmt.Sprintf("%d bytes", n)
}

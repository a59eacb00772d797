package mediasvc

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

const (
	DefaultThumbSize = 160
	minThumbSize     = 16
	maxThumbSize     = 640
)

var ErrImageNotFound = core.NewNotFoundError("image")

// Thumbnailer serves square thumbnails of the images stored under the media directory.
// Card sliders show nodes through it.
type Thumbnailer struct {
	dir string
}

func NewThumbnailer(conf *core.Config) *Thumbnailer {
	return &Thumbnailer{dir: conf.MediaDir}
}

// path resolves name inside the media directory. Names may not leave it.
func (t *Thumbnailer) path(name string) (string, error) {
	name = filepath.ToSlash(strings.TrimSpace(name))
	if name == "" || strings.HasPrefix(name, "/") {
		return "", ErrImageNotFound
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." || part == "." || part == "" {
			return "", ErrImageNotFound
		}
	}
	return filepath.Join(t.dir, filepath.FromSlash(name)), nil
}

// Thumbnail writes a size x size JPEG of the image name, cropped to its center.
func (t *Thumbnailer) Thumbnail(w io.Writer, name string, size int) error {
	path, err := t.path(name)
	if err != nil {
		return err
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrImageNotFound
		}
		return errors.Wrapf(err, "opening %s", name)
	}
	thumb := imaging.Thumbnail(img, clampSize(size), clampSize(size), imaging.Lanczos)
	return errors.Wrap(imaging.Encode(w, thumb, imaging.JPEG, imaging.JPEGQuality(85)), "encoding thumbnail")
}

func clampSize(size int) int {
	switch {
	case size <= 0:
		return DefaultThumbSize
	case size < minThumbSize:
		return minThumbSize
	case size > maxThumbSize:
		return maxThumbSize
	}
	return size
}

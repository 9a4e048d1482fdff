package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

// ThumbWidth is the width of generated photo thumbnails.
const ThumbWidth = 300

// Local writes uploads under Dir and serves them from BaseURL. Photos also
// get a JPEG thumbnail under Dir/thumb.
type Local struct {
	Dir     string
	BaseURL string
	Log     logrus.FieldLogger
}

func NewLocal(dir, baseURL string, log logrus.FieldLogger) *Local {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Local{Dir: dir, BaseURL: strings.TrimSuffix(baseURL, "/"), Log: log.WithField("component", "media")}
}

func (l *Local) Upload(ctx context.Context, u Upload) (string, error) {
	f, err := read(u)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := f.key()
	full := filepath.Join(l.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", filepath.Dir(full), err)
	}
	if err := os.WriteFile(full, f.data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", full, err)
	}

	if f.kind == Photo {
		if err := l.thumbnail(f, key); err != nil {
			l.Log.WithError(err).WithField("file", key).Warn("thumbnail failed")
		}
	}
	l.Log.WithFields(logrus.Fields{"file": key, "size": len(f.data), "mime": f.mime}).Info("media stored")
	return l.BaseURL + "/" + key, nil
}

func (l *Local) thumbnail(f file, key string) error {
	img, _, err := image.Decode(bytes.NewReader(f.data))
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	resized := imaging.Resize(img, ThumbWidth, 0, imaging.Lanczos)

	name := strings.TrimSuffix(path.Base(key), path.Ext(key)) + ".jpg"
	dst := filepath.Join(l.Dir, "thumb", name)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(dst), err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create thumbnail: %w", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, resized, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	return nil
}

// Package ffmpeg opens media containers with ffprobe and exposes their
// metadata to the probe package.
package ffmpeg

import (
	"encoding/json"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/anacrolix/ffprobe"
	"github.com/anacrolix/log"
	"github.com/pkg/errors"

	"github.com/anacrolix/frameprobe/cache"
	"github.com/anacrolix/frameprobe/probe"
)

// Backend is a probe.Backend that runs ffprobe. Results are cached per path
// until the file's modification time changes.
type Backend struct {
	Logger log.Logger
	cache  *cache.Cache[string, int64, *ffprobe.Info]
	run    func(path string) (*ffprobe.Info, error)
	access func(path string) error
}

func NewBackend(logger log.Logger) *Backend {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		logger.Levelf(log.Warning, "%v", err)
	}
	return &Backend{
		Logger: logger,
		cache:  cache.New[string, int64, *ffprobe.Info](),
		run:    ffprobe.Run,
		access: checkReadable,
	}
}

func (b *Backend) Open(path string) (probe.Container, error) {
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, errors.WithStack(probe.ErrNotExist)
	}
	if os.IsPermission(err) {
		return nil, errors.Wrap(probe.ErrUnreadable, err.Error())
	}
	if err != nil {
		return nil, errors.Wrap(err, "stat")
	}
	if fi.IsDir() {
		return nil, errors.WithStack(probe.ErrIsDirectory)
	}
	if err := b.access(path); err != nil {
		return nil, errors.Wrap(probe.ErrUnreadable, err.Error())
	}
	stamp := fi.ModTime().UnixNano()
	info, err := b.cache.Get(path, stamp, func() (*ffprobe.Info, int64, error) {
		b.Logger.Levelf(log.Debug, "running ffprobe on %q", path)
		info, err := b.run(path)
		return info, stamp, err
	})
	if err != nil {
		b.Logger.Levelf(log.Debug, "ffprobe %q: %v", path, err)
		return nil, errors.Wrap(probe.ErrNotContainer, err.Error())
	}
	if info == nil {
		return nil, errors.WithStack(probe.ErrNotContainer)
	}
	b.Logger.Levelf(log.Debug, "opened %q, %d files in probe cache", path, b.cache.Len())
	return newContainer(info), nil
}

type container struct {
	format map[string]interface{}
	// The first video stream that isn't cover art, or nil.
	video map[string]interface{}
	open  bool
}

func newContainer(info *ffprobe.Info) *container {
	return &container{
		format: info.Format,
		video:  primaryVideo(info.Streams),
		open:   true,
	}
}

func primaryVideo(streams []map[string]interface{}) map[string]interface{} {
	for _, s := range streams {
		if s["codec_type"] != "video" {
			continue
		}
		if d, ok := s["disposition"].(map[string]interface{}); ok {
			if v, _ := scalar(d["attached_pic"]); v == "1" {
				continue
			}
		}
		return s
	}
	return nil
}

// Metadata resolves field against the primary video stream, or against the
// format section if field has a "format." prefix. Dots descend into nested
// sections such as tags.
func (c *container) Metadata(field string) (string, bool) {
	if !c.open {
		return "", false
	}
	m := c.video
	if strings.HasPrefix(field, "format.") {
		m = c.format
		field = strings.TrimPrefix(field, "format.")
	}
	return lookup(m, field)
}

func (c *container) Close() error {
	c.open = false
	c.format, c.video = nil, nil
	return nil
}

func lookup(m map[string]interface{}, field string) (string, bool) {
	key, rest, nested := strings.Cut(field, ".")
	v, ok := m[key]
	if !ok {
		return "", false
	}
	if nested {
		sub, ok := v.(map[string]interface{})
		if !ok {
			return "", false
		}
		return lookup(sub, rest)
	}
	return scalar(v)
}

// ffprobe writes "N/A" for values it couldn't determine.
func scalar(v interface{}) (string, bool) {
	var s string
	switch v := v.(type) {
	case string:
		s = strings.TrimSpace(v)
	case json.Number:
		s = v.String()
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case bool:
		s = strconv.FormatBool(v)
	default:
		return "", false
	}
	if s == "" || s == "N/A" {
		return "", false
	}
	return s, true
}

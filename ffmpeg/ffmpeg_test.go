package ffmpeg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anacrolix/ffprobe"
	"github.com/anacrolix/log"
	"github.com/pkg/errors"

	"github.com/anacrolix/frameprobe/probe"
)

// Shaped like ffprobe's JSON output for an MP4 with cover art ahead of the
// real video stream.
func sampleInfo() *ffprobe.Info {
	return &ffprobe.Info{
		Format: map[string]interface{}{
			"filename":    "sample_30fps_5s.mp4",
			"format_name": "mov,mp4,m4a,3gp,3g2,mj2",
			"duration":    "5.000000",
			"bit_rate":    "N/A",
		},
		Streams: []map[string]interface{}{
			{
				"index":       float64(0),
				"codec_name":  "mjpeg",
				"codec_type":  "video",
				"disposition": map[string]interface{}{"default": float64(0), "attached_pic": float64(1)},
			},
			{
				"index":          float64(1),
				"codec_name":     "h264",
				"codec_type":     "video",
				"width":          float64(1280),
				"avg_frame_rate": "30/1",
				"nb_frames":      "150",
				"disposition":    map[string]interface{}{"default": float64(1), "attached_pic": float64(0)},
				"tags":           map[string]interface{}{"NUMBER_OF_FRAMES-eng": "150", "language": "und"},
			},
			{
				"index":      float64(2),
				"codec_name": "aac",
				"codec_type": "audio",
				"nb_frames":  "216",
			},
		},
	}
}

func TestContainerMetadata(t *testing.T) {
	c := newContainer(sampleInfo())
	for _, tc := range []struct {
		field    string
		expected string
		ok       bool
	}{
		{"codec_name", "h264", true},
		{"nb_frames", "150", true},
		{"width", "1280", true},
		{"index", "1", true},
		{"tags.NUMBER_OF_FRAMES-eng", "150", true},
		{"tags.NUMBER_OF_FRAMES", "", false},
		{"format.duration", "5.000000", true},
		{"format.bit_rate", "", false},
		{"format.nb_streams", "", false},
		{"disposition", "", false},
		{"codec_name.x", "", false},
	} {
		v, ok := c.Metadata(tc.field)
		if v != tc.expected || ok != tc.ok {
			t.Errorf("%s: got %q, %v; expected %q, %v", tc.field, v, ok, tc.expected, tc.ok)
		}
	}
}

func TestNoVideoStream(t *testing.T) {
	info := &ffprobe.Info{
		Format: map[string]interface{}{"duration": "3.0"},
		Streams: []map[string]interface{}{
			{"codec_type": "audio", "nb_frames": "100"},
		},
	}
	c := newContainer(info)
	if _, ok := c.Metadata(probe.FieldCodecType); ok {
		t.Fatal("audio-only container has a video stream")
	}
	if _, ok := c.Metadata(probe.FieldNbFrames); ok {
		t.Fatal("read audio frame count as video")
	}
	if v, _ := c.Metadata(probe.FieldFormatDuration); v != "3.0" {
		t.Fatal(v)
	}
}

func TestClosedContainer(t *testing.T) {
	c := newContainer(sampleInfo())
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Metadata("nb_frames"); ok {
		t.Fatal("metadata readable after close")
	}
}

type fakeRun struct {
	calls int
	info  *ffprobe.Info
	err   error
}

func (f *fakeRun) run(string) (*ffprobe.Info, error) {
	f.calls++
	return f.info, f.err
}

func newTestBackend(f *fakeRun) *Backend {
	b := NewBackend(log.Default)
	b.run = f.run
	return b
}

func writeFile(t *testing.T, name string) string {
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenMissing(t *testing.T) {
	f := &fakeRun{info: sampleInfo()}
	b := newTestBackend(f)
	_, err := b.Open(filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.Is(err, probe.ErrNotExist) {
		t.Fatal(err)
	}
	if f.calls != 0 {
		t.Fatal("ran ffprobe on a missing file")
	}
}

func TestOpenDirectory(t *testing.T) {
	f := &fakeRun{info: sampleInfo()}
	b := newTestBackend(f)
	if _, err := b.Open(t.TempDir()); !errors.Is(err, probe.ErrIsDirectory) {
		t.Fatal(err)
	}
	if f.calls != 0 {
		t.Fatal("ran ffprobe on a directory")
	}
}

func TestOpenNotContainer(t *testing.T) {
	f := &fakeRun{err: errors.New("exit status 1")}
	b := newTestBackend(f)
	path := writeFile(t, "corrupt.mp4")
	for i := 1; i <= 2; i++ {
		if _, err := b.Open(path); !errors.Is(err, probe.ErrNotContainer) {
			t.Fatal(err)
		}
		if f.calls != i {
			t.Fatalf("failed probe was cached: %d calls", f.calls)
		}
	}
	f.err = nil
	if _, err := b.Open(path); !errors.Is(err, probe.ErrNotContainer) {
		t.Fatalf("nil info: %v", err)
	}
}

func TestOpenCachesUntilModified(t *testing.T) {
	f := &fakeRun{info: sampleInfo()}
	b := newTestBackend(f)
	path := writeFile(t, "sample_30fps_5s.mp4")
	for i := 0; i < 3; i++ {
		c, err := b.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		if v, _ := c.Metadata("nb_frames"); v != "150" {
			t.Fatal(v)
		}
		c.Close()
	}
	if f.calls != 1 {
		t.Fatalf("%d ffprobe runs", f.calls)
	}
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Open(path); err != nil {
		t.Fatal(err)
	}
	if f.calls != 2 {
		t.Fatalf("modified file not re-probed: %d runs", f.calls)
	}
}

func TestClosingOneHandleLeavesCacheIntact(t *testing.T) {
	f := &fakeRun{info: sampleInfo()}
	b := newTestBackend(f)
	path := writeFile(t, "a.mp4")
	c1, err := b.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	c1.Close()
	c2, err := b.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c2.Close()
	if v, ok := c2.Metadata("nb_frames"); !ok || v != "150" {
		t.Fatal(v, ok)
	}
}

func TestProbeWithBackend(t *testing.T) {
	f := &fakeRun{info: sampleInfo()}
	path := writeFile(t, "sample_30fps_5s.mp4")
	r := probe.New(newTestBackend(f), log.Default, nil, nil).Probe(path)
	if r.Err != nil {
		t.Fatal(r.Err)
	}
	if r.Count.String() != "150" || r.Count.Field != probe.FieldNbFrames {
		t.Fatalf("%+v", r.Count)
	}
}

func TestOpenAccessDenied(t *testing.T) {
	f := &fakeRun{info: sampleInfo()}
	b := newTestBackend(f)
	b.access = func(string) error { return os.ErrPermission }
	_, err := b.Open(writeFile(t, "locked.mp4"))
	if !errors.Is(err, probe.ErrUnreadable) {
		t.Fatal(err)
	}
	if f.calls != 0 {
		t.Fatal("ran ffprobe on an unreadable file")
	}
}

// Package probe reports how many frames a video container claims to hold.
//
// A Prober opens a Container through a Backend, reads the count from the
// container's metadata and always releases what it opened. Nothing is
// decoded: the count is only as accurate as the container headers.
package probe

import (
	"fmt"
	"io"

	"github.com/anacrolix/log"
	"github.com/pkg/errors"
)

const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Backend opens media containers by path.
type Backend interface {
	Open(path string) (Container, error)
}

// Container is an opened media resource.
type Container interface {
	// Metadata returns a named scalar field, and whether it's present.
	Metadata(field string) (string, bool)
	Close() error
}

// Handle is an exclusively owned, opened container. It must be released
// exactly once by whoever opened it.
type Handle struct {
	path string
	c    Container
	open bool
}

func (h *Handle) Path() string { return h.path }

func (h *Handle) IsOpen() bool { return h != nil && h.open }

// Release closes the underlying container. Calls after the first do nothing.
func (h *Handle) Release() error {
	if !h.IsOpen() {
		return nil
	}
	h.open = false
	return h.c.Close()
}

type Prober struct {
	Backend Backend
	Logger  log.Logger
	// Derive a count from duration and frame rate when the container
	// doesn't record one.
	Estimate bool
	Stdout   io.Writer
	Stderr   io.Writer
}

func New(backend Backend, logger log.Logger, stdout, stderr io.Writer) *Prober {
	return &Prober{
		Backend: backend,
		Logger:  logger,
		Stdout:  stdout,
		Stderr:  stderr,
	}
}

func (p *Prober) Open(path string) (*Handle, error) {
	c, err := p.Backend.Open(path)
	if err == nil && c == nil {
		err = ErrNotContainer
	}
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	p.Logger.Levelf(log.Debug, "opened %q", path)
	return &Handle{path: path, c: c, open: true}, nil
}

// QueryFrameCount reads the frame count from an open handle. A container
// that doesn't expose one yields an unknown FrameCount and no error. Reading
// has no side effects, so repeated queries agree.
func (p *Prober) QueryFrameCount(h *Handle) (FrameCount, error) {
	if !h.IsOpen() {
		var path string
		if h != nil {
			path = h.path
		}
		return FrameCount{}, &QueryError{Path: path, Err: ErrNotOpen}
	}
	if kind, _ := h.c.Metadata(FieldCodecType); kind != "video" {
		return FrameCount{}, &QueryError{Path: h.path, Err: ErrNoVideoStream}
	}
	for _, f := range countFields {
		v, ok := h.c.Metadata(f)
		if !ok {
			continue
		}
		n, ok := parseCount(v)
		if !ok {
			return FrameCount{}, &QueryError{
				Path:  h.path,
				Field: f,
				Err:   errors.Wrapf(ErrMalformedField, "%q", v),
			}
		}
		return knownCount(n, SourceContainer, f), nil
	}
	if p.Estimate {
		if fc, ok := estimateCount(h.c); ok {
			return fc, nil
		}
	}
	p.Logger.Levelf(log.Debug, "%q exposes no frame count", h.path)
	return FrameCount{}, nil
}

// Result of probing one path.
type Result struct {
	Path  string
	Count FrameCount
	Err   error
}

// Probe opens path, queries its frame count and releases it.
func (p *Prober) Probe(path string) (r Result) {
	r.Path = path
	h, err := p.Open(path)
	if err != nil {
		r.Err = err
		return
	}
	defer func() {
		if err := h.Release(); err != nil {
			p.Logger.Levelf(log.Warning, "releasing %q: %v", path, err)
		}
	}()
	r.Count, r.Err = p.QueryFrameCount(h)
	return
}

// Run probes a single path and reports the outcome, returning the process
// exit code.
func (p *Prober) Run(path string) int {
	return p.Report(p.Probe(path), false)
}

// Report writes the count to Stdout, or a diagnostic to Stderr, and returns
// the corresponding exit code. With prefixed, lines start with the path.
func (p *Prober) Report(r Result, prefixed bool) int {
	var prefix string
	if prefixed {
		prefix = r.Path + ": "
	}
	var openErr *OpenError
	switch {
	case errors.As(r.Err, &openErr):
		fmt.Fprintf(p.Stderr, "%sError opening video file %q: %v\n", prefix, openErr.Path, openErr.Err)
		return ExitFailure
	case r.Err != nil:
		fmt.Fprintf(p.Stderr, "%sError reading frame count: %v\n", prefix, r.Err)
		return ExitFailure
	case !r.Count.Known():
		fmt.Fprintf(p.Stderr, "%sError reading frame count: %q does not record one\n", prefix, r.Path)
		return ExitFailure
	}
	if r.Count.Source == SourceEstimate {
		p.Logger.Levelf(log.Warning, "frame count of %q estimated from duration and %s", r.Path, r.Count.Field)
	}
	fmt.Fprintf(p.Stdout, "%sTotal frames: %s\n", prefix, r.Count)
	return ExitSuccess
}

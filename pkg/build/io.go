package build

import (
	"io"
	"os"
	"strings"

	"golang.org/x/xerrors"
)

// Stream redirect URIs.
const (
	RedirectInherit = "inherit"
	RedirectDiscard = "discard"
	RedirectErr2Out = "err2out"
	RedirectRead    = "read:"
	RedirectWrite   = "write:"
	RedirectAppend  = "append:"
)

// IORedirects says where the standard streams of a nested build go.
// An empty value behaves like "inherit".
type IORedirects struct {
	Stdin  string
	Stdout string
	Stderr string
}

// Validate checks that each stream uses a redirect that makes sense for it.
func (r IORedirects) Validate() error {
	if err := validateRedirect("stdin", r.Stdin, RedirectRead); err != nil {
		return err
	}
	if err := validateRedirect("stdout", r.Stdout, RedirectWrite, RedirectAppend); err != nil {
		return err
	}
	if r.Stderr == RedirectErr2Out {
		return nil
	}
	return validateRedirect("stderr", r.Stderr, RedirectWrite, RedirectAppend)
}

func validateRedirect(stream, uri string, prefixes ...string) error {
	if uri == "" || uri == RedirectInherit || uri == RedirectDiscard {
		return nil
	}
	for _, p := range prefixes {
		if path, ok := strings.CutPrefix(uri, p); ok {
			if path == "" {
				return xerrors.Errorf("%s: empty path in redirect %q", stream, uri)
			}
			return nil
		}
	}
	return xerrors.Errorf("%s: unsupported redirect %q", stream, uri)
}

type streams struct {
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	closers []io.Closer
}

// open resolves the redirects into readers and writers for exec.Cmd.
func (r IORedirects) open() (*streams, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	s := &streams{}
	var err error

	switch {
	case r.Stdin == "" || r.Stdin == RedirectInherit:
		s.stdin = os.Stdin
	case r.Stdin == RedirectDiscard:
		// nil stdin reads from the null device
	default:
		f, oerr := os.Open(strings.TrimPrefix(r.Stdin, RedirectRead))
		if oerr != nil {
			return nil, xerrors.Errorf("stdin: %w", oerr)
		}
		s.closers = append(s.closers, f)
		s.stdin = f
	}

	if s.stdout, err = s.openWriter(r.Stdout, os.Stdout); err != nil {
		s.Close()
		return nil, xerrors.Errorf("stdout: %w", err)
	}

	if r.Stderr == RedirectErr2Out {
		s.stderr = s.stdout
	} else if s.stderr, err = s.openWriter(r.Stderr, os.Stderr); err != nil {
		s.Close()
		return nil, xerrors.Errorf("stderr: %w", err)
	}
	return s, nil
}

func (s *streams) openWriter(uri string, inherit *os.File) (io.Writer, error) {
	var (
		path string
		flag = os.O_WRONLY | os.O_CREATE
	)
	switch {
	case uri == "" || uri == RedirectInherit:
		return inherit, nil
	case uri == RedirectDiscard:
		return io.Discard, nil
	case strings.HasPrefix(uri, RedirectWrite):
		path = strings.TrimPrefix(uri, RedirectWrite)
		flag |= os.O_TRUNC
	default:
		path = strings.TrimPrefix(uri, RedirectAppend)
		flag |= os.O_APPEND
	}

	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, f)
	return f, nil
}

func (s *streams) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	if len(errs) > 0 {
		return xerrors.Errorf("unable to close build streams: %v", errs)
	}
	return nil
}

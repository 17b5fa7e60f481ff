package pseudofs

import "io"

// File is an io.ReadCloser bound to one session of a Resource.  Unlike
// Resource.Read it reports the end of data as io.EOF.
type File struct {
	r Resource
	h Handle
}

// NewFile wraps an already open session.
func NewFile(r Resource, h Handle) *File {
	return &File{r: r, h: h}
}

// OpenFile opens a new session on name and wraps it in a File.
func (ns *Namespace) OpenFile(name string) (*File, error) {
	r, h, err := ns.Open(name)
	if err != nil {
		return nil, err
	}
	return NewFile(r, h), nil
}

// Handle returns the session handle behind f.
func (f *File) Handle() Handle { return f.h }

// Read implements io.Reader.
func (f *File) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	n, err := f.r.Read(f.h, b)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Close implements io.Closer.  Closing twice is an error reported by
// the resource.
func (f *File) Close() error {
	return f.r.Close(f.h)
}

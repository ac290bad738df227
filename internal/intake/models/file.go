package models

// File is the content held by a document slot.
type File interface {
	Name() string
	Size() int64
}

// LocalFile is a document selected in this session. Only local files travel
// to the backend as attachments.
type LocalFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

func (f *LocalFile) Name() string { return f.FileName }
func (f *LocalFile) Size() int64  { return int64(len(f.Data)) }

// RemoteFile is a document the backend already stores, known by URL after an
// application is loaded for editing.
type RemoteFile struct {
	FileName  string
	URL       string
	SizeBytes int64
}

func (f *RemoteFile) Name() string { return f.FileName }
func (f *RemoteFile) Size() int64  { return f.SizeBytes }

// IsLocal reports whether f must be uploaded on the next submission.
func IsLocal(f File) bool {
	_, ok := f.(*LocalFile)
	return ok
}

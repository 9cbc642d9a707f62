package editor

import "errors"

var (
	// ErrUnsupportedType rejects input whose declared MIME type is not a PDF.
	ErrUnsupportedType = errors.New("unsupported content type")
	// ErrParse means the rasterizer could not parse the document bytes.
	ErrParse = errors.New("document could not be parsed")
	// ErrLibraries means the external backends could not be loaded.
	ErrLibraries = errors.New("document libraries unavailable")
	// ErrNoDocument means the operation needs a loaded document.
	ErrNoDocument = errors.New("no document loaded")
	// ErrNothingToExport means the edit overlay is empty.
	ErrNothingToExport = errors.New("nothing to export")
	// ErrNoSurface means a render was requested before a surface exists.
	ErrNoSurface = errors.New("no surface to render onto")
	// ErrInvalidEdit rejects edits with an out-of-range page or index.
	ErrInvalidEdit = errors.New("invalid edit target")
	// ErrBusy means the caller gave up waiting for the session.
	ErrBusy = errors.New("session busy")
)

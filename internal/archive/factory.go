package archive

import (
	"fmt"

	"github.com/reliefgrid/disaster-simulator/internal/archive/jsonfile"
	"github.com/reliefgrid/disaster-simulator/internal/archive/memory"
	"github.com/reliefgrid/disaster-simulator/internal/archive/sqlite"
)

// NewBackend creates the archive backend named by opts. The caller still
// owns Init and Close.
func NewBackend(opts Options) (Backend, error) {
	switch opts.Kind {
	case "memory":
		return memory.New(), nil
	case "jsonfile":
		return jsonfile.New(opts.OutputDir), nil
	case "sqlite":
		return sqlite.New(opts.SQLitePath), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Kind)
	}
}

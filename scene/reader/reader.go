package reader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/achilleasa/darkray/asset"
	"github.com/achilleasa/darkray/scene"
)

var ErrUnsupportedFormat = errors.New("scene reader: unsupported file format")

// A ParseError reports a syntax or semantic error together with the chain
// of includes that led to the offending file.
type ParseError struct {
	File  string
	Line  int
	Msg   string
	Stack []string
}

func (e *ParseError) Error() string {
	var msg string
	if e.File != "" {
		msg = fmt.Sprintf("[%s: %d] error: %s", e.File, e.Line, e.Msg)
	} else {
		msg = fmt.Sprintf("error: %s", e.Msg)
	}
	if len(e.Stack) == 0 {
		return msg
	}
	return msg + "\n" + strings.Join(e.Stack, "\n")
}

// Read a scene from a local file or an http/https URL. Both the .dark scene
// format and plain wavefront .obj meshes are supported.
func ReadScene(ctx context.Context, path string) (*scene.Scene, error) {
	res, err := asset.Open(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	return Read(ctx, res)
}

// Read a scene from an already opened resource.
func Read(ctx context.Context, res *asset.Resource) (*scene.Scene, error) {
	switch res.Ext() {
	case ".dark", ".obj":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, res.Ext())
	}

	return newSceneReader(ctx).Read(res)
}

package renderer

import (
	"errors"

	"github.com/achilleasa/darkray/scene"
)

var (
	ErrSceneNotDefined    = scene.ErrSceneNotDefined
	ErrCameraNotDefined   = scene.ErrCameraNotDefined
	ErrMeshNotDefined     = scene.ErrMeshNotDefined
	ErrMaterialNotDefined = scene.ErrMaterialNotDefined
	ErrInterrupted        = errors.New("renderer: interrupted while rendering")
)

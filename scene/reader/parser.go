package reader

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/achilleasa/darkray/asset"
	"github.com/achilleasa/darkray/log"
	"github.com/achilleasa/darkray/scene"
	"github.com/achilleasa/darkray/types"
)

// Defaults applied when the scene file does not override them.
const (
	DefaultHRes = 640
	DefaultVRes = 480
	DefaultFOV  = 60.0

	maxLineLength = 1 << 20

	// Maximum nesting level for include/call directives.
	maxIncludeDepth = 32
)

type sceneReader struct {
	ctx    context.Context
	logger log.Logger

	// Include chain used for error reporting and the resources currently
	// being parsed along that chain.
	errStack   []string
	activeDeps map[string]bool

	// Geometry. All faces end up in a single mesh.
	meshName   string
	mesh       *scene.Mesh
	vertexList []types.Vec3
	uvList     []types.Vec2
	numNormals int

	// Declared materials and the one selected via usemtl.
	materials      []scene.Material
	matNameToIndex map[string]int
	curMaterial    int

	lights     []*scene.Light
	background types.Color

	// Camera settings.
	eye, look, up types.Vec3
	fov           float64
	hres, vres    int
	cameraPlaced  bool
}

// Create a new scene reader.
func newSceneReader(ctx context.Context) *sceneReader {
	return &sceneReader{
		ctx:            ctx,
		logger:         log.New("scene reader"),
		errStack:       make([]string, 0),
		vertexList:     make([]types.Vec3, 0),
		uvList:         make([]types.Vec2, 0),
		matNameToIndex: make(map[string]int),
		activeDeps:     make(map[string]bool),
		curMaterial:    -1,
		lights:         make([]*scene.Light, 0),
		look:           types.XYZ(0, 0, -1),
		up:             types.XYZ(0, 1, 0),
		fov:            DefaultFOV,
		hres:           DefaultHRes,
		vres:           DefaultVRes,
	}
}

// Read scene definition.
func (r *sceneReader) Read(res *asset.Resource) (*scene.Scene, error) {
	r.logger.Noticef(`parsing scene from "%s"`, res.Path())
	start := time.Now()

	if err := r.parse(res); err != nil {
		return nil, err
	}

	sc := scene.NewScene()
	sc.Background = r.background

	if r.mesh != nil {
		if err := sc.AddMesh(r.mesh); err != nil {
			return nil, err
		}
		if !r.cameraPlaced {
			r.frameMesh()
		}
	}

	cam, err := scene.NewCamera(r.eye, r.look, r.up, r.fov, r.hres, r.vres)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", res.Path(), err)
	}
	sc.SetCamera(cam)

	if len(r.materials) > 1 {
		r.logger.Warningf("scene defines %d materials; only %q is applied", len(r.materials), r.materials[r.curMaterial].Name())
	}
	for _, mat := range r.sceneMaterials() {
		if err := sc.AddMaterial(mat); err != nil {
			return nil, err
		}
	}

	if len(r.lights) == 0 {
		r.logger.Info("no lights defined; adding a point light at the camera eye")
		r.lights = append(r.lights, scene.NewPointLight(types.White, 1, r.eye))
	}
	for _, l := range r.lights {
		sc.AddLight(l)
	}

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", res.Path(), err)
	}

	r.logger.Noticef("parsed scene in %d ms", time.Since(start).Milliseconds())
	return sc, nil
}

// Return the scene materials with the selected material first. A default
// matte material is generated if the scene does not define one.
func (r *sceneReader) sceneMaterials() []scene.Material {
	if len(r.materials) == 0 {
		return []scene.Material{scene.NewMatte("default", types.RGB(0.7, 0.7, 0.7), 0.1, 0.9)}
	}
	if r.curMaterial <= 0 {
		return r.materials
	}

	out := make([]scene.Material, 0, len(r.materials))
	out = append(out, r.materials[r.curMaterial])
	for idx, mat := range r.materials {
		if idx != r.curMaterial {
			out = append(out, mat)
		}
	}
	return out
}

// Place the camera on the +Z side of the mesh so that its bounding box fits
// the vertical field of view.
func (r *sceneReader) frameMesh() {
	bbox := r.mesh.BBox()
	center := bbox[0].Add(bbox[1]).Mul(0.5)
	radius := math.Max(bbox[1].Sub(bbox[0]).Len()*0.5, 1e-3)
	dist := radius / math.Tan(r.fov*math.Pi/360.0)

	r.look = center
	r.eye = center.Add(types.XYZ(0, 0, dist+radius))
	r.up = types.XYZ(0, 1, 0)
	r.logger.Infof("no camera defined; framing mesh from %v", r.eye)
}

// Generate an error that also includes any data in the error stack.
func (r *sceneReader) emitError(file string, line int, msgFormat string, args ...interface{}) error {
	stack := make([]string, len(r.errStack))
	copy(stack, r.errStack)
	return &ParseError{
		File:  file,
		Line:  line,
		Msg:   fmt.Sprintf(msgFormat, args...),
		Stack: stack,
	}
}

// Push a frame to the error stack.
func (r *sceneReader) pushFrame(msg string) {
	r.errStack = append([]string{msg}, r.errStack...)
}

// Pop a frame from the error stack.
func (r *sceneReader) popFrame() {
	r.errStack = r.errStack[1:]
}

// Identify a resource independently of how it was referenced.
func resourceKey(res *asset.Resource) string {
	if res.IsRemote() {
		return res.Path()
	}
	if absPath, err := filepath.Abs(res.Path()); err == nil {
		return absPath
	}
	return filepath.Clean(res.Path())
}

// Parse a .dark scene or .obj mesh stream.
func (r *sceneReader) parse(res *asset.Resource) error {
	var lineNum int
	var err error

	// Included files use 1-based indices relative to their own vertex lists.
	relVertexOffset := len(r.vertexList)
	relUvOffset := len(r.uvList)
	relNormalOffset := r.numNormals

	key := resourceKey(res)
	r.activeDeps[key] = true
	defer delete(r.activeDeps, key)

	scanner := bufio.NewScanner(res)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		lineNum++
		if lineNum%4096 == 0 {
			if err = r.ctx.Err(); err != nil {
				return err
			}
		}

		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		switch lineTokens[0] {
		case "call", "include":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for '%s'; expected 1 argument; got %d`, lineTokens[0], len(lineTokens)-1)
			}

			if len(r.errStack) >= maxIncludeDepth {
				return r.emitError(res.Path(), lineNum, "include depth exceeds %d levels", maxIncludeDepth)
			}

			incRes, err := asset.Open(r.ctx, lineTokens[1], res)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%v", err)
			}
			if r.activeDeps[resourceKey(incRes)] {
				incRes.Close()
				return r.emitError(res.Path(), lineNum, "include cycle: %s", incRes.Path())
			}

			r.pushFrame(fmt.Sprintf("referenced from %s:%d [%s]", res.Path(), lineNum, lineTokens[0]))
			err = r.parse(incRes)
			incRes.Close()
			if err != nil {
				return err
			}
			r.popFrame()
		case "v":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%v", err)
			}
			r.vertexList = append(r.vertexList, v)
		case "vt":
			v, err := parseVec2(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%v", err)
			}
			r.uvList = append(r.uvList, v)
		case "vn":
			if _, err := parseVec3(lineTokens); err != nil {
				return r.emitError(res.Path(), lineNum, "%v", err)
			}
			r.numNormals++
		case "g", "o":
			if len(lineTokens) < 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for '%s'; expected 1 argument for object name; got %d`, lineTokens[0], len(lineTokens)-1)
			}
			if r.meshName == "" {
				r.meshName = lineTokens[1]
			}
		case "f":
			tris, err := r.parseFace(lineTokens, relVertexOffset, relUvOffset, relNormalOffset)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%v", err)
			}

			if r.mesh == nil {
				name := r.meshName
				if name == "" {
					name = "default"
				}
				r.mesh = scene.NewMesh(name)
			}
			for _, tri := range tris {
				r.mesh.AddTriangle(tri)
			}
		case "material":
			if err = r.parseMaterial(lineTokens); err != nil {
				return r.emitError(res.Path(), lineNum, "%v", err)
			}
		case "usemtl":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for 'usemtl'; expected 1 argument; got %d`, len(lineTokens)-1)
			}
			matIndex, exists := r.matNameToIndex[lineTokens[1]]
			if !exists {
				return r.emitError(res.Path(), lineNum, `undefined material with name "%s"`, lineTokens[1])
			}
			r.curMaterial = matIndex
		case "light":
			l, err := parseLight(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%v", err)
			}
			r.lights = append(r.lights, l)
		case "background":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%v", err)
			}
			r.background = types.RGB(v[0], v[1], v[2])
		case "resolution":
			r.hres, r.vres, err = parseResolution(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%v", err)
			}
		case "camera_fov":
			r.fov, err = parseFloat64(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%v", err)
			}
		case "camera_eye":
			r.eye, err = parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%v", err)
			}
			r.cameraPlaced = true
		case "camera_look":
			r.look, err = parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%v", err)
			}
			r.cameraPlaced = true
		case "camera_up":
			r.up, err = parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%v", err)
			}
		case "s", "mtllib":
			// smoothing groups and wavefront material libraries are ignored
		default:
			r.logger.Debugf("[%s: %d] ignoring unknown directive %q", res.Path(), lineNum, lineTokens[0])
		}
	}

	if err = scanner.Err(); err != nil {
		return r.emitError(res.Path(), lineNum, "%v", err)
	}
	return nil
}

// Parse a face definition and triangulate it as a fan around its first
// vertex. Vertex tokens use the wavefront v, v/t, v//n or v/t/n syntax.
func (r *sceneReader) parseFace(lineTokens []string, relVertexOffset, relUvOffset, relNormalOffset int) ([]*scene.Triangle, error) {
	if len(lineTokens) < 4 {
		return nil, fmt.Errorf(`unsupported syntax for 'f'; expected at least 3 arguments; got %d`, len(lineTokens)-1)
	}

	vertices := make([]types.Vec3, 0, len(lineTokens)-1)
	expIndices := 0
	for arg, token := range lineTokens[1:] {
		vTokens := strings.Split(token, "/")

		// The first arg defines the format for the following args
		if arg == 0 {
			expIndices = len(vTokens)
		} else if len(vTokens) != expIndices {
			return nil, fmt.Errorf("expected each face argument to contain %d indices; arg %d contains %d indices", expIndices, arg, len(vTokens))
		}
		if len(vTokens) > 3 {
			return nil, fmt.Errorf("face argument %d contains more than 3 indices", arg)
		}

		vOffset, err := selectFaceCoordIndex(vTokens[0], len(r.vertexList), relVertexOffset)
		if err != nil {
			return nil, fmt.Errorf("could not select vertex for face argument %d: %v", arg, err)
		}
		vertices = append(vertices, r.vertexList[vOffset])

		if len(vTokens) > 1 && vTokens[1] != "" {
			if _, err = selectFaceCoordIndex(vTokens[1], len(r.uvList), relUvOffset); err != nil {
				return nil, fmt.Errorf("could not select texture coordinate for face argument %d: %v", arg, err)
			}
		}
		if len(vTokens) > 2 && vTokens[2] != "" {
			if _, err = selectFaceCoordIndex(vTokens[2], r.numNormals, relNormalOffset); err != nil {
				return nil, fmt.Errorf("could not select normal for face argument %d: %v", arg, err)
			}
		}
	}

	tris := make([]*scene.Triangle, 0, len(vertices)-2)
	for idx := 1; idx < len(vertices)-1; idx++ {
		tris = append(tris, scene.NewTriangle(vertices[0], vertices[idx], vertices[idx+1]))
	}
	return tris, nil
}

// Parse a material definition. Definitions use the following formats:
// material matte name r g b ka kd
// material phong name r g b ka kd ks exp
func (r *sceneReader) parseMaterial(lineTokens []string) error {
	if len(lineTokens) < 3 {
		return fmt.Errorf(`unsupported syntax for 'material'; expected a material type and name; got %d arguments`, len(lineTokens)-1)
	}

	matType, name := lineTokens[1], lineTokens[2]
	if _, exists := r.matNameToIndex[name]; exists {
		return fmt.Errorf(`material "%s" already defined`, name)
	}

	var mat scene.Material
	switch matType {
	case "matte":
		args, err := parseFloats("material matte", lineTokens[3:], 5)
		if err != nil {
			return err
		}
		mat = scene.NewMatte(name, types.RGB(args[0], args[1], args[2]), args[3], args[4])
	case "phong":
		args, err := parseFloats("material phong", lineTokens[3:], 7)
		if err != nil {
			return err
		}
		mat = scene.NewPhong(name, types.RGB(args[0], args[1], args[2]), args[3], args[4], types.White, args[5], args[6])
	default:
		return fmt.Errorf(`unsupported material type "%s"; expected matte or phong`, matType)
	}

	r.materials = append(r.materials, mat)
	r.matNameToIndex[name] = len(r.materials) - 1
	if r.curMaterial < 0 {
		r.curMaterial = 0
	}
	return nil
}

// Parse a light definition. Definitions use the following formats:
// light ambient r g b intensity
// light point r g b intensity x y z
// light directional r g b intensity dx dy dz
func parseLight(lineTokens []string) (*scene.Light, error) {
	if len(lineTokens) < 2 {
		return nil, fmt.Errorf(`unsupported syntax for 'light'; expected a light type; got 0 arguments`)
	}

	switch lineTokens[1] {
	case "ambient":
		args, err := parseFloats("light ambient", lineTokens[2:], 4)
		if err != nil {
			return nil, err
		}
		return scene.NewAmbientLight(types.RGB(args[0], args[1], args[2]), args[3]), nil
	case "point", "directional":
		args, err := parseFloats("light "+lineTokens[1], lineTokens[2:], 7)
		if err != nil {
			return nil, err
		}
		color := types.RGB(args[0], args[1], args[2])
		vec := types.XYZ(args[4], args[5], args[6])
		if lineTokens[1] == "point" {
			return scene.NewPointLight(color, args[3], vec), nil
		}
		if vec.Len() == 0 {
			return nil, fmt.Errorf("directional light requires a non-zero direction")
		}
		return scene.NewDirectionalLight(color, args[3], vec), nil
	}
	return nil, fmt.Errorf(`unsupported light type "%s"; expected ambient, point or directional`, lineTokens[1])
}

// Parse a "resolution W H" row.
func parseResolution(lineTokens []string) (int, int, error) {
	if len(lineTokens) != 3 {
		return 0, 0, fmt.Errorf(`unsupported syntax for 'resolution'; expected 2 arguments; got %d`, len(lineTokens)-1)
	}

	var dims [2]int
	for idx := range dims {
		val, err := strconv.Atoi(lineTokens[idx+1])
		if err != nil {
			return 0, 0, err
		}
		if val <= 0 {
			return 0, 0, fmt.Errorf("resolution must be positive; got %d", val)
		}
		dims[idx] = val
	}
	return dims[0], dims[1], nil
}

// Given an index for a face coord type (vertex, normal, tex) calculate the
// offset into the coord list. Negative indices reference elements from the
// end of the coord list.
func selectFaceCoordIndex(indexToken string, coordListLen int, relOffset int) (int, error) {
	index, err := strconv.ParseInt(indexToken, 10, 32)
	if err != nil {
		return -1, err
	}

	var offset int
	switch {
	case index < 0:
		offset = coordListLen + int(index)
	case index > 0:
		offset = relOffset + int(index-1)
	default:
		return -1, fmt.Errorf("index 0 is not valid")
	}
	if offset < 0 || offset >= coordListLen {
		return -1, fmt.Errorf("index out of bounds")
	}
	return offset, nil
}

// Parse exactly count float arguments for the named directive.
func parseFloats(directive string, args []string, count int) ([]float64, error) {
	if len(args) != count {
		return nil, fmt.Errorf(`unsupported syntax for '%s'; expected %d arguments; got %d`, directive, count, len(args))
	}

	out := make([]float64, count)
	for idx := range out {
		val, err := strconv.ParseFloat(args[idx], 64)
		if err != nil {
			return nil, err
		}
		out[idx] = val
	}
	return out, nil
}

// Parse a float scalar value.
func parseFloat64(lineTokens []string) (float64, error) {
	if len(lineTokens) < 2 {
		return 0, fmt.Errorf(`unsupported syntax for '%s'; expected 1 argument; got %d`, lineTokens[0], len(lineTokens)-1)
	}
	return strconv.ParseFloat(lineTokens[1], 64)
}

// Parse a Vec3 row.
func parseVec3(lineTokens []string) (types.Vec3, error) {
	if len(lineTokens) < 4 {
		return types.Vec3{}, fmt.Errorf(`unsupported syntax for '%s'; expected 3 arguments; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	v := types.Vec3{}
	for tokIdx := 1; tokIdx <= 3; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 64)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = coord
	}
	return v, nil
}

// Parse a Vec2 row.
func parseVec2(lineTokens []string) (types.Vec2, error) {
	if len(lineTokens) < 3 {
		return types.Vec2{}, fmt.Errorf(`unsupported syntax for '%s'; expected 2 arguments; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	v := types.Vec2{}
	for tokIdx := 1; tokIdx <= 2; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 64)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = coord
	}
	return v, nil
}

package focus

import "math"

// Point is a pixel-space coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EyeBox is the axis-aligned bounding rectangle of one eye's contour, in pixels.
// A zero width or height is a valid, degenerate box.
type EyeBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Width returns the horizontal extent of the box.
func (b EyeBox) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent of the box.
func (b EyeBox) Height() float64 { return b.MaxY - b.MinY }

// Center returns the midpoint of the box.
func (b EyeBox) Center() Point {
	return Point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

// Degenerate reports whether the box has no area.
func (b EyeBox) Degenerate() bool { return b.Width() == 0 || b.Height() == 0 }

// Eye is the geometry extracted for one eye. OK is false when any contour or iris point
// fell outside the frame.
type Eye struct {
	Box  EyeBox `json:"box"`
	Iris Point  `json:"iris"`
	OK   bool   `json:"ok"`
}

// Vec3 is a vector in normalized landmark space.
type Vec3 struct {
	X, Y, Z float64
}

func (a Vec3) sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }

func (a Vec3) cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func (a Vec3) norm() float64 { return math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z) }

// FaceVectors are the pose vectors derived from the three anchor landmarks.
// LR runs from the left eye corner to the right one; Normal is the unit face normal.
type FaceVectors struct {
	LR     Vec3
	Normal Vec3
}

// Geometry is everything the extractor pulls out of one landmark snapshot.
type Geometry struct {
	Left  Eye
	Right Eye
	Pose  FaceVectors
}

// ExtractGeometry resolves eye boxes, iris centers and pose vectors for one frame.
// lms must hold at least ix.MaxIndex()+1 landmarks.
func ExtractGeometry(lms []Landmark, width, height int, ix Indices) Geometry {
	return Geometry{
		Left:  extractEye(lms, width, height, ix.LeftEye, ix.LeftIris),
		Right: extractEye(lms, width, height, ix.RightEye, ix.RightIris),
		Pose:  ExtractFaceVectors(lms[ix.LeftEyeOuter], lms[ix.RightEyeOuter], lms[ix.NoseTip]),
	}
}

func extractEye(lms []Landmark, width, height int, contour, iris []int) Eye {
	pts, ok := PixelPoints(lms, width, height, contour)
	if !ok {
		return Eye{}
	}
	center, ok := IrisCenter(lms, width, height, iris)
	if !ok {
		return Eye{Box: BoxOf(pts)}
	}
	return Eye{Box: BoxOf(pts), Iris: center, OK: true}
}

// toPixel denormalizes a landmark and reports whether it lies inside the frame.
func toPixel(l Landmark, width, height int) (float64, float64, bool) {
	w, h := float64(width), float64(height)
	x, y := l.X*w, l.Y*h
	return x, y, x >= 0 && x < w && y >= 0 && y < h
}

// PixelPoints denormalizes the landmarks at indices to integer pixel coordinates.
// It returns false if any point lies outside the frame.
func PixelPoints(lms []Landmark, width, height int, indices []int) ([]Point, bool) {
	pts := make([]Point, 0, len(indices))
	for _, idx := range indices {
		x, y, ok := toPixel(lms[idx], width, height)
		if !ok {
			return nil, false
		}
		pts = append(pts, Point{X: math.Floor(x), Y: math.Floor(y)})
	}
	return pts, len(pts) > 0
}

// BoxOf returns the bounding box of pts, clamped at 0. An empty set yields a zero box.
func BoxOf(pts []Point) EyeBox {
	if len(pts) == 0 {
		return EyeBox{}
	}
	b := EyeBox{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	b.MinX = math.Max(0, b.MinX)
	b.MinY = math.Max(0, b.MinY)
	return b
}

// IrisCenter returns the mean of the iris ring points, floored to integer pixels.
// It returns false if any ring point lies outside the frame.
func IrisCenter(lms []Landmark, width, height int, indices []int) (Point, bool) {
	if len(indices) == 0 {
		return Point{}, false
	}
	var sx, sy float64
	for _, idx := range indices {
		x, y, ok := toPixel(lms[idx], width, height)
		if !ok {
			return Point{}, false
		}
		sx += x
		sy += y
	}
	n := float64(len(indices))
	return Point{X: math.Floor(sx / n), Y: math.Floor(sy / n)}, true
}

// ExtractFaceVectors builds the across-face vector and the unit face normal from the
// left eye corner l, right eye corner r and nose tip n.
func ExtractFaceVectors(l, r, n Landmark) FaceVectors {
	lv := Vec3{l.X, l.Y, l.Z}
	lr := Vec3{r.X, r.Y, r.Z}.sub(lv)
	ln := Vec3{n.X, n.Y, n.Z}.sub(lv)

	normal := lr.cross(ln)
	if mag := normal.norm(); mag < epsilon {
		normal = Vec3{0, 0, -1}
	} else {
		normal = Vec3{normal.X / mag, normal.Y / mag, normal.Z / mag}
	}

	// The normal must face away from the camera.
	if normal.Z > 0 {
		normal = Vec3{-normal.X, -normal.Y, -normal.Z}
	}
	return FaceVectors{LR: lr, Normal: normal}
}

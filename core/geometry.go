package core

import "math"

// WGS-84 ellipsoid parameters (metres).
const (
	wgs84SemiMajor = 6378137.0
	wgs84SemiMinor = 6356752.31424518
)

// EarthRotationRate is the sidereal rotation rate of the Earth in rad/s.
const EarthRotationRate = 7.2921159e-5

// Vec3 is a vector in the launch-site East-North-Up frame, in metres.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns v * k.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns v × other.
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Unit returns v normalised to length one, or the zero vector.
func (v Vec3) Unit() Vec3 {
	n := v.Norm()
	if n == 0 {
		return Vec3{}
	}
	return v.Scale(1 / n)
}

// EarthRadiusAt returns the geocentric radius of the WGS-84 ellipsoid at the
// given geodetic latitude in degrees.
func EarthRadiusAt(latitudeDeg float64) float64 {
	lat := latitudeDeg * math.Pi / 180
	a2 := wgs84SemiMajor * wgs84SemiMajor
	b2 := wgs84SemiMinor * wgs84SemiMinor
	cos, sin := math.Cos(lat), math.Sin(lat)
	num := a2*a2*cos*cos + b2*b2*sin*sin
	den := a2*cos*cos + b2*sin*sin
	return math.Sqrt(num / den)
}

// launchDirection returns the unit vector along a rail with the given
// inclination from the horizon and heading clockwise from north, in degrees.
func launchDirection(inclinationDeg, headingDeg float64) Vec3 {
	inc := inclinationDeg * math.Pi / 180
	hdg := headingDeg * math.Pi / 180
	return Vec3{
		X: math.Cos(inc) * math.Sin(hdg),
		Y: math.Cos(inc) * math.Cos(hdg),
		Z: math.Sin(inc),
	}
}

// offsetToLatLon converts an East/North displacement from a reference point
// into geodetic latitude and longitude using a local spherical approximation.
func offsetToLatLon(lat0, lon0, east, north float64) (float64, float64) {
	r := EarthRadiusAt(lat0)
	dLat := north / r
	lat := lat0 + dLat*180/math.Pi
	cos := math.Cos(lat0 * math.Pi / 180)
	if math.Abs(cos) < 1e-12 {
		return lat, lon0
	}
	dLon := east / (r * cos)
	return lat, lon0 + dLon*180/math.Pi
}

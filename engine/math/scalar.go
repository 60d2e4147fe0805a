package math

import "github.com/chewxy/math32"

const (
	/** @brief An approximate representation of PI. */
	K_PI float32 = 3.14159265358979323846
	/** @brief An approximate representation of PI multiplied by 2. */
	K_PI_2 float32 = 2.0 * K_PI
	/** @brief An approximate representation of PI divided by 2. */
	K_HALF_PI float32 = 0.5 * K_PI
	/** @brief An approximate representation of PI divided by 4. */
	K_QUARTER_PI float32 = 0.25 * K_PI
	/** @brief A multiplier used to convert degrees to radians. */
	K_DEG2RAD_MULTIPLIER float32 = K_PI / 180.0
	/** @brief A multiplier used to convert radians to degrees. */
	K_RAD2DEG_MULTIPLIER float32 = 180.0 / K_PI
	/** @brief The multiplier to convert seconds to milliseconds. */
	K_SEC_TO_MS_MULTIPLIER float32 = 1000.0
	/** @brief A huge number that should be larger than any valid number used. */
	K_INFINITY float32 = 1e30
	/** @brief Smallest positive number where 1.0 + FLOAT_EPSILON != 0 */
	K_FLOAT_EPSILON float32 = 1.192092896e-07
)

func Sin(x float32) float32 { return math32.Sin(x) }

func Cos(x float32) float32 { return math32.Cos(x) }

func Tan(x float32) float32 { return math32.Tan(x) }

func Acos(x float32) float32 { return math32.Acos(x) }

func Atan2(y, x float32) float32 { return math32.Atan2(y, x) }

func Sqrt(x float32) float32 { return math32.Sqrt(x) }

func Abs(x float32) float32 { return math32.Abs(x) }

/**
 * @brief Converts provided degrees to radians.
 *
 * @param degrees The degrees to be converted.
 * @return The amount in radians.
 */
func DegToRad(degrees float32) float32 {
	return degrees * K_DEG2RAD_MULTIPLIER
}

/**
 * @brief Converts provided radians to degrees.
 *
 * @param radians The radians to be converted.
 * @return The amount in degrees.
 */
func RadToDeg(radians float32) float32 {
	return radians * K_RAD2DEG_MULTIPLIER
}

// SphericalToCartesian converts a radius, azimuth theta and polar angle phi
// into a y-up cartesian position.
func SphericalToCartesian(radius, theta, phi float32) Vec3 {
	return Vec3{
		X: radius * Sin(phi) * Cos(theta),
		Y: radius * Cos(phi),
		Z: radius * Sin(phi) * Sin(theta),
	}
}

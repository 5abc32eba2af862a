package world

import (
	"math"
)

// heightNoise is seeded 2D value noise summed over octaves. Samples lie in
// [0,1] and are stable across runs for the same seed.
type heightNoise struct {
	seed        int64
	octaves     int
	persistence float64 // amplitude factor per octave
	lacunarity  float64 // frequency factor per octave
}

// at samples the noise at (x, z).
func (n heightNoise) at(x, z float64) float64 {
	amp, freq := 1.0, 1.0
	var sum, total float64
	for i := range n.octaves {
		sum += amp * smoothLattice(x*freq, z*freq, n.seed+int64(i)*131)
		total += amp
		amp *= n.persistence
		freq *= n.lacunarity
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

// smoothLattice interpolates the four lattice values around (x, z) with a
// quintic ease so that the surface has no creases at cell borders.
func smoothLattice(x, z float64, seed int64) float64 {
	cx, cz := math.Floor(x), math.Floor(z)
	ix, iz := int64(cx), int64(cz)
	tx, tz := ease(x-cx), ease(z-cz)

	top := mix(latticeValue(ix, iz, seed), latticeValue(ix+1, iz, seed), tx)
	bottom := mix(latticeValue(ix, iz+1, seed), latticeValue(ix+1, iz+1, seed), tx)
	return mix(top, bottom, tz)
}

func ease(t float64) float64 {
	return t * t * t * (10 + t*(6*t-15))
}

func mix(a, b, t float64) float64 {
	return a + (b-a)*t
}

// latticeValue maps a lattice point to [0,1].
func latticeValue(x, z, seed int64) float64 {
	return float64(mixHash(x, z, seed)>>11) / (1 << 53)
}

// mixHash finalises the lattice key with the splitmix64 mixer.
func mixHash(x, z, seed int64) uint64 {
	const golden = 0x9E3779B97F4A7C15
	v := uint64(x)*0xD6E8FEB86659FD93 ^ uint64(z)*0xA0761D6478BD642F ^ uint64(seed)*golden
	v += golden
	v = (v ^ v>>30) * 0xBF58476D1CE4E5B9
	v = (v ^ v>>27) * 0x94D049BB133111EB
	return v ^ v>>31
}

package character

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// IdentityDims is the length of demo identity vectors.
const IdentityDims = 128

const maxSeed = 2147483647

// CharHash maps a character id to a stable, non-zero 31-bit seed.
func CharHash(id string) int {
	return seed(id)
}

// SceneSeed derives the per-scene render seed for a character.
func SceneSeed(id string, sceneIndex int) int {
	return seed(id, sceneIndex)
}

func seed(values ...any) int {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprint(v))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	value := int(binary.BigEndian.Uint32(sum[:4]) % maxSeed)
	if value == 0 {
		value = int(binary.BigEndian.Uint32(sum[4:8]) % maxSeed)
		if value == 0 {
			value = 1
		}
	}
	return value
}

// IdentityVector returns a unit length embedding derived only from id.
func IdentityVector(id string) []float32 {
	vec := make([]float32, IdentityDims)
	var norm float64
	for block := 0; block*8 < IdentityDims; block++ {
		sum := sha256.Sum256([]byte(fmt.Sprintf("identity|%s|%d", id, block)))
		for i := 0; i < 8 && block*8+i < IdentityDims; i++ {
			u := binary.BigEndian.Uint32(sum[i*4 : i*4+4])
			v := float64(u)/float64(math.MaxUint32)*2 - 1
			vec[block*8+i] = float32(v)
			norm += v * v
		}
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// Similarity is the cosine similarity of two identity vectors.
func Similarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

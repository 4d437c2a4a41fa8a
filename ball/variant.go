package ball

import (
	"fmt"
	"strings"
)

// Difficulty selects how erratic a ball is on bounces and hits.
type Difficulty int

const (
	Easy Difficulty = iota
	Hard
)

func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "easy"
	case Hard:
		return "hard"
	default:
		return "unknown"
	}
}

// RandomnessFactor is added to or subtracted from a velocity component on each
// bounce or paddle hit.
func (d Difficulty) RandomnessFactor() int {
	if d == Hard {
		return 2
	}
	return 1
}

// Size is the geometric class of a ball.
type Size int

const (
	Small Size = iota
	Medium
	Big
)

// Sizes lists every size class.
var Sizes = [...]Size{Small, Medium, Big}

func (s Size) String() string {
	switch s {
	case Small:
		return "small"
	case Medium:
		return "medium"
	case Big:
		return "big"
	default:
		return "unknown"
	}
}

// SideLength is the edge of the ball's bounding square.
func (s Size) SideLength() int {
	switch s {
	case Small:
		return 20
	case Medium:
		return 40
	case Big:
		return 60
	default:
		return 0
	}
}

// Variant identifies one of the six pooled ball kinds.
type Variant struct {
	Difficulty Difficulty
	Size       Size
}

// Variants returns the six variants, easy first, small to big.
func Variants() []Variant {
	return []Variant{
		{Easy, Small}, {Easy, Medium}, {Easy, Big},
		{Hard, Small}, {Hard, Medium}, {Hard, Big},
	}
}

// Valid reports whether v is one of the six known variants.
func (v Variant) Valid() bool {
	return (v.Difficulty == Easy || v.Difficulty == Hard) &&
		(v.Size == Small || v.Size == Medium || v.Size == Big)
}

func (v Variant) SideLength() int { return v.Size.SideLength() }
func (v Variant) RandomnessFactor() int { return v.Difficulty.RandomnessFactor() }

func (v Variant) String() string {
	return v.Difficulty.String() + "-" + v.Size.String()
}

// ParseVariant is the inverse of Variant.String.
func ParseVariant(s string) (Variant, error) {
	for _, v := range Variants() {
		if strings.EqualFold(v.String(), s) {
			return v, nil
		}
	}
	return Variant{}, fmt.Errorf("unknown ball variant %q", s)
}

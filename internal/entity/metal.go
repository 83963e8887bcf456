package entity

import "fmt"

// Metal is a tradable precious metal priced per gram.
type Metal string

const (
	MetalGold   Metal = "gold"
	MetalSilver Metal = "silver"
)

// ParseMetal converts a config/user supplied string into a Metal.
func ParseMetal(s string) (Metal, error) {
	switch Metal(s) {
	case MetalGold, MetalSilver:
		return Metal(s), nil
	default:
		return "", fmt.Errorf("unknown metal: %q", s)
	}
}

func (m Metal) String() string {
	return string(m)
}

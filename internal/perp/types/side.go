package types

// Side 仓位方向
type Side uint8

const (
	SideLong Side = iota
	SideShort
)

func (s Side) IsLong() bool {
	return s == SideLong
}

func (s Side) String() string {
	if s == SideLong {
		return "long"
	}
	return "short"
}

func SideFromIsLong(isLong bool) Side {
	if isLong {
		return SideLong
	}
	return SideShort
}

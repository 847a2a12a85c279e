package model

import (
	"fmt"
)

type Rectangle struct {
	X      int32
	Y      int32
	Width  int32
	Height int32
}

func Rect(x int32, y int32, width int32, height int32) Rectangle {
	return Rectangle{
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
	}
}

func (self Rectangle) IsEmpty() bool {
	return self.Width <= 0 || self.Height <= 0
}

func (self Rectangle) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", self.X, self.Y, self.Width, self.Height)
}

// 0xAARRGGBB
type Color uint32

const (
	ColorTransparent Color = 0x00000000
	ColorBlack       Color = 0xFF000000
	ColorWhite       Color = 0xFFFFFFFF
)

func Argb(a uint8, r uint8, g uint8, b uint8) Color {
	return Color(uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

func (self Color) A() uint8 {
	return uint8(self >> 24)
}

func (self Color) R() uint8 {
	return uint8(self >> 16)
}

func (self Color) G() uint8 {
	return uint8(self >> 8)
}

func (self Color) B() uint8 {
	return uint8(self)
}

func (self Color) String() string {
	return fmt.Sprintf("#%08x", uint32(self))
}

func colorEqual(a *Color, b *Color) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

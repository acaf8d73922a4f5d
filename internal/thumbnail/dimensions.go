package thumbnail

import (
	"fmt"
	"math"
)

// Dimensions is a width/height pair in pixels.
type Dimensions struct {
	Width  int
	Height int
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Constraint is a bounding box with optional axes. At least one axis must be set.
type Constraint struct {
	MaxWidth  *int
	MaxHeight *int
}

// Width constrains only the width.
func Width(w int) Constraint {
	return Constraint{MaxWidth: &w}
}

// Height constrains only the height.
func Height(h int) Constraint {
	return Constraint{MaxHeight: &h}
}

// Box constrains both axes; the result fits inside the box.
func Box(w, h int) Constraint {
	return Constraint{MaxWidth: &w, MaxHeight: &h}
}

// Validate reports an InvalidConstraint error when no axis is set or a set axis is not positive.
func (c Constraint) Validate() error {
	if c.MaxWidth == nil && c.MaxHeight == nil {
		return newError(KindInvalidConstraint, "", "at least one of width or height is required", nil)
	}
	if c.MaxWidth != nil && *c.MaxWidth <= 0 {
		return newError(KindInvalidConstraint, "", fmt.Sprintf("width must be positive, got %d", *c.MaxWidth), nil)
	}
	if c.MaxHeight != nil && *c.MaxHeight <= 0 {
		return newError(KindInvalidConstraint, "", fmt.Sprintf("height must be positive, got %d", *c.MaxHeight), nil)
	}
	return nil
}

func (c Constraint) String() string {
	switch {
	case c.MaxWidth != nil && c.MaxHeight != nil:
		return fmt.Sprintf("fit %dx%d", *c.MaxWidth, *c.MaxHeight)
	case c.MaxWidth != nil:
		return fmt.Sprintf("width %d", *c.MaxWidth)
	case c.MaxHeight != nil:
		return fmt.Sprintf("height %d", *c.MaxHeight)
	default:
		return "unconstrained"
	}
}

// Resolve computes the thumbnail size for an image of size orig under c.
//
//   - width only:  width = max, height = round(orig.Height * max / orig.Width)
//   - height only: the symmetric case
//   - both:        scale by min(maxW/origW, maxH/origH); the limiting axis takes
//     its constraint exactly, so the result is a tight fit inside the box
//
// Constraints larger than the original enlarge the image. For animated output
// both axes are forced even (odd values lose one pixel, minimum 2).
func Resolve(orig Dimensions, c Constraint, animated bool) (Dimensions, error) {
	if err := c.Validate(); err != nil {
		return Dimensions{}, err
	}
	if orig.Width <= 0 || orig.Height <= 0 {
		return Dimensions{}, newError(KindInvalidConstraint, "",
			fmt.Sprintf("original dimensions must be positive, got %s", orig), nil)
	}

	var out Dimensions
	switch {
	case c.MaxWidth != nil && c.MaxHeight != nil:
		mw, mh := *c.MaxWidth, *c.MaxHeight
		sw := float64(mw) / float64(orig.Width)
		sh := float64(mh) / float64(orig.Height)
		if sw <= sh {
			out = Dimensions{Width: mw, Height: minInt(scaleAxis(orig.Height, mw, orig.Width), mh)}
		} else {
			out = Dimensions{Width: minInt(scaleAxis(orig.Width, mh, orig.Height), mw), Height: mh}
		}
	case c.MaxWidth != nil:
		mw := *c.MaxWidth
		out = Dimensions{Width: mw, Height: scaleAxis(orig.Height, mw, orig.Width)}
	default:
		mh := *c.MaxHeight
		out = Dimensions{Width: scaleAxis(orig.Width, mh, orig.Height), Height: mh}
	}

	if animated {
		out.Width = evenDown(out.Width)
		out.Height = evenDown(out.Height)
	}
	return out, nil
}

// scaleAxis returns round(other * target / ref), never less than 1.
func scaleAxis(other, target, ref int) int {
	v := int(math.Round(float64(other) * float64(target) / float64(ref)))
	return maxInt(v, 1)
}

// evenDown drops odd values by one pixel. Video encoders using 4:2:0 chroma need even sizes.
func evenDown(v int) int {
	if v%2 != 0 {
		v--
	}
	return maxInt(v, 2)
}

// minInt returns the smaller of two int values.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// maxInt returns the larger of two int values.
func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

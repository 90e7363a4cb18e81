package frame

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"

	"fluxrender/internal/services"
)

// ErrUnknownFilter reports a filter id outside the supported set.
var ErrUnknownFilter = errors.New("unknown filter")

// FilterID names a visual transform.
type FilterID string

const (
	Identity      FilterID = "identity"
	Grayscale     FilterID = "grayscale"
	Sepia         FilterID = "sepia"
	Invert        FilterID = "invert"
	ContrastBoost FilterID = "contrast-boost"
	HueRotate     FilterID = "hue-rotate"
	Blur          FilterID = "blur"
)

// Descriptor documents one filter for listings.
type Descriptor struct {
	ID          FilterID
	Alias       string
	Description string
}

var catalog = []Descriptor{
	{Identity, "none", "Pass frames through unchanged"},
	{Grayscale, "grayscale(1)", "Full desaturation using Rec. 709 luma"},
	{Sepia, "sepia(1)", "Warm brown vintage tone"},
	{Invert, "invert(1)", "Photographic negative"},
	{ContrastBoost, "contrast(2)", "Double contrast around mid-grey"},
	{HueRotate, "hue-rotate(90deg)", "Rotate hues by 90 degrees"},
	{Blur, "blur(4px)", "Gaussian blur with a 4px standard deviation"},
}

// Filters lists the supported filters in display order.
func Filters() []Descriptor {
	return append([]Descriptor(nil), catalog...)
}

// Filter transforms src into dst, scaling to dst's bounds.
type Filter interface {
	ID() FilterID
	Apply(src image.Image, dst *image.RGBA)
}

// Parse resolves a filter name or CSS-style alias, case-insensitively.
func Parse(name string) (FilterID, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, d := range catalog {
		if key == string(d.ID) || key == d.Alias {
			return d.ID, nil
		}
	}
	return "", unknown(name)
}

// Lookup returns the filter for id.
func Lookup(id FilterID) (Filter, error) {
	switch id {
	case Identity:
		return matrixFilter{id: id, m: identityMatrix}, nil
	case Grayscale:
		return matrixFilter{id: id, m: saturationMatrix(0)}, nil
	case Sepia:
		return matrixFilter{id: id, m: sepiaMatrix}, nil
	case Invert:
		return matrixFilter{id: id, m: invertMatrix}, nil
	case ContrastBoost:
		return matrixFilter{id: id, m: contrastMatrix(2)}, nil
	case HueRotate:
		return matrixFilter{id: id, m: hueRotateMatrix(90)}, nil
	case Blur:
		return blurFilter{sigma: 4}, nil
	default:
		return nil, unknown(string(id))
	}
}

// Apply draws src into dst with the filter named by id.
func Apply(id FilterID, src image.Image, dst *image.RGBA) error {
	f, err := Lookup(id)
	if err != nil {
		return err
	}
	f.Apply(src, dst)
	return nil
}

func unknown(name string) error {
	return services.Wrap(services.ErrValidation, "frame", "resolve filter", fmt.Sprintf("%q", name), ErrUnknownFilter)
}

// scaleInto copies src into dst, resampling when the sizes differ.
func scaleInto(src image.Image, dst *image.RGBA) {
	sb, db := src.Bounds(), dst.Bounds()
	if sb.Dx() == db.Dx() && sb.Dy() == db.Dy() {
		draw.Draw(dst, db, src, sb.Min, draw.Src)
		return
	}
	draw.CatmullRom.Scale(dst, db, src, sb, draw.Src, nil)
}

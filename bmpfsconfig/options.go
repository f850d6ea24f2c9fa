// Package bmpfsconfig holds the small, flag-populated configuration struct
// the CLI layer builds and hands to the core's mount initializer. There is
// no config file format here, mirroring the teacher's own flag-based mount
// options surface.
package bmpfsconfig

import "github.com/sena2k/bmpfs/imagepresets"

// Options describes how to mount (and, if necessary, provision) a bmpfs
// image. Zero-value Width/Height means "use bmpimage's defaults unless a
// Preset is given".
type Options struct {
	// ImagePath is the path to the backing BMP file. Required.
	ImagePath string

	// Preset, if non-empty, looks up a named canvas size from imagepresets
	// and uses it for Width/Height when provisioning a missing image.
	// Width/Height, if also set, override the preset's dimensions.
	Preset string

	// Width and Height are the pixel dimensions to provision a missing
	// image with. Ignored if the image already exists.
	Width  int32
	Height int32

	// ReadOnly disallows any operation that would mutate the image:
	// create, mkdir, unlink, rmdir, write, truncate, utimens.
	ReadOnly bool
}

// ResolveDimensions applies Preset, then Width/Height overrides, returning
// the final provisioning dimensions and whether a Preset name was given but
// not found.
func (o Options) ResolveDimensions(defaultWidth, defaultHeight int32) (width, height int32, unknownPreset bool) {
	width, height = defaultWidth, defaultHeight

	if o.Preset != "" {
		preset, ok := imagepresets.Lookup(o.Preset)
		if !ok {
			return width, height, true
		}
		width, height = preset.Width, preset.Height
	}

	if o.Width != 0 {
		width = o.Width
	}
	if o.Height != 0 {
		height = o.Height
	}
	return width, height, false
}

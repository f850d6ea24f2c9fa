// Package imagepresets provides a small table of named canvas sizes the
// image provisioner (bmpimage.CreateImage) can be pointed at by name
// instead of literal width/height, in the spirit of the disk-geometry
// lookup table the teacher keeps for known physical media.
package imagepresets

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// Preset describes one named canvas size bmpfs can provision an image at.
type Preset struct {
	Slug        string `csv:"slug"`
	Description string `csv:"description"`
	Width       int32  `csv:"width"`
	Height      int32  `csv:"height"`
}

// presetsRawCSV lists a handful of well-known raster resolutions, large
// enough that the resulting image has comfortable room for the fixed
// 1000-entry inode table plus file data.
const presetsRawCSV = `slug,description,width,height
vga,VGA (640x480),640,480
svga,Super VGA (800x600),800,600
xga,XGA (1024x768),1024,768
hd,HD (1280x720),1280,720
fhd,Full HD (1920x1080),1920,1080
default,bmpfs default canvas,2048,2048
uhd,Ultra HD (3840x2160),3840,2160
`

var presets map[string]Preset

func init() {
	presets = make(map[string]Preset)
	reader := strings.NewReader(presetsRawCSV)
	err := gocsv.UnmarshalToCallback(reader, func(row Preset) error {
		if _, exists := presets[row.Slug]; exists {
			return fmt.Errorf("duplicate image preset slug %q", row.Slug)
		}
		presets[row.Slug] = row
		return nil
	})
	if err != nil && err != io.EOF {
		panic(err)
	}
}

// Lookup returns the preset registered under slug, or false if none exists.
func Lookup(slug string) (Preset, bool) {
	preset, ok := presets[slug]
	return preset, ok
}

// Slugs returns every registered preset slug, for CLI help text.
func Slugs() []string {
	slugs := make([]string, 0, len(presets))
	for slug := range presets {
		slugs = append(slugs, slug)
	}
	return slugs
}

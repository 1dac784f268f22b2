package media

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docker/go-units"
)

// SortFormats returns a copy ordered by container then ascending height.
func SortFormats(formats []Format) []Format {
	out := append([]Format(nil), formats...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Ext != out[j].Ext {
			return out[i].Ext < out[j].Ext
		}
		if out[i].Height != out[j].Height {
			return out[i].Height < out[j].Height
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Label renders a format like "360p, 640x360, type: webm, fps: 24, 2.5MB".
func (f Format) Label() string {
	var parts []string
	switch {
	case f.Height > 0:
		parts = append(parts, fmt.Sprintf("%dp", f.Height))
	case f.VCodec == "none" || (f.VCodec == "" && f.ACodec != ""):
		parts = append(parts, "audio")
	case f.Note != "":
		parts = append(parts, f.Note)
	}
	if f.Width > 0 && f.Height > 0 {
		parts = append(parts, fmt.Sprintf("%dx%d", f.Width, f.Height))
	}
	if f.Ext != "" {
		parts = append(parts, "type: "+f.Ext)
	}
	if f.FPS > 0 {
		parts = append(parts, fmt.Sprintf("fps: %g", f.FPS))
	}
	if f.Filesize > 0 {
		parts = append(parts, HumanSize(f.Filesize))
	}
	if len(parts) == 0 {
		return f.ID
	}
	return strings.Join(parts, ", ")
}

// HumanSize formats a byte count with decimal units, e.g. "2.5MB".
func HumanSize(n int64) string {
	return units.HumanSizeWithPrecision(float64(n), 3)
}

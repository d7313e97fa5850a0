package avatar

// FitMode defines how an image should be fitted to the target dimensions.
type FitMode string

const (
	// FitCover scales the image to cover the target dimensions, cropping if necessary.
	FitCover FitMode = "cover"
)

// Preset defines the configuration for an avatar transformation.
type Preset struct {
	Name    string
	Width   int
	Height  int
	Fit     FitMode
	Quality int
}

// Validate checks that the preset has valid configuration values.
func (p Preset) Validate() error {
	if p.Name == "" || p.Width <= 0 || p.Height <= 0 {
		return ErrInvalidPreset
	}
	// Quality must be in JPEG range (1-100)
	if p.Quality < 1 || p.Quality > 100 {
		return ErrInvalidPreset
	}
	if p.Fit != FitCover {
		return ErrInvalidPreset
	}
	return nil
}

// TinyPresetName is the preset behind ?size=tiny.
const TinyPresetName = "tiny"

// TinyPreset is requested with ?size=tiny: a 32x32 cover crop.
var TinyPreset = Preset{
	Name:    TinyPresetName,
	Width:   32,
	Height:  32,
	Fit:     FitCover,
	Quality: 80,
}

var presets = map[string]Preset{
	TinyPreset.Name: TinyPreset,
}

// GetPreset returns the preset configuration for the given name.
func GetPreset(name string) (Preset, error) {
	preset, exists := presets[name]
	if !exists {
		return Preset{}, ErrInvalidPreset
	}
	return preset, nil
}

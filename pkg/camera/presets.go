package camera

// Preset names for common configurations
const (
	PresetDefault  = "default"
	PresetUpright  = "upright"
	Preset720p     = "720p"
	PresetFastScan = "fastscan"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault:  DefaultConfig(),
		PresetUpright:  UprightConfig(),
		Preset720p:     HD720Config(),
		PresetFastScan: FastScanConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{PresetDefault, PresetUpright, Preset720p, PresetFastScan}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// UprightConfig is for a camera mounted in landscape orientation.
func UprightConfig() Config {
	cfg := DefaultConfig()
	cfg.Rotation = RotateNone
	cfg.DetectWidth = 320
	cfg.DetectHeight = 240
	return cfg
}

// HD720Config captures 720p for sharper snapshots. Detection size is unchanged.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	cfg.DetectWidth = 216
	cfg.DetectHeight = 384
	return cfg
}

// FastScanConfig trades detection range for loop rate on slow boards.
func FastScanConfig() Config {
	cfg := DefaultConfig()
	cfg.DetectWidth = 180
	cfg.DetectHeight = 240
	return cfg
}

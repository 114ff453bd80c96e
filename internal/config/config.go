package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cjeanneret/ovcap/internal/hw/camera"
	"github.com/cjeanneret/ovcap/internal/hw/gpio"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

// Camera types.
const (
	CameraOV7670 = "ov7670" // parallel port on the GPIO header
	CameraV4L2   = "v4l2"   // kernel driver, e.g. /dev/video0
	CameraSim    = "sim"    // simulated sensor on the I2C bus
)

// BusConfig describes the I2C (SCCB) bus the sensor is attached to.
type BusConfig struct {
	Name     string `yaml:"name"`      // periph bus name, e.g. "1" for /dev/i2c-1
	SCLPin   int    `yaml:"scl_pin"`   // BCM pin of SCL (SIOC)
	SDAPin   int    `yaml:"sda_pin"`   // BCM pin of SDA (SIOD)
	SpeedKHz int    `yaml:"speed_khz"` // bus clock in kHz
}

// CameraConfig describes the camera module and how it is wired.
// Pins are BCM numbers.
type CameraConfig struct {
	Type           string `yaml:"type"`             // "ov7670", "v4l2" or "sim"
	Device         string `yaml:"device"`           // v4l2 only
	DataPins       []int  `yaml:"data_pins"`        // D0..D7
	PCLKPin        int    `yaml:"pclk_pin"`         // pixel clock
	VSYNCPin       int    `yaml:"vsync_pin"`        // vertical sync
	HREFPin        int    `yaml:"href_pin"`         // horizontal reference
	MCLKPin        int    `yaml:"mclk_pin"`         // master clock output (GPCLK0 = 4)
	ShutdownPin    *int   `yaml:"shutdown_pin"`     // PWDN, optional
	ResetPin       *int   `yaml:"reset_pin"`        // RESET, optional
	MCLKHz         int    `yaml:"mclk_hz"`          // master clock frequency
	Prescaler      int    `yaml:"prescaler"`        // CLKRC divider 1-64
	Size           string `yaml:"size"`             // div1..div16
	Colorspace     string `yaml:"colorspace"`       // rgb565 or yuv422
	FlipX          bool   `yaml:"flip_x"`           // mirror
	FlipY          bool   `yaml:"flip_y"`           // vertical flip
	TestPattern    string `yaml:"test_pattern"`     // none, shifting1, bars, fade
	NightMode      int    `yaml:"night_mode"`       // 0 (off), 2, 4 or 8
	FrameTimeoutMs int    `yaml:"frame_timeout_ms"` // capture timeout (ms)
}

// CaptureConfig holds parameters of the capture procedure.
type CaptureConfig struct {
	BytesPerPixelEstimate int `yaml:"bytes_per_pixel_estimate"` // frame buffer bytes per pixel
}

// OutputConfig selects where the frame is written.
type OutputConfig struct {
	Path string `yaml:"path"` // "-" = stdout, otherwise a serial/tty device or file
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO and a simulated bus (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Bus      BusConfig      `yaml:"bus"`
	Camera   CameraConfig   `yaml:"camera"`
	Capture  CaptureConfig  `yaml:"capture"`
	Output   OutputConfig   `yaml:"output"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files located directly in a
// configs/ directory, without any ".." element.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	for _, elem := range strings.Split(filepath.ToSlash(path), "/") {
		if elem == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config path %q must be in a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Bus.Name == "" {
		c.Bus.Name = "1"
	}
	// BCM 0/1 are the HAT ID EEPROM lines, so 0/0 means "not set".
	if c.Bus.SCLPin == 0 && c.Bus.SDAPin == 0 {
		c.Bus.SCLPin, c.Bus.SDAPin = 3, 2
	}
	if c.Bus.SpeedKHz <= 0 {
		c.Bus.SpeedKHz = 100
	}
	if c.Camera.Type == CameraV4L2 && c.Camera.Device == "" {
		c.Camera.Device = "/dev/video0"
	}
	if c.Camera.MCLKPin == 0 {
		c.Camera.MCLKPin = 4
	}
	if c.Camera.MCLKHz <= 0 {
		c.Camera.MCLKHz = 16_000_000
	}
	if c.Camera.Size == "" {
		c.Camera.Size = camera.SizeDiv16.String()
	}
	if c.Camera.Colorspace == "" {
		c.Camera.Colorspace = camera.RGB565.String()
	}
	if c.Camera.TestPattern == "" {
		c.Camera.TestPattern = "none"
	}
	if c.Camera.FrameTimeoutMs <= 0 {
		c.Camera.FrameTimeoutMs = 2000
	}
	if c.Capture.BytesPerPixelEstimate <= 0 {
		c.Capture.BytesPerPixelEstimate = 25
	}
	if c.Output.Path == "" {
		c.Output.Path = "-"
	}
}

// Validate checks a configuration whose defaults are already filled in.
func (c *Config) Validate() error {
	switch c.Camera.Type {
	case "":
		return fmt.Errorf("camera.type is required")
	case CameraOV7670, CameraV4L2, CameraSim:
	default:
		return fmt.Errorf("camera.type must be one of %s, %s, %s; got %q", CameraOV7670, CameraV4L2, CameraSim, c.Camera.Type)
	}
	if _, err := camera.ParseSize(c.Camera.Size); err != nil {
		return fmt.Errorf("camera.size: %w", err)
	}
	if _, err := camera.ParseColorspace(c.Camera.Colorspace); err != nil {
		return fmt.Errorf("camera.colorspace: %w", err)
	}
	if _, err := camera.ParseTestPattern(c.Camera.TestPattern); err != nil {
		return fmt.Errorf("camera.test_pattern: %w", err)
	}
	switch c.Camera.NightMode {
	case 0, 2, 4, 8:
	default:
		return fmt.Errorf("camera.night_mode must be 0, 2, 4 or 8, got %d", c.Camera.NightMode)
	}
	if c.Camera.Prescaler < 0 || c.Camera.Prescaler > 64 {
		return fmt.Errorf("camera.prescaler must be between 1 and 64, got %d", c.Camera.Prescaler)
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	if c.Bus.SCLPin == c.Bus.SDAPin {
		return fmt.Errorf("bus.scl_pin and bus.sda_pin must differ, both are %d", c.Bus.SCLPin)
	}
	return c.validatePins()
}

// validatePins checks every wired pin is a BCM pin used only once.
func (c *Config) validatePins() error {
	used := map[int]string{}
	use := func(name string, pin int) error {
		if !gpio.ValidPin(pin) {
			return fmt.Errorf("%s: pin %d out of BCM range 0-%d", name, pin, gpio.MaxPin)
		}
		if other, ok := used[pin]; ok {
			return fmt.Errorf("%s: pin %d already used by %s", name, pin, other)
		}
		used[pin] = name
		return nil
	}

	if err := use("bus.scl_pin", c.Bus.SCLPin); err != nil {
		return err
	}
	if err := use("bus.sda_pin", c.Bus.SDAPin); err != nil {
		return err
	}
	if c.Camera.Type != CameraOV7670 {
		return nil
	}

	if len(c.Camera.DataPins) != 8 {
		return fmt.Errorf("camera.data_pins must list 8 pins (D0..D7), got %d", len(c.Camera.DataPins))
	}
	for i, pin := range c.Camera.DataPins {
		if err := use(fmt.Sprintf("camera.data_pins[%d]", i), pin); err != nil {
			return err
		}
	}
	for _, p := range []struct {
		name string
		pin  int
	}{
		{"camera.pclk_pin", c.Camera.PCLKPin},
		{"camera.vsync_pin", c.Camera.VSYNCPin},
		{"camera.href_pin", c.Camera.HREFPin},
		{"camera.mclk_pin", c.Camera.MCLKPin},
	} {
		if err := use(p.name, p.pin); err != nil {
			return err
		}
	}
	if c.Camera.ShutdownPin != nil {
		if err := use("camera.shutdown_pin", *c.Camera.ShutdownPin); err != nil {
			return err
		}
	}
	if c.Camera.ResetPin != nil {
		if err := use("camera.reset_pin", *c.Camera.ResetPin); err != nil {
			return err
		}
	}
	return nil
}

// Warnings lists settings that load fine but are likely to misbehave.
func (c *Config) Warnings() []string {
	var w []string
	if c.Camera.Type == CameraOV7670 {
		if c.Camera.ShutdownPin == nil {
			w = append(w, "camera.shutdown_pin is not set: a module with PWDN wired may stay powered down")
		}
		if c.Camera.ResetPin == nil {
			w = append(w, "camera.reset_pin is not set: relying on the SCCB soft reset only")
		}
		if c.Defaults.MockGPIO {
			w = append(w, "defaults.mock_gpio with camera.type ov7670: no frame will arrive on the mock parallel port")
		}
	}
	if c.Capture.BytesPerPixelEstimate < camera.BytesPerPixel {
		w = append(w, fmt.Sprintf("capture.bytes_per_pixel_estimate %d is below the %d bytes per pixel of a frame", c.Capture.BytesPerPixelEstimate, camera.BytesPerPixel))
	}
	return w
}

// CaptureSize returns the configured resolution mode.
func (c *Config) CaptureSize() (camera.Size, error) {
	return camera.ParseSize(c.Camera.Size)
}

// BusSpeed returns the I2C bus clock.
func (c *Config) BusSpeed() physic.Frequency {
	return physic.Frequency(c.Bus.SpeedKHz) * physic.KiloHertz
}

// FrameTimeout returns how long a capture may wait for a frame.
func (c *Config) FrameTimeout() time.Duration {
	return time.Duration(c.Camera.FrameTimeoutMs) * time.Millisecond
}

// Pins returns the camera wiring. Unset optional lines are camera.NoPin.
func (c *Config) Pins() camera.Pins {
	p := camera.Pins{
		PCLK:     c.Camera.PCLKPin,
		VSYNC:    c.Camera.VSYNCPin,
		HREF:     c.Camera.HREFPin,
		MCLK:     c.Camera.MCLKPin,
		Shutdown: camera.NoPin,
		Reset:    camera.NoPin,
	}
	copy(p.Data[:], c.Camera.DataPins)
	if c.Camera.ShutdownPin != nil {
		p.Shutdown = *c.Camera.ShutdownPin
	}
	if c.Camera.ResetPin != nil {
		p.Reset = *c.Camera.ResetPin
	}
	return p
}

// OV7670 returns the driver settings for an OV7670 camera.
func (c *Config) OV7670() (camera.OV7670Config, error) {
	cs, err := camera.ParseColorspace(c.Camera.Colorspace)
	if err != nil {
		return camera.OV7670Config{}, err
	}
	tp, err := camera.ParseTestPattern(c.Camera.TestPattern)
	if err != nil {
		return camera.OV7670Config{}, err
	}
	return camera.OV7670Config{
		Pins:         c.Pins(),
		MCLKHz:       c.Camera.MCLKHz,
		Prescaler:    c.Camera.Prescaler,
		Colorspace:   cs,
		FlipX:        c.Camera.FlipX,
		FlipY:        c.Camera.FlipY,
		TestPattern:  tp,
		NightMode:    c.Camera.NightMode,
		FrameTimeout: c.FrameTimeout(),
	}, nil
}

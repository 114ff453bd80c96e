package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cjeanneret/ovcap/internal/config"
	"github.com/cjeanneret/ovcap/internal/debug"
	"github.com/cjeanneret/ovcap/internal/hw/camera"
	"github.com/cjeanneret/ovcap/internal/hw/gpio"
	"github.com/cjeanneret/ovcap/internal/hw/i2cbus"
	"github.com/cjeanneret/ovcap/internal/logic/capture"
	"github.com/cjeanneret/ovcap/internal/output"
	"periph.io/x/conn/v3/i2c"
)

// overrides holds CLI values replacing their config counterparts.
// Zero values mean "use config".
type overrides struct {
	Size   string
	Output string
	Mock   bool
}

func main() {
	// CLI flags
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	size := flag.String("size", "", "override resolution mode (div1, div2, div4, div8, div16)")
	outPath := flag.String("output", "", "override output path; - for stdout, or a serial device")
	mock := flag.Bool("mock", false, "use mock GPIO and the simulated camera")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	ov := overrides{Size: *size, Output: *outPath, Mock: *mock}
	if err := validateCLIOverrides(ov); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, ov)

	// Initialize debug system (stderr; stdout may carry the frame)
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Camera type", cfg.Camera.Type)
	debug.Value("Size", cfg.Camera.Size)
	debug.Value("Output", cfg.Output.Path)
	for _, w := range cfg.Warnings() {
		debug.Warn("Config: %s", w)
	}

	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}

	code := run(ctx, cfg, gpioDriver)

	if err := gpioDriver.Close(); err != nil {
		log.Printf("closing GPIO driver failed: %v", err)
	}
	os.Exit(code)
}

// run performs one capture and returns the process exit code.
func run(ctx context.Context, cfg *config.Config, g gpio.Driver) int {
	sink, err := output.Open(cfg.Output.Path)
	if err != nil {
		log.Printf("open output failed: %v", err)
		return 1
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Printf("closing output failed: %v", err)
		}
	}()

	size, err := cfg.CaptureSize()
	if err != nil {
		log.Printf("invalid size: %v", err)
		return 1
	}

	proc := capture.NewProcedure(newBoardHardware(g, cfg), sink, capture.Params{
		Size:          size,
		BytesPerPixel: cfg.Capture.BytesPerPixelEstimate,
	})
	res, err := proc.Run(ctx)
	if err != nil {
		log.Printf("capture failed: %v", err)
		return exitCode(err)
	}

	debug.Summary("Capture complete")
	debug.Frame(size.String(), res.Width, res.Height, res.Allocated, res.Captured)
	return 0
}

// exitCode maps a failure to a process exit code: 10 + the failing step
// for procedure errors, 1 otherwise.
func exitCode(err error) int {
	var ce *capture.Error
	if errors.As(err, &ce) {
		return 10 + int(ce.Kind)
	}
	return 1
}

// validateCLIOverrides checks non-empty CLI overrides.
func validateCLIOverrides(ov overrides) error {
	if ov.Size != "" {
		if _, err := camera.ParseSize(ov.Size); err != nil {
			return fmt.Errorf("size: %w", err)
		}
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override values are applied.
func applyOverrides(cfg *config.Config, ov overrides) {
	if ov.Size != "" {
		cfg.Camera.Size = ov.Size
	}
	if ov.Output != "" {
		cfg.Output.Path = ov.Output
	}
	if ov.Mock {
		cfg.Defaults.MockGPIO = true
		cfg.Camera.Type = config.CameraSim
	}
}

// boardHardware acquires the bus and camera described by the config.
// All pins are claimed on one GPIO driver, so a second acquisition in the
// same process fails until the first one is released.
type boardHardware struct {
	gpio gpio.Driver
	cfg  *config.Config
}

func newBoardHardware(g gpio.Driver, cfg *config.Config) *boardHardware {
	return &boardHardware{gpio: g, cfg: cfg}
}

func (h *boardHardware) OpenBus() (i2c.BusCloser, error) {
	debug.PrintStruct("I2C bus config", h.cfg.Bus)
	return i2cbus.Open(h.gpio, i2cbus.Config{
		Name:   h.cfg.Bus.Name,
		SCLPin: h.cfg.Bus.SCLPin,
		SDAPin: h.cfg.Bus.SDAPin,
		Speed:  h.cfg.BusSpeed(),
		Mock:   h.cfg.Defaults.MockGPIO,
	})
}

func (h *boardHardware) OpenCamera(bus i2c.Bus) (camera.Camera, error) {
	return newCameraFromConfig(bus, h.gpio, h.cfg)
}

// newCameraFromConfig selects a camera implementation based on configuration.
func newCameraFromConfig(bus i2c.Bus, g gpio.Driver, cfg *config.Config) (camera.Camera, error) {
	switch cfg.Camera.Type {
	case config.CameraOV7670:
		ovCfg, err := cfg.OV7670()
		if err != nil {
			return nil, err
		}
		cam, err := camera.NewOV7670(bus, g, ovCfg)
		if err != nil {
			return nil, err
		}
		return cam, nil
	case config.CameraV4L2:
		cs, err := camera.ParseColorspace(cfg.Camera.Colorspace)
		if err != nil {
			return nil, err
		}
		cam, err := camera.NewV4L2(cfg.Camera.Device, cs, cfg.FrameTimeout())
		if err != nil {
			return nil, err
		}
		return cam, nil
	case config.CameraSim:
		cam, err := camera.NewSim(bus)
		if err != nil {
			return nil, err
		}
		return cam, nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}

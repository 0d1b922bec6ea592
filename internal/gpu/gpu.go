package gpu

import (
	"sync"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	milliWattsToWatts = 1000
	bytesPerMB        = 1024 * 1024
)

type reader struct {
	lib    nvmlController
	device deviceHandle
	mu     sync.Mutex
}

// New initialises NVML and opens the first GPU.
func New() (Reader, error) {
	r, err := newReader(&nvmlWrapper{}, 0)
	if err != nil {
		return nil, err
	}

	return r, nil
}

func newReader(lib nvmlController, index int) (*reader, error) {
	if err := lib.Initialize(); err != nil {
		return nil, err
	}

	device, err := lib.GetDevice(index)
	if err != nil {
		if shutdownErr := lib.Shutdown(); shutdownErr != nil {
			logger.Debug().Err(shutdownErr).Msg("Failed to shut down NVML")
		}
		return nil, err
	}

	if name, ret := device.GetName(); IsNVMLSuccess(ret) {
		logger.Info().Msgf("Detected GPU: %v", name)
	} else {
		logger.Warn().Msgf("Failed to get GPU name: %v", nvml.ErrorString(ret))
	}

	return &reader{lib: lib, device: device}, nil
}

// Sample reads every metric it can. Unreadable metrics are -1 and reported
// in the joined error.
func (r *reader) Sample() (Stats, error) {
	errFactory := errors.New()
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Unavailable()
	var errs []error

	if util, ret := r.device.GetUtilizationRates(); IsNVMLSuccess(ret) {
		stats.Utilization = float64(util.Gpu)
	} else {
		errs = append(errs, errFactory.Wrap(ErrUtilizationReadFailed, newNVMLError(ret)))
	}

	if mem, ret := r.device.GetMemoryInfo(); IsNVMLSuccess(ret) {
		stats.MemoryUsedMB = float64(mem.Used) / bytesPerMB
	} else {
		errs = append(errs, errFactory.Wrap(ErrMemoryReadFailed, newNVMLError(ret)))
	}

	if temp, ret := r.device.GetTemperature(nvml.TEMPERATURE_GPU); IsNVMLSuccess(ret) {
		stats.Temperature = float64(temp)
	} else {
		errs = append(errs, errFactory.Wrap(ErrTemperatureReadFailed, newNVMLError(ret)))
	}

	if power, ret := r.device.GetPowerUsage(); IsNVMLSuccess(ret) {
		stats.PowerWatts = float64(power) / milliWattsToWatts
	} else {
		errs = append(errs, errFactory.Wrap(ErrPowerReadFailed, newNVMLError(ret)))
	}

	return stats, errors.Join(errs...)
}

func (r *reader) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lib.Shutdown()
}

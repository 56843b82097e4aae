// Package audioio wraps the duplex sound-card device used for capture and
// playback, and the platform device-enumeration helper behind --list-devices.
package audioio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// FrameHandler receives captured input samples (little-endian 16-bit PCM)
// each callback period. It must not block.
type FrameHandler func(input []byte)

// Device owns a duplex malgo stream: a capture callback feeds FrameHandler,
// and playback is served from an internal byte queue fed by Enqueue.
type Device struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu      sync.Mutex
	queue   []byte
	onInput FrameHandler
}

// Config holds the capture/playback format: sample rate and channel count.
// It selects no device; Open always uses the system default duplex device.
type Config struct {
	SampleRate int
	Channels   int
}

// DefaultConfig returns the conventional mono 16kHz capture format used
// throughout the pipeline.
func DefaultConfig() Config {
	return Config{SampleRate: 16000, Channels: 1}
}

// Open initializes the malgo context and starts a duplex device. onInput is
// invoked with each block of captured samples; playback samples are pulled
// from an internal FIFO populated by Enqueue.
func Open(cfg Config, onInput FrameHandler) (*Device, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audioio: init context: %w", err)
	}

	d := &Device{ctx: mctx, onInput: onInput}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: d.onSamples,
	})
	if err != nil {
		mctx.Uninit()
		return nil, fmt.Errorf("audioio: init device: %w", err)
	}
	d.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		return nil, fmt.Errorf("audioio: start device: %w", err)
	}
	return d, nil
}

func (d *Device) onSamples(pOutput, pInput []byte, frameCount uint32) {
	if pInput != nil && d.onInput != nil {
		d.onInput(pInput)
	}
	if pOutput != nil {
		d.mu.Lock()
		n := copy(pOutput, d.queue)
		d.queue = d.queue[n:]
		d.mu.Unlock()
		for i := n; i < len(pOutput); i++ {
			pOutput[i] = 0
		}
	}
}

// Enqueue appends PCM bytes to the playback FIFO.
func (d *Device) Enqueue(pcm []byte) {
	d.mu.Lock()
	d.queue = append(d.queue, pcm...)
	d.mu.Unlock()
}

// Flush discards any queued playback audio immediately, used by
// Controller.Stop.
func (d *Device) Flush() {
	d.mu.Lock()
	d.queue = nil
	d.mu.Unlock()
}

// Pending returns the number of playback bytes not yet drained.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Close stops and releases the device and context.
func (d *Device) Close() error {
	if d.device != nil {
		d.device.Uninit()
	}
	if d.ctx != nil {
		return d.ctx.Uninit()
	}
	return nil
}

// ListDevices enumerates capture and playback devices and returns their
// names, satisfying the CLI's --list-devices contract (spec §6).
func ListDevices() ([]string, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audioio: init context: %w", err)
	}
	defer mctx.Uninit()

	var names []string

	captures, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("audioio: enumerate capture devices: %w", err)
	}
	for _, info := range captures {
		names = append(names, fmt.Sprintf("capture: %s", info.Name()))
	}

	playbacks, err := mctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("audioio: enumerate playback devices: %w", err)
	}
	for _, info := range playbacks {
		names = append(names, fmt.Sprintf("playback: %s", info.Name()))
	}

	return names, nil
}

package drm

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bnema/xkms/internal/logger"
)

// ErrDriverStopped is returned for jobs submitted after the driver exited.
var ErrDriverStopped = errors.New("output driver stopped")

type job struct {
	fn     func(d *Device) error
	result chan error
}

// Driver serializes every kernel call on one goroutine. Other goroutines
// submit jobs and wait for them with a context, so a stalled ioctl never
// blocks a client request path.
type Driver struct {
	device   *Device
	closer   io.Closer
	interval time.Duration
	onChange func([]OutputSnapshot)

	jobs    chan job
	stopped chan struct{}
	last    []OutputSnapshot
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithHotplugInterval rescans connectors every interval. Zero disables
// polling.
func WithHotplugInterval(interval time.Duration) DriverOption {
	return func(d *Driver) { d.interval = interval }
}

// WithOnChange registers fn to receive the outputs whenever a scan or a
// mode set changes them. fn runs on the driver goroutine.
func WithOnChange(fn func([]OutputSnapshot)) DriverOption {
	return func(d *Driver) { d.onChange = fn }
}

// WithCloser makes the driver close c when it stops, typically the Card.
func WithCloser(c io.Closer) DriverOption {
	return func(d *Driver) { d.closer = c }
}

// NewDriver creates a driver over dev. Run must be called to start it.
func NewDriver(dev *Device, opts ...DriverOption) *Driver {
	d := &Driver{
		device:  dev,
		jobs:    make(chan job),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run performs an initial scan and then serves jobs and hotplug polls
// until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	defer func() {
		close(d.stopped)
		if d.closer != nil {
			if err := d.closer.Close(); err != nil {
				logger.Warn("Failed to close DRM device", "error", err)
			}
		}
	}()

	d.rescan()

	var tick <-chan time.Time
	if d.interval > 0 {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Output driver stopping")
			return nil
		case j := <-d.jobs:
			j.result <- j.fn(d.device)
			d.publish(d.device.Snapshots())
		case <-tick:
			d.rescan()
		}
	}
}

func (d *Driver) rescan() {
	d.publish(d.device.Scan())
}

func (d *Driver) publish(snaps []OutputSnapshot) {
	if d.last != nil && equalSnapshots(d.last, snaps) {
		return
	}
	d.last = snaps
	for _, s := range snaps {
		logger.Info("Output", "name", s.Name, "state", s.State.String(), "connected", s.Connected())
	}
	if d.onChange != nil {
		d.onChange(snaps)
	}
}

// Done is closed once the driver has stopped.
func (d *Driver) Done() <-chan struct{} {
	return d.stopped
}

func (d *Driver) submit(ctx context.Context, fn func(d *Device) error) error {
	j := job{fn: fn, result: make(chan error, 1)}
	select {
	case d.jobs <- j:
	case <-d.stopped:
		return ErrDriverStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outputs returns the current output state without touching the kernel.
func (d *Driver) Outputs(ctx context.Context) ([]OutputSnapshot, error) {
	var snaps []OutputSnapshot
	err := d.submit(ctx, func(dev *Device) error {
		snaps = dev.Snapshots()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

// Scan rescans every connector.
func (d *Driver) Scan(ctx context.Context) ([]OutputSnapshot, error) {
	var snaps []OutputSnapshot
	err := d.submit(ctx, func(dev *Device) error {
		snaps = dev.Scan()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

// SetMode programs mode on connector connID scanning out fb.
func (d *Driver) SetMode(ctx context.Context, connID uint32, mode ModeInfo, fb FramebufferID) error {
	return d.submit(ctx, func(dev *Device) error {
		return dev.SetMode(connID, mode, fb)
	})
}

// SwitchMode changes a bound output to the named mode.
func (d *Driver) SwitchMode(ctx context.Context, connID uint32, name string, refresh uint32) error {
	return d.submit(ctx, func(dev *Device) error {
		return dev.SwitchMode(connID, name, refresh)
	})
}

// PageFlip schedules fb on crtc for connector connID.
func (d *Driver) PageFlip(ctx context.Context, connID, crtc uint32, fb FramebufferID) error {
	return d.submit(ctx, func(dev *Device) error {
		return dev.PageFlip(connID, crtc, fb)
	})
}

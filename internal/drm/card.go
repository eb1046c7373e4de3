package drm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Card is an open DRM device node such as /dev/dri/card0.
type Card struct {
	path   string
	fd     int
	kernel Kernel
	res    *Resources
}

// OpenCard opens the device at path read/write and loads its resources.
func OpenCard(path string) (*Card, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	k := NewKernel(fd)
	res, err := LoadResources(k)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Card{path: path, fd: fd, kernel: k, res: res}, nil
}

func (c *Card) Path() string           { return c.path }
func (c *Card) Fd() int                { return c.fd }
func (c *Card) Kernel() Kernel         { return c.kernel }
func (c *Card) Resources() *Resources  { return c.res }
func (c *Card) ConnectorIDs() []uint32 { return append([]uint32(nil), c.res.Connectors...) }
func (c *Card) CRTCIDs() []uint32      { return append([]uint32(nil), c.res.CRTCs...) }

// Close releases the device.
func (c *Card) Close() error {
	if c.fd < 0 {
		return nil
	}
	err := unix.Close(c.fd)
	c.fd = -1
	return err
}

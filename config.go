package x1kernel

import (
	"github.com/kesterson/x1kernel/internal/constants"
	"github.com/kesterson/x1kernel/internal/logging"
)

// Config contains the parameters a Kernel is built from. Shaped on the
// donor repo's DeviceParams: one struct a caller fills in (or leaves at
// its defaults) and hands to a single constructor.
type Config struct {
	// HeapSize is the size, in bytes, of the single fixed heap region.
	HeapSize int

	// HeapAlignment is the alignment, in bytes, of every heap block.
	HeapAlignment uint32

	// TickFrequencyHz is the frequency, in Hz, at which the platform
	// delivers the periodic timer tick once Start is called.
	TickFrequencyHz int

	// Logger receives the kernel's diagnostic output. A nil Logger means
	// logging.Default().
	Logger *logging.Logger

	// Observer receives metrics observations as they occur. A nil
	// Observer means NoOpObserver.
	Observer Observer
}

// DefaultConfig returns a Config with the same tunables internal/constants
// ships as its defaults.
func DefaultConfig() Config {
	return Config{
		HeapSize:        constants.HeapSize,
		HeapAlignment:   constants.HeapAlignment,
		TickFrequencyHz: constants.TickFrequencyHz,
		Logger:          logging.Default(),
		Observer:        NoOpObserver{},
	}
}

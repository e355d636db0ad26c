package serial

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyACM0")
	assert.Equal(t, "/dev/ttyACM0", cfg.Device)
	assert.Equal(t, 250000, cfg.Baud)
	assert.Equal(t, 100*time.Millisecond, cfg.ReadTimeout)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(nil)
	assert.Error(t, err)

	_, err = Open(&Config{})
	assert.Error(t, err)

	missing := filepath.Join(t.TempDir(), "ttyNOPE")
	_, err = Open(DefaultConfig(missing))
	assert.ErrorContains(t, err, missing)
}

package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)

	var captured []string
	SetLogger(func(format string, v ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, v...))
	})
	Logf("fetched %d states", 42)
	assert.Equal(t, []string{"fetched 42 states"}, captured)

	// Nil installs a no-op, not a panic.
	SetLogger(nil)
	Logf("dropped on the floor")
	assert.Len(t, captured, 1)
}

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Equal(t, "atlaspack dev\n  commit: none\n  built:  unknown\n", String())
}

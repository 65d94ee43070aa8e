package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmgilman/atlaspack"
)

func TestPrintCaptured(t *testing.T) {
	var stdout, stderr bytes.Buffer
	res := &atlaspack.Result{
		Stdout: "packed 2 sprites\n",
		Stderr: "warning: sprite hero.png trimmed\n",
	}

	printCaptured(&stdout, &stderr, res)

	assert.Equal(t, "packed 2 sprites\n", stdout.String())
	assert.Equal(t, "warning: sprite hero.png trimmed\n", stderr.String())
}

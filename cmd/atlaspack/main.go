// Command atlaspack packs sprite images into texture atlases with the native
// atlas builder.
package main

import (
	"os"

	"github.com/jmgilman/atlaspack/internal/cmd"
)

func main() {
	os.Exit(cmd.Main())
}

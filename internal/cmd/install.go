package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmgilman/atlaspack/internal/binary"
	"github.com/jmgilman/atlaspack/internal/prompt"
	"github.com/jmgilman/atlaspack/internal/registry"
	"github.com/jmgilman/atlaspack/internal/slogger"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the atlas builder from a container image",
	Long: `Install the atlas builder executable for this platform from an OCI image.

The image is expected to contain atlasbuilder/<platform>/<arch>/atlasbuilder
or a bare atlasbuilder at its root. The executable is placed under the
configured binary root (binary.root). Registry credentials are read from the
Docker configuration.`,
	Example: `  # Install from the configured image
  atlaspack install

  # Install a specific version without confirmation
  atlaspack install --image ghcr.io/jmgilman/atlasbuilder:1.4.0 --yes

  # Install from a local plain-HTTP registry
  atlaspack install --image localhost:5000/atlasbuilder:dev --insecure`,
	Args: cobra.NoArgs,
	RunE: runInstallCmd,
}

func runInstallCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := requireConfig(ctx)
	if err != nil {
		return err
	}

	image, err := cmd.Flags().GetString("image")
	if err != nil {
		return fmt.Errorf("get image flag: %w", err)
	}
	if image == "" {
		image = cfg.Binary.Image
	}

	insecure, err := cmd.Flags().GetBool("insecure")
	if err != nil {
		return fmt.Errorf("get insecure flag: %w", err)
	}

	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("get yes flag: %w", err)
	}

	dest := binary.HostPath(cfg.Binary.Root)
	if _, statErr := os.Stat(dest); statErr == nil {
		var p prompt.Prompter = prompt.New()
		if yes {
			p = &prompt.AutoPrompter{Answer: true}
		} else if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("atlas builder already installed at %s (use --yes to replace it)", dest)
		}

		ok, err := p.Confirm("Replace the installed atlas builder?", dest)
		if err != nil {
			return err
		}
		if !ok {
			p.Print("Installation canceled.")
			return nil
		}
	}

	slogger.L(ctx).Info("installing atlas builder", "image", image, "root", cfg.Binary.Root)

	client := registry.NewClient(registry.ClientConfig{Insecure: insecure || cfg.Binary.Insecure})
	result, err := client.Install(ctx, image, cfg.Binary.Root)
	if err != nil {
		return fmt.Errorf("install atlas builder: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Installed atlas builder to %s\n", result.Path)
	fmt.Fprintf(cmd.OutOrStdout(), "  image:  %s@%s\n", image, result.Digest)
	fmt.Fprintf(cmd.OutOrStdout(), "  size:   %s\n", formatSize(result.Size))
	return nil
}

func init() {
	rootCmd.AddCommand(installCmd)

	installCmd.Flags().String("image", "", "image to install from (default: binary.image)")
	installCmd.Flags().Bool("insecure", false, "allow plain-HTTP registries")
	installCmd.Flags().BoolP("yes", "y", false, "replace an existing builder without asking")
}

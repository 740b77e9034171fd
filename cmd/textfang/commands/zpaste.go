package commands

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/textfang/pkg/zio"
)

// zpasteOutputBuffer buffers the pasted stream.
const zpasteOutputBuffer = 1 << 20

func newZPasteCommand(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "zpaste files...",
		Short: "Concatenate zstd files line-wise, like paste over compressed inputs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close(cmd.Context())

			paste, err := zio.NewPaste(args)
			if err != nil {
				return err
			}

			out := bufio.NewWriterSize(os.Stdout, zpasteOutputBuffer)

			if _, err := paste.WriteTo(out); err != nil {
				_ = paste.Close()

				return err
			}

			if err := paste.Close(); err != nil {
				return err
			}

			if err := out.Flush(); err != nil {
				return fmt.Errorf("flush output: %w", err)
			}

			return nil
		},
	}
}

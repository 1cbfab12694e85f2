package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wavebatch/internal/dicom"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "validate <artifact>...",
		Short:       "Structurally validate converted artifacts",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			invalid := 0
			for _, path := range args {
				if err := dicom.Validate(path); err != nil {
					invalid++
					fmt.Fprintf(out, "%s: INVALID (%v)\n", path, err)
					continue
				}
				fmt.Fprintf(out, "%s: ok\n", path)
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d artifacts failed validation", invalid, len(args))
			}
			return nil
		},
	}
}

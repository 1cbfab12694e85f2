package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"wavebatch/internal/convert"
	"wavebatch/internal/logging"
	"wavebatch/internal/task"
)

// newRunTaskCommand is the child-process entrypoint. The parent spawns
// one of these per task, sends the task spec as JSON on stdin, and reads
// a single JSON result from stdout. The child always exits zero when it
// produced a result; a non-zero exit signals a crash, and the parent
// classifies it.
func newRunTaskCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "run-task",
		Hidden:      true,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read task spec: %w", err)
			}
			var spec task.Spec
			if err := json.Unmarshal(payload, &spec); err != nil {
				return fmt.Errorf("decode task spec: %w", err)
			}

			logger, err := logging.New(logging.Options{
				Level:       os.Getenv("WAVEBATCH_LOG_LEVEL"),
				Format:      "console",
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return err
			}

			result := convert.Run(spec, logging.WithComponent(logger, "task"))
			encoded, err := json.Marshal(result)
			if err != nil {
				return fmt.Errorf("encode task result: %w", err)
			}
			if _, err := os.Stdout.Write(append(encoded, '\n')); err != nil {
				return fmt.Errorf("write task result: %w", err)
			}
			return nil
		},
	}
}

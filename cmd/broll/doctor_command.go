package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"broll/internal/deps"
	"broll/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var skipServices bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check external binaries, directories, and service credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			rows := make([][]string, 0, len(statuses))
			for _, st := range statuses {
				detail := st.Detail
				if st.Available {
					detail = st.Command
				}
				rows = append(rows, []string{st.Name, checkCell(st.Available, detail, colorize), yesNo(st.Optional), st.Description})
			}
			fmt.Fprintln(out, renderTable([]string{"Dependency", "Status", "Optional", "Used for"}, rows, nil))

			var results []preflight.Result
			if skipServices {
				results = []preflight.Result{
					preflight.CheckDirectoryAccess("Upload directory", cfg.Paths.UploadDir),
					preflight.CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
					preflight.CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
				}
			} else {
				results = preflight.RunAll(cmd.Context(), cfg)
			}
			checkRows := make([][]string, 0, len(results))
			for _, r := range results {
				checkRows = append(checkRows, []string{r.Name, checkCell(r.Passed, r.Detail, colorize)})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Result"}, checkRows, nil))

			missing := deps.Missing(statuses)
			failed := preflight.Failed(results)
			if len(missing) > 0 || len(failed) > 0 {
				return fmt.Errorf("%d missing dependencies, %d failed checks", len(missing), len(failed))
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipServices, "offline", false, "Skip LLM and stock API checks")
	return cmd
}

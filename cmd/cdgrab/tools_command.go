package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"cdgrab/internal/deps"
	"cdgrab/internal/provision"
)

func newToolsCommand(ctx *commandContext) *cobra.Command {
	var extract bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Show the bundled tools and where they are extracted",
		RunE: func(cmd *cobra.Command, args []string) error {
			prov, err := ctx.provisioner()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if extract {
				for _, tool := range provision.Tools() {
					bin, err := prov.Ensure(cmd.Context(), tool)
					if err != nil {
						fmt.Fprintln(out, renderStatusLine(tool.Command(), statusError, err.Error(), colorize))
						continue
					}
					fmt.Fprintln(out, renderStatusLine(tool.Command(), statusOK, "extracted to "+bin.Path, colorize))
				}
			}

			statuses := deps.CheckTools(prov)
			rows := make([][]string, 0, len(statuses))
			for _, st := range statuses {
				size, digest := "", ""
				if st.Present {
					size = strconv.FormatInt(st.Size, 10)
					digest = shortDigest(st.SHA256)
				}
				rows = append(rows, []string{
					st.Name,
					st.Description,
					st.Command,
					yesNo(st.Present),
					yesNo(st.Executable),
					yesNo(st.Current),
					size,
					digest,
					st.Detail,
				})
			}
			fmt.Fprintf(out, "Binaries directory: %s\n", prov.Dir())
			fmt.Fprintln(out, renderTable(
				[]string{"Tool", "Role", "Path", "Present", "Executable", "Current", "Bytes", "SHA-256", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			for _, st := range statuses {
				if st.SystemPath != "" {
					fmt.Fprintln(out, renderStatusLine(st.Name, statusInfo, "system copy on PATH at "+st.SystemPath+" (not used)", colorize))
				}
			}
			if extract && !deps.AllAvailable(statuses) {
				return fmt.Errorf("one or more tools could not be extracted")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&extract, "provision", false, "Extract the tools now instead of only reporting")
	return cmd
}

// shortDigest trims a hex digest to a prefix that is enough to compare by eye.
func shortDigest(sum string) string {
	const width = 12
	if len(sum) <= width {
		return sum
	}
	return sum[:width]
}

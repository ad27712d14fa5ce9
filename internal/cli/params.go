package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Bidon15/university-deployer/internal/migration"
)

func (a *app) paramsCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "params",
		Short: "Print the University constructor arguments",
		Long: `Resolve and print the University constructor arguments for the selected
network in positional order. No transaction is sent and no RPC endpoint
is contacted; the factory addresses must already be in the artifacts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			network, err := a.cfg.SelectedNetwork()
			if err != nil {
				return err
			}
			registry, err := loadRegistry(a.cfg.Artifacts, a.logger)
			if err != nil {
				return err
			}
			params, err := migration.BuildParameters(network, registry)
			if err != nil {
				return err
			}

			named := params.Named()
			if jsonOut {
				return a.printJSON(named)
			}

			w := a.newTable()
			fmt.Fprintln(w, "#\tNAME\tTYPE\tVALUE")
			for _, arg := range named {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", arg.Position, arg.Name, arg.Type, arg.Value)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	return cmd
}

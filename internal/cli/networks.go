package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) networksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List configured networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := a.newTable()
			fmt.Fprintln(w, "NAME\tCHAIN ID\tUNIVERSITY\tCUT\tVALID")
			for _, name := range a.cfg.NetworkNames() {
				n := a.cfg.Networks[name]
				valid := "yes"
				if _, err := a.cfg.LookupNetwork(name); err != nil {
					valid = "no"
				}
				marker := ""
				if name == a.cfg.Network {
					marker = " *"
				}
				fmt.Fprintf(w, "%s%s\t%d\t%s\t%s\t%s\n", name, marker, n.ChainID, n.UniversityName, n.UniversityCut, valid)
			}
			return w.Flush()
		},
	}
}

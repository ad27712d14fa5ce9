// university-deployer publishes the University contract suite to an EVM
// network.
package main

import "github.com/Bidon15/university-deployer/internal/cli"

func main() {
	cli.Execute()
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var viewCmd = &cobra.Command{
	Use:   "view <pipe>",
	Short: "Print a pipe's declared parameters, products, and dependencies.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWorkspace()
		if err != nil {
			return err
		}
		p, err := w.ViewPipe(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("pipe: %s\n", p.Name)

		fmt.Println("parameters:")
		for _, param := range p.Parameters {
			fmt.Printf("  %s = %v\n", param.Name(), param.Get())
		}

		fmt.Println("products:")
		for _, prod := range p.Products {
			fmt.Printf("  %s (%s)\n", prod.Name(), prod.RelPath())
		}

		fmt.Println("dependencies:")
		for _, dep := range p.Dependencies {
			fmt.Printf("  %s <- %s\n", dep.Keyword, dep.ProductName())
		}
		return nil
	},
}

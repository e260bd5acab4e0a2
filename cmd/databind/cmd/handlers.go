package cmd

import (
	"fmt"

	"github.com/go-drift/databind/pkg/bind"
	"github.com/go-drift/databind/pkg/config"
)

func init() {
	RegisterCommand(&Command{
		Name:  "handlers",
		Short: "List the registered handlers",
		Long: `List the handler names an element can select with data-magic-handler.
The default handler is marked with *.`,
		Usage: "databind handlers",
		Run:   runHandlers,
	})
}

func runHandlers(args []string) error {
	opts, err := config.LoadOptional(resolveConfigDir())
	if err != nil {
		return err
	}
	engine := bind.New(bind.WithOptions(opts), bind.WithScheduler(nil))
	defer engine.Close()

	registry := engine.Registry()
	for _, name := range registry.Names() {
		marker := " "
		if name == registry.Default() {
			marker = "*"
		}
		fmt.Fprintf(stdout, "%s %s\n", marker, name)
	}
	return nil
}

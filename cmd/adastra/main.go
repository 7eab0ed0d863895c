// Command adastra is a minimal consumer binary exercising the engine
// end-to-end (run/fmt/check), grounded on the teacher's cmd/sentra/main.go
// command dispatch but rewired onto github.com/spf13/cobra instead of the
// teacher's hand-rolled flag switch (spec.md §1 — "a fully-featured CLI
// runner" is out of scope; this is a thin consumer, not a product).
package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"adastra/cmd/adastra/commands"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	root := commands.NewRoot(log)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package main renders the slo-reporter command reference as markdown or man
// pages.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra/doc"

	"github.com/donaldgifford/slo-reporter/cmd/slo-reporter/cmd"
)

func main() {
	output := flag.String("output", "docs/cli", "directory to write the reference into")
	format := flag.String("format", "markdown", "output format: markdown or man")
	flag.Parse()

	root := cmd.Root()
	root.DisableAutoGenTag = true

	var gen func() error
	switch *format {
	case "markdown":
		gen = func() error { return doc.GenMarkdownTree(root, *output) }
	case "man":
		header := &doc.GenManHeader{
			Title:   "SLO-REPORTER",
			Section: "1",
			Source:  "slo-reporter " + cmd.Version,
			Manual:  "Thoth SLO reporting",
		}
		gen = func() error { return doc.GenManTree(root, header, *output) }
	default:
		log.Fatalf("unknown format %q (want markdown or man)", *format)
	}

	if err := os.MkdirAll(*output, 0o750); err != nil {
		log.Fatalf("creating %s: %v", *output, err)
	}
	if err := gen(); err != nil {
		log.Fatalf("rendering %s reference: %v", *format, err)
	}

	fmt.Printf("%s reference written to %s/\n", *format, *output)
}

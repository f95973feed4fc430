package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/adapter/filesink"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/pipeline"
)

const menuPrompt = `
1 - Process burning regions
2 - Exit
Choose an option: `

type runFunc func(ctx context.Context) (*pipeline.Report, error)

// runMenu drives the interactive mode until the user exits, input ends or ctx
// is cancelled. A failed run is reported and the menu is shown again.
func runMenu(ctx context.Context, in io.Reader, out io.Writer, run runFunc) error {
	scanner := bufio.NewScanner(in)
	for {
		if _, err := fmt.Fprint(out, menuPrompt); err != nil {
			return err
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		switch strings.TrimSpace(scanner.Text()) {
		case "1":
			report, err := run(ctx)
			if err != nil {
				fmt.Fprintf(out, "Run failed: %v\n", err)
				continue
			}
			data, err := filesink.Marshal(report.Records)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\n", data)
			fmt.Fprintf(out, "Saved %d records to %s\n", report.Points, report.OutputPath)
		case "2":
			fmt.Fprintln(out, "Exiting.")
			return nil
		default:
			fmt.Fprintln(out, "Invalid option.")
		}
	}
}

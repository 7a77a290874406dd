package command

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/hrimport/internal/client"
	"github.com/JonMunkholm/hrimport/internal/core"
)

type reportFlags struct {
	dryRun   bool
	asJSON   bool
	warnings bool
}

func (f *reportFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "validate and resolve without writing")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the full report as JSON")
	cmd.Flags().BoolVar(&f.warnings, "warnings", false, "list field warnings")
}

func (cl *Commandline) ingest(cmd *cobra.Command) {
	var flags reportFlags
	ccmd := &cobra.Command{
		Use:   "ingest FILE",
		Short: "Ingest a roster into the configured store",
		Long:  "Ingest a roster into the configured store. Use - to read from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}

			app, err := cl.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := core.ContextWithActor(cmd.Context(), cliActor())
			report, err := app.Service.Ingest(ctx, core.IngestRequest{
				FileName: filepath.Base(args[0]),
				Data:     data,
				DryRun:   flags.dryRun,
			})
			if err != nil {
				return fmt.Errorf("%s", core.FormatUserError(err))
			}
			return printReport(cmd.OutOrStdout(), report, flags)
		},
	}
	flags.register(ccmd)
	cmd.AddCommand(ccmd)
}

func (cl *Commandline) push(cmd *cobra.Command) {
	var flags reportFlags
	var server, apiKey string
	var timeout time.Duration
	ccmd := &cobra.Command{
		Use:   "push FILE",
		Short: "Upload a roster to a running hrimport server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			if apiKey == "" {
				apiKey = os.Getenv("HRIMPORT_API_KEY")
			}

			c := client.New(client.Options{BaseURL: server, APIKey: apiKey, Timeout: timeout, Logger: cl.logger})
			report, err := c.Ingest(cmd.Context(), filepath.Base(args[0]), data, flags.dryRun)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), report, flags)
		},
	}
	flags.register(ccmd)
	ccmd.Flags().StringVar(&server, "server", "http://localhost:8080", "server base URL")
	ccmd.Flags().StringVar(&apiKey, "api-key", "", "API key (default $HRIMPORT_API_KEY)")
	ccmd.Flags().DurationVar(&timeout, "timeout", client.DefaultTimeout, "request timeout")
	cmd.AddCommand(ccmd)
}

func printReport(w io.Writer, report *core.Report, flags reportFlags) error {
	if flags.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	mode := "committed"
	if report.DryRun {
		mode = "dry run, nothing written"
	}
	fmt.Fprintf(w, "Run %s (%s) %s\n", report.RunID, mode, report.FileName)

	summary := tablewriter.NewWriter(w)
	summary.SetHeader([]string{"Total", "Created", "Updated", "Unchanged", "Failed", "Warnings", "Duration"})
	summary.Append([]string{
		strconv.Itoa(report.TotalRows),
		strconv.Itoa(report.Created),
		strconv.Itoa(report.Updated),
		strconv.Itoa(report.Unchanged),
		strconv.Itoa(report.Failed()),
		strconv.Itoa(len(report.Warnings)),
		report.Duration.Round(time.Millisecond).String(),
	})
	summary.Render()

	if len(report.RowErrors) > 0 {
		fmt.Fprintln(w, "\nRejected rows")
		t := tablewriter.NewWriter(w)
		t.SetHeader([]string{"Row", "Code", "Field", "Message"})
		t.SetAutoWrapText(false)
		for _, e := range report.RowErrors {
			t.Append([]string{strconv.Itoa(e.Row), string(e.Kind), e.Field, e.Message})
		}
		t.Render()
	}

	if flags.warnings && len(report.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings")
		t := tablewriter.NewWriter(w)
		t.SetHeader([]string{"Row", "Field", "Message"})
		t.SetAutoWrapText(false)
		for _, wn := range report.Warnings {
			t.Append([]string{strconv.Itoa(wn.Row), wn.Field, wn.Message})
		}
		t.Render()
	}
	return nil
}

// cliActor names the local user in audit entries.
func cliActor() string {
	if u := os.Getenv("USER"); u != "" {
		return "cli:" + u
	}
	return "cli"
}

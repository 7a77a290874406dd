package command

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/hrimport/internal/core"
)

func (cl *Commandline) migrate(cmd *cobra.Command) {
	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cl.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	})
}

func (cl *Commandline) columns(cmd *cobra.Command) {
	cmd.AddCommand(&cobra.Command{
		Use:   "columns",
		Short: "List recognised roster columns and their accepted spellings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := tablewriter.NewWriter(cmd.OutOrStdout())
			t.SetHeader([]string{"Header", "Also accepted"})
			t.SetAutoWrapText(false)
			for _, c := range core.AllColumns() {
				t.Append([]string{c.Label, strings.Join(c.Synonyms, ", ")})
			}
			t.Render()
			return nil
		},
	})
}

func (cl *Commandline) template(cmd *cobra.Command) {
	var output string
	var asCSV bool
	ccmd := &cobra.Command{
		Use:   "template",
		Short: "Write an empty roster template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if asCSV {
				data, err = core.WriteTemplateCSV()
			} else {
				data, err = core.WriteTemplateXLSX()
			}
			if err != nil {
				return err
			}

			if output == "" {
				output = "roster_template.xlsx"
				if asCSV {
					output = "roster_template.csv"
				}
			}
			if output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	ccmd.Flags().StringVarP(&output, "output", "o", "", "output path, - for stdout")
	ccmd.Flags().BoolVar(&asCSV, "csv", false, "write CSV instead of XLSX")
	cmd.AddCommand(ccmd)
}

func (cl *Commandline) runs(cmd *cobra.Command) {
	var limit int
	ccmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded ingestion runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cl.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			runs, err := app.Store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			t := tablewriter.NewWriter(cmd.OutOrStdout())
			t.SetHeader([]string{"Run", "File", "Started", "Total", "Created", "Updated", "Unchanged", "Failed", "By"})
			for _, r := range runs {
				t.Append([]string{
					r.RunID,
					r.FileName,
					r.StartedAt.Local().Format(time.DateTime),
					strconv.Itoa(r.TotalRows),
					strconv.Itoa(r.Created),
					strconv.Itoa(r.Updated),
					strconv.Itoa(r.Unchanged),
					strconv.Itoa(r.Failed),
					r.ChangedBy,
				})
			}
			t.Render()
			return nil
		},
	}
	ccmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	cmd.AddCommand(ccmd)
}

func (cl *Commandline) faculty(cmd *cobra.Command) {
	var after int64
	var limit int
	ccmd := &cobra.Command{
		Use:   "faculty",
		Short: "List stored faculty records in ID order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cl.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			faculty, err := app.Store.ListFaculty(cmd.Context(), after, limit)
			if err != nil {
				return err
			}

			t := tablewriter.NewWriter(cmd.OutOrStdout())
			t.SetHeader([]string{"ID", "Person", "Code", "Title", "Status", "Joined"})
			for _, f := range faculty {
				joined := ""
				if f.DateOfJoining.Valid {
					joined = f.DateOfJoining.Time.Format(time.DateOnly)
				}
				t.Append([]string{
					strconv.FormatInt(f.ID, 10),
					strconv.FormatInt(f.PersonID, 10),
					f.Code.String,
					f.Title.String,
					string(f.Status),
					joined,
				})
			}
			t.Render()
			return nil
		},
	}
	ccmd.Flags().Int64Var(&after, "after", 0, "list records with IDs above this one")
	ccmd.Flags().IntVar(&limit, "limit", 50, "maximum records to list")
	cmd.AddCommand(ccmd)
}

func (cl *Commandline) audit(cmd *cobra.Command) {
	cmd.AddCommand(&cobra.Command{
		Use:   "audit RUN_ID",
		Short: "List the changes a run made",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cl.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			entries, err := app.Store.ListAudit(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			t := tablewriter.NewWriter(cmd.OutOrStdout())
			t.SetHeader([]string{"Table", "Action", "Record", "By", "At"})
			for _, e := range entries {
				t.Append([]string{
					e.TableName,
					string(e.Action),
					strconv.FormatInt(e.RecordID, 10),
					e.ChangedBy,
					e.CreatedAt.Local().Format(time.DateTime),
				})
			}
			t.Render()
			return nil
		},
	})
}

func (cl *Commandline) purgeAudit(cmd *cobra.Command) {
	cmd.AddCommand(&cobra.Command{
		Use:   "purge-audit",
		Short: "Delete audit entries older than AUDIT_RETENTION_DAYS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cl.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			n := core.RunRetention(cmd.Context(), app.Store, app.Retention(), time.Now())
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d audit entries\n", n)
			return nil
		},
	})
}

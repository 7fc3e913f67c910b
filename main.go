package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"casetrack-desktop/internal/api"
	"casetrack-desktop/internal/services/importer"
	"casetrack-desktop/internal/services/mapping"
	"casetrack-desktop/internal/services/scheduler"
	"casetrack-desktop/internal/services/schema"
)

func main() {
	app := NewApp()

	rootCmd := newRootCmd(app)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(app *App) *cobra.Command {
	var profileID string

	rootCmd := &cobra.Command{
		Use:           "casetrack",
		Short:         "Import LPR and GPS evidence files into investigation cases",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := app.startup(context.Background()); err != nil {
				return err
			}
			if profileID != "" {
				return app.SelectProfile(profileID)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.shutdown(context.Background())
		},
	}
	rootCmd.PersistentFlags().StringVar(&profileID, "profile", "", "server profile id to connect with")

	rootCmd.AddCommand(
		newImportCmd(app),
		newCrossCmd(app),
		newFilesCmd(app),
		newHistoryCmd(app),
		newJobsCmd(app),
		newProfilesCmd(app),
	)
	return rootCmd
}

func newImportCmd(app *App) *cobra.Command {
	var (
		caseID     int
		kind       string
		plate      string
		confirm    bool
		columns    []string
		dateFormat string
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import an evidence file into a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := importer.Request{
				CaseID:            caseID,
				FilePath:          args[0],
				Kind:              schema.ImportKind(kind),
				Plate:             plate,
				ConfirmNewReaders: confirm,
			}

			if len(columns) > 0 || dateFormat != "" {
				m, err := buildMapping(req.Kind, columns, dateFormat)
				if err != nil {
					return err
				}
				req.Mapping = m
			}

			outcome, err := app.StartImport(req)
			if err != nil {
				return err
			}

			if outcome.NeedsConfirmation {
				fmt.Println("Reader validation needs confirmation:")
				fmt.Println(" ", outcome.ReaderReport.Summary())
				fmt.Println("Re-run with --confirm-new-readers to proceed.")
				return nil
			}

			fmt.Println("Import accepted, task:", outcome.TaskID)
			return waitForTask(app, outcome.TaskID)
		},
	}

	cmd.Flags().IntVar(&caseID, "case", 0, "case id (required)")
	cmd.Flags().StringVar(&kind, "kind", string(schema.KindLPR), "file kind: LPR, GPS, GPX_KML or EXTERNO")
	cmd.Flags().StringVar(&plate, "plate", "", "plate to stamp on track imports")
	cmd.Flags().BoolVar(&confirm, "confirm-new-readers", false, "proceed even when the file introduces new readers")
	cmd.Flags().StringSliceVar(&columns, "map", nil, "manual column mapping as field=header (repeatable)")
	cmd.Flags().StringVar(&dateFormat, "combined-format", "", "format of a combined date/time column")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

// buildMapping turns --map field=header pairs into a column mapping. When a
// combined format is given, Fecha and Hora may point at the same header.
func buildMapping(kind schema.ImportKind, columns []string, dateFormat string) (*mapping.Mapping, error) {
	m, err := mapping.New(kind)
	if err != nil {
		return nil, err
	}

	if dateFormat != "" {
		if err := m.SetCombinedFormat(dateFormat); err != nil {
			return nil, err
		}
	}

	for _, pair := range columns {
		field, header, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --map value %q, expected field=header", pair)
		}
		if dateFormat != "" && (field == schema.FieldFecha || field == schema.FieldHora) {
			if err := m.AssignCombined(header); err != nil {
				return nil, err
			}
			continue
		}
		if err := m.Assign(field, header); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func newCrossCmd(app *App) *cobra.Command {
	var filters api.CrossFilters

	cmd := &cobra.Command{
		Use:   "cross",
		Short: "Cross-reference external records against LPR captures",
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := app.StartCrossReference(filters)
			if err != nil {
				return err
			}
			fmt.Println("Cross-reference started, task:", taskID)
			return waitForTask(app, taskID)
		},
	}

	cmd.Flags().IntVar(&filters.CasoID, "case", 0, "case id (required)")
	cmd.Flags().StringVar(&filters.Matricula, "matricula", "", "restrict to one plate")
	cmd.Flags().StringVar(&filters.SourceName, "source", "", "restrict to one external source")
	cmd.Flags().StringVar(&filters.FechaDesde, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filters.FechaHasta, "to", "", "end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

// waitForTask blocks until the monitor for taskID finishes, printing the
// final state
func waitForTask(app *App, taskID string) error {
	monitor, ok := app.registry.Get(taskID)
	if !ok {
		return nil
	}
	<-monitor.Done()

	_, failure := monitor.Finished()
	if failure != "" {
		return fmt.Errorf("task %s failed: %s", taskID, failure)
	}
	fmt.Println("Task completed:", taskID)
	return nil
}

func newFilesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage the files imported into a case",
	}

	var caseID int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List imported files",
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := app.ListCaseFiles(caseID)
			if err != nil {
				return err
			}
			fmt.Printf("Case %d (%s): %d files\n", caseID, app.CaseName(caseID), len(files))
			for _, f := range files {
				fmt.Printf("  %-6d %-12s %-30s %d records\n",
					f.IDArchivo, f.TipoDeArchivo, f.NombreDelArchivo, f.TotalRegistros)
			}
			return nil
		},
	}
	listCmd.Flags().IntVar(&caseID, "case", 0, "case id (required)")
	_ = listCmd.MarkFlagRequired("case")

	rmCmd := &cobra.Command{
		Use:   "rm <file-id>",
		Short: "Delete an imported file and its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var fileID int
			if _, err := fmt.Sscanf(args[0], "%d", &fileID); err != nil {
				return fmt.Errorf("invalid file id %q", args[0])
			}
			if err := app.DeleteCaseFile(fileID); err != nil {
				return err
			}
			fmt.Println("Deleted file", fileID)
			return nil
		},
	}

	cmd.AddCommand(listCmd, rmCmd)
	return cmd
}

func newHistoryCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent imports and cross-references",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := app.ListHistory(limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				name := e.FileName
				if name == "" {
					name = e.JobType
				}
				fmt.Printf("%-20s %-10s %-30s %s\n", e.StartedAt, e.Status, name, e.Summary)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of entries to show")
	return cmd
}

func newJobsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage scheduled cross-reference jobs",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := app.ListScheduledJobs()
			if err != nil {
				return err
			}
			for _, j := range jobs {
				state := "disabled"
				if j.Enabled {
					state = "enabled"
				}
				nextRun := "-"
				if j.NextRun != nil {
					nextRun = *j.NextRun
				}
				fmt.Printf("%-36s %-25s %-15s %-9s next: %s\n", j.ID, j.Name, j.Cron, state, nextRun)
			}
			return nil
		},
	}

	var (
		name     string
		cronExpr string
		payload  string
		enabled  bool
	)
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Create or update a scheduled job",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := app.UpsertScheduledJob(scheduler.UpsertJobRequest{
				Name:    name,
				JobType: "cross_reference",
				Cron:    cronExpr,
				Enabled: enabled,
				Payload: payload,
			})
			if err != nil {
				return err
			}
			fmt.Println("Job saved:", jobID)
			return nil
		},
	}
	setCmd.Flags().StringVar(&name, "name", "", "job name (required)")
	setCmd.Flags().StringVar(&cronExpr, "cron", "", "cron expression, 5 or 6 fields (required)")
	setCmd.Flags().StringVar(&payload, "payload", "", `job payload, e.g. {"caso_id": 12}`)
	setCmd.Flags().BoolVar(&enabled, "enabled", true, "whether the job is active")
	_ = setCmd.MarkFlagRequired("name")
	_ = setCmd.MarkFlagRequired("cron")

	rmCmd := &cobra.Command{
		Use:   "rm <job-id>",
		Short: "Delete a scheduled job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.DeleteScheduledJob(args[0]); err != nil {
				return err
			}
			fmt.Println("Deleted job", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, setCmd, rmCmd)
	return cmd
}

func newProfilesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage server connection profiles",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := app.ListProfiles()
			if err != nil {
				return err
			}
			for _, p := range profiles {
				fmt.Printf("%-36s %-20s %s\n", p.ID, p.Name, p.BaseURL)
			}
			return nil
		},
	}

	var req CreateProfileRequest
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Save a new server profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			test := app.TestConnection(TestConnectionRequest{
				URL:      req.BaseURL,
				Username: req.Username,
				Password: req.Password,
			})
			if !test.Success {
				log.Printf("WARNING: %s", test.Error)
			}
			if err := app.CreateProfile(req); err != nil {
				return err
			}
			fmt.Println("Profile saved:", req.Name)
			return nil
		},
	}
	addCmd.Flags().StringVar(&req.Name, "name", "", "profile name (required)")
	addCmd.Flags().StringVar(&req.Owner, "owner", "", "profile owner")
	addCmd.Flags().StringVar(&req.BaseURL, "url", "", "server base url (required)")
	addCmd.Flags().StringVar(&req.Username, "username", "", "server username")
	addCmd.Flags().StringVar(&req.Password, "password", "", "server password")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("url")

	rmCmd := &cobra.Command{
		Use:   "rm <profile-id>",
		Short: "Delete a saved profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.DeleteProfile(args[0]); err != nil {
				return err
			}
			fmt.Println("Deleted profile", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, addCmd, rmCmd)
	return cmd
}

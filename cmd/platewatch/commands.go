package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jo-hoe/platewatch/internal/pipeline"
)

func processCmd() *cobra.Command {
	var inputDir, outputDir string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process every image in the input directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			coreService, err := newCoreService()
			if err != nil {
				return err
			}
			defer func() { _ = coreService.Close() }()

			if inputDir == "" {
				inputDir = coreService.Config().Input.Directory
			}
			if outputDir == "" {
				outputDir = coreService.Config().Output.Directory
			}

			report, err := coreService.ProcessDirectory(cmd.Context(), inputDir, outputDir)
			if err != nil {
				return err
			}

			for _, file := range report.Files {
				switch file.Result.Outcome {
				case pipeline.OutcomeRecorded:
					fmt.Printf("%s: %s - %s\n", file.File, pipeline.Label(*file.Result.Entry), file.Output)
				case pipeline.OutcomeFailed:
					fmt.Printf("%s: failed: %v\n", file.File, file.Err)
				default:
					fmt.Printf("%s: %s (%v)\n", file.File, file.Result.Outcome, file.Result.Reason)
				}
			}
			fmt.Printf("Processed %d images, %d arrivals recorded\n", len(report.Files), report.Count(pipeline.OutcomeRecorded))
			return nil
		},
	}

	cmd.Flags().StringVar(&inputDir, "input", "", "input image directory (default from config)")
	cmd.Flags().StringVar(&outputDir, "output", "", "output directory for annotated images (default from config)")
	return cmd
}

func viewCmd() *cobra.Command {
	var hours int

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Show entries of the last hours and send a summary report",
		RunE: func(cmd *cobra.Command, args []string) error {
			coreService, err := newCoreService()
			if err != nil {
				return err
			}
			defer func() { _ = coreService.Close() }()

			entries, summary, err := coreService.Report(cmd.Context(), hours)
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Printf("No entries in the last %d hours\n", hours)
			} else {
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tPLATE\tEMPLOYEE\tDEPARTMENT\tSTATUS\tMINUTES LATE")
				for _, entry := range entries {
					minutes := "-"
					if entry.MinutesLate != nil {
						minutes = fmt.Sprint(*entry.MinutesLate)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						entry.Timestamp.Format("2006-01-02 15:04:05"),
						entry.LicensePlate,
						entry.EmployeeName,
						entry.Department,
						entry.Status.Label(),
						minutes)
				}
				_ = w.Flush()
			}

			fmt.Printf("\nTotal: %d  On time: %d  Late: %d  Invalid/Unknown: %d\n",
				summary.Total, summary.OnTime, summary.Late, summary.Invalid)
			return nil
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 24, "look-back window in hours")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the configured roster, or a sample roster when none is configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			coreService, err := newCoreService()
			if err != nil {
				return err
			}
			defer func() { _ = coreService.Close() }()

			n, err := coreService.Seed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d employees\n", n)
			return nil
		},
	}
}

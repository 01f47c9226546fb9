package main

import (
	"fmt"
	"strconv"
	"time"

	"webshrink/failures"
	"webshrink/success"

	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var showFailures bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the success or failure ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if showFailures {
				store, err := failures.Open(cfg.FailuresDBPath())
				if err != nil {
					return err
				}
				defer store.Close()
				records, err := store.ListFailures()
				if err != nil {
					return err
				}
				fmt.Println(failureTable(records))
				return nil
			}

			store, err := success.Open(cfg.SuccessDBPath())
			if err != nil {
				return err
			}
			defer store.Close()
			records, err := store.ListSuccessRecords()
			if err != nil {
				return err
			}
			fmt.Println(successTable(records))
			return nil
		},
	}
	cmd.Flags().BoolVar(&showFailures, "failures", false, "Show failed and cancelled jobs instead")
	return cmd
}

const detailWidth = 60

var successColumns = []ledgerColumn[success.SuccessRecord]{
	{header: "Job", value: func(r success.SuccessRecord) string { return r.JobID }},
	{header: "Finished", value: func(r success.SuccessRecord) string { return r.Timestamp.Local().Format(time.DateTime) }},
	{header: "Output", value: func(r success.SuccessRecord) string { return r.Filename }},
	{header: "In", numeric: true, value: func(r success.SuccessRecord) string { return formatBytes(r.InputSize) }},
	{header: "Out", numeric: true, value: func(r success.SuccessRecord) string { return formatBytes(r.OutputSize) }},
	{header: "Saved", numeric: true, value: func(r success.SuccessRecord) string {
		return strconv.FormatFloat(r.ReductionPercent, 'f', 1, 64) + "%"
	}},
	{header: "Took", numeric: true, value: func(r success.SuccessRecord) string { return r.Duration.Round(time.Millisecond).String() }},
}

var failureColumns = []ledgerColumn[failures.FailureRecord]{
	{header: "Job", value: func(r failures.FailureRecord) string { return r.JobID }},
	{header: "Finished", value: func(r failures.FailureRecord) string { return r.Timestamp.Local().Format(time.DateTime) }},
	{header: "Input", value: func(r failures.FailureRecord) string { return r.Filename }},
	{header: "Size", numeric: true, value: func(r failures.FailureRecord) string { return formatBytes(r.InputSize) }},
	{header: "Kind", value: func(r failures.FailureRecord) string { return string(r.Kind) }},
	{header: "Detail", maxWidth: detailWidth, value: func(r failures.FailureRecord) string { return r.Detail }},
}

func successTable(records []success.SuccessRecord) string {
	if len(records) == 0 {
		return "No successful jobs recorded"
	}
	return renderLedger(records, successColumns)
}

func failureTable(records []failures.FailureRecord) string {
	if len(records) == 0 {
		return "No failed jobs recorded"
	}
	return renderLedger(records, failureColumns)
}

package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nlukyanov/mailbox-sizes/report"
)

type reportRow struct {
	Email    string
	Messages string
	SizeGB   float64
	Correct  string
}

// NewTopCommand builds the "top" subcommand: it reads a previously
// generated report CSV and prints the largest mailboxes.
func NewTopCommand() *cobra.Command {
	var topN int

	cmd := &cobra.Command{
		Use:   "top [report file]",
		Short: "Show the largest mailboxes from a report CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readReport(args[0])
			if err != nil {
				return err
			}

			sort.Slice(rows, func(i, j int) bool {
				return rows[i].SizeGB > rows[j].SizeGB
			})
			if topN < len(rows) {
				rows = rows[:topN]
			}

			table := pterm.TableData{{"Email", "Messages", "Size (GB)", "Size correct"}}
			for _, row := range rows {
				table = append(table, []string{
					row.Email,
					row.Messages,
					strconv.FormatFloat(row.SizeGB, 'f', 2, 64),
					row.Correct,
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
		},
	}

	cmd.Flags().IntVarP(&topN, "top", "t", 10, "Number of mailboxes to display")
	return cmd
}

func readReport(path string) ([]reportRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = ';'

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}

	var rows []reportRow
	for i, record := range records {
		if len(record) != len(report.Header) {
			return nil, fmt.Errorf("report %s line %d: expected %d fields, got %d", path, i+1, len(report.Header), len(record))
		}
		if i == 0 && record[0] == report.Header[0] {
			continue
		}

		sizeGB, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, fmt.Errorf("report %s line %d: bad size %q: %w", path, i+1, record[2], err)
		}

		rows = append(rows, reportRow{
			Email:    record[0],
			Messages: record[1],
			SizeGB:   sizeGB,
			Correct:  record[3],
		})
	}
	return rows, nil
}

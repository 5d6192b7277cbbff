package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Alzter/EmpKiller/internal/model"
)

var rosterWeek int

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Fetch and print a week's shift roster",
	RunE:  runRoster,
}

func init() {
	rosterCmd.Flags().IntVar(&rosterWeek, "week", 0, "week offset (0 = current, 1 = next, -1 = previous)")
	rootCmd.AddCommand(rosterCmd)
}

func runRoster(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.cleanup()

	rst, err := a.repo.GetRoster(ctx, rosterWeek)
	if err != nil {
		return err
	}

	printRoster(rst)
	return nil
}

// printRoster renders the roster as an aligned text table. This is a pure
// projection for the terminal; the roster itself stays an ordered record
// sequence.
func printRoster(rst model.Roster) {
	fmt.Printf("Roster %s (%d shifts)\n", rst.Range, len(rst.Shifts))
	if len(rst.Shifts) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "START\tEND\tROLE\tDEPARTMENT\tJOB\tSTATUS")
	for _, s := range rst.Shifts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Start.Format("Mon 02 Jan 15:04"),
			s.End.Format("Mon 02 Jan 15:04"),
			s.Role,
			s.Department,
			orDash(s.Job),
			orDash(s.Status),
		)
	}
	w.Flush()
}

func orDash(v *string) string {
	if v == nil || *v == "" {
		return "-"
	}
	return *v
}

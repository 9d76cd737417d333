package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wordrecords/internal/database"
	"wordrecords/internal/repository"
	"wordrecords/internal/service"
)

var assignmentsCmd = &cobra.Command{
	Use:   "assignments",
	Short: "Issue and retire homework assignment run tokens",
}

var assignmentsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Issue a run token for a class and word list",
	RunE: func(cmd *cobra.Command, args []string) error {
		class, _ := cmd.Flags().GetString("class")
		list, _ := cmd.Flags().GetString("list")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		a, err := newAssignmentService(db).CreateAssignment(class, list)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Run token for %s / %s: %s\n", a.Class, a.ListKey, a.RunToken)
		return nil
	},
}

var assignmentsDeactivateCmd = &cobra.Command{
	Use:   "deactivate <run-token>",
	Short: "Retire a run token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ok, err := newAssignmentService(db).Deactivate(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no assignment with run token %q", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %s\n", args[0])
		return nil
	},
}

func newAssignmentService(db database.DBTX) *service.AssignmentService {
	return service.NewAssignmentService(repository.NewAssignmentRepository(db), repository.NewStudentRepository(db))
}

func init() {
	assignmentsAddCmd.Flags().String("class", "", "Class the homework is set for")
	assignmentsAddCmd.Flags().String("list", "", "Word list key, as sent in list_name")
	assignmentsAddCmd.MarkFlagRequired("class")
	assignmentsAddCmd.MarkFlagRequired("list")

	assignmentsCmd.AddCommand(assignmentsAddCmd)
	assignmentsCmd.AddCommand(assignmentsDeactivateCmd)
}

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wordrecords/internal/repository"
	"wordrecords/internal/service"
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "Manage student accounts",
}

var studentsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a student with generated credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		class, _ := cmd.Flags().GetString("class")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		svc := service.NewStudentService(repository.NewStudentRepository(db))
		student, creds, err := svc.AddStudent(name, class)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created %s (%s)\n", student.DisplayName, student.ID)
		fmt.Fprintf(out, "  username: %s\n", creds.Username)
		fmt.Fprintf(out, "  password: %s\n", creds.Password)
		return nil
	},
}

var studentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List students, optionally for one class",
	RunE: func(cmd *cobra.Command, args []string) error {
		class, _ := cmd.Flags().GetString("class")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		students, err := service.NewStudentService(repository.NewStudentRepository(db)).ListStudents(class)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USERNAME\tNAME\tCLASS\tID")
		for _, s := range students {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Username, s.DisplayName, s.Class, s.ID)
		}
		return w.Flush()
	},
}

func init() {
	studentsAddCmd.Flags().String("name", "", "Display name shown to teachers")
	studentsAddCmd.Flags().String("class", "", "Class the student belongs to")
	studentsAddCmd.MarkFlagRequired("name")

	studentsListCmd.Flags().String("class", "", "Only list this class")

	studentsCmd.AddCommand(studentsAddCmd)
	studentsCmd.AddCommand(studentsListCmd)
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/malalamiko/core/account"
	"github.com/trezcool/malalamiko/core/course"
	"github.com/trezcool/malalamiko/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	gooseRunFunc     = database.Run      // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB
	courseSvc  *course.Service
	accountSvc *account.Service
	out        io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Malalamiko administration commands",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(
		cli.migrateCmd(),
		cli.addCourseCmd(),
		cli.resetPasswordCmd(),
	)
	return root
}

func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:] // drop program name
	}
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "migrate COMMAND [ARGS...]",
		Short:              "Run a goose migration command (up, down, status, redo, version...)",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return errHelp
			}
			return cli.migrate(cmd.Context(), args)
		},
	}
}

func (cli *commandLine) addCourseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "addcourse NAME",
		Short: "Create a course",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				_ = cmd.Help()
				return errHelp
			}
			crs, err := cli.addCourse(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "course %q created: %s\n", crs.Name, crs.ID)
			return nil
		},
	}
}

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var email, role string

	cmd := &cobra.Command{
		Use:   "resetpassword --email EMAIL [--role student|lecturer]",
		Short: "Reset an account's password. The password will be prompted next.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				_ = cmd.Help()
				return errHelp
			}
			r, err := account.ParseRole(role)
			if err != nil {
				return err
			}

			pwd, err := cli.readPassword(cmd, "Enter password:")
			if err != nil {
				return err
			}
			if len(pwd) == 0 {
				_ = cmd.Help()
				return errHelp
			}
			confirm, err := cli.readPassword(cmd, "Confirm password:")
			if err != nil {
				return err
			}
			return cli.resetPassword(cmd.Context(), email, r, pwd, confirm)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "The account's email")
	cmd.Flags().StringVar(&role, "role", "student", "The account's role: student or lecturer")
	return cmd
}

func (cli *commandLine) readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/crimedesk/internal/store"
	"github.com/gabrielmiguelok/crimedesk/pkg/security"
)

func newUserCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.PersistentFlags().String("data-file", "", "Path of the data snapshot")
	cmd.AddCommand(newUserCreateCmd(load), newUserListCmd(load))
	return cmd
}

func newUserCreateCmd(load loader) *cobra.Command {
	var (
		password string
		admin    bool
	)

	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an account",
		Example: `  crimedesk user create alice --password s3cret
  crimedesk user create root --password s3cret --admin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(password) == "" {
				return errors.New("--password is required")
			}
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.DataFile)
			if err != nil {
				return err
			}
			defer st.Close()

			hash, err := security.HashPassword(password)
			if err != nil {
				return err
			}
			u, err := st.CreateUser(cmd.Context(), args[0], hash, admin)
			if errors.Is(err, store.ErrUsernameTaken) {
				return fmt.Errorf("username %q is taken", strings.TrimSpace(args[0]))
			}
			if err != nil {
				return err
			}

			role := "user"
			if u.IsAdmin {
				role = "admin"
			}
			cmd.Printf("%s Created %s %q (id %d)\n", successStyle.Render("✓"), role, u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password for the new account")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant admin rights")
	return cmd
}

func newUserListCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.DataFile)
			if err != nil {
				return err
			}
			defer st.Close()

			users := st.Users(cmd.Context())
			if len(users) == 0 {
				cmd.Println(mutedStyle.Render("No accounts."))
				return nil
			}

			t := newTable(
				column{"ID", 6},
				column{"USERNAME", 24},
				column{"ROLE", 8},
				column{"CREATED", 17},
			)
			for _, u := range users {
				role := "user"
				if u.IsAdmin {
					role = "admin"
				}
				t.row(fmt.Sprint(u.ID), u.Username, role, u.CreatedAt.Format(timeLayout))
			}
			cmd.Print(t.String())
			return nil
		},
	}
}

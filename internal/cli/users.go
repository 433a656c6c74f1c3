package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rajkowski/cms-platform-sub001/internal/model"
	"github.com/rajkowski/cms-platform-sub001/internal/store"
)

func newUsersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage site users",
	}
	cmd.AddCommand(newUsersAddCmd(app))
	cmd.AddCommand(newUsersListCmd(app))
	return cmd
}

func newUsersAddCmd(app *App) *cobra.Command {
	var (
		first, last, email string
		roles, groups      []string
	)
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create or update a user",
		Args:  cobra.ExactArgs(1),
		Example: strings.TrimSpace(`
cms users add admin --first Ada --last Lovelace --role admin
cms users add staff1 --group staff
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := strings.TrimSpace(args[0])
			if username == "" {
				return writeErr(cmd, errors.New("missing username"))
			}
			ctx := cmd.Context()
			st, err := openStore(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			u, err := st.FindUserByUsername(ctx, username)
			if err != nil {
				if !store.IsNotFound(err) {
					return writeErr(cmd, err)
				}
				u = &model.User{Username: username}
			}
			if cmd.Flags().Changed("first") {
				u.FirstName = strings.TrimSpace(first)
			}
			if cmd.Flags().Changed("last") {
				u.LastName = strings.TrimSpace(last)
			}
			if cmd.Flags().Changed("email") {
				u.Email = strings.TrimSpace(email)
			}
			if cmd.Flags().Changed("role") {
				u.RoleNames = roles
			}
			if cmd.Flags().Changed("group") {
				u.GroupKeys = groups
			}
			if err := st.SaveUser(ctx, u); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data":   u,
				"_hints": []string{"cms render <path> --user " + u.Username},
			})
		},
	}
	cmd.Flags().StringVar(&first, "first", "", "First name")
	cmd.Flags().StringVar(&last, "last", "", "Last name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Role name (repeatable)")
	cmd.Flags().StringSliceVar(&groups, "group", nil, "Group key (repeatable)")
	return cmd
}

func newUsersListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()
			users, err := st.ListUsers(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": users})
		},
	}
}

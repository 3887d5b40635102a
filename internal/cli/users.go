package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"questionbank/internal/app"
	"questionbank/internal/domain"
)

// NewUsersCmd groups user administration commands.
func NewUsersCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Administer users through the selected backend",
	}
	cmd.AddCommand(newUsersListCmd(configPath))
	cmd.AddCommand(newUsersAddCmd(configPath))
	cmd.AddCommand(newUsersLoginCmd(configPath))
	cmd.AddCommand(newUsersStatusCmd(configPath))
	cmd.AddCommand(newUsersDeleteCmd(configPath))
	return cmd
}

func newUsersListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			repo, err := rt.factory.Users()
			if err != nil {
				return err
			}
			users, err := repo.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERNAME\tNAME\tROLE\tSTATUS")
			for _, u := range users {
				role := "#" + strconv.Itoa(u.RoleID)
				if u.Role != nil {
					role = u.Role.Name
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", u.ID, u.Username, u.RealName, role, u.Status)
			}
			return tw.Flush()
		},
	}
}

func newUsersAddCmd(configPath *string) *cobra.Command {
	var (
		u        domain.User
		roleName string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an active user with a bcrypt-hashed password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if u.Password == "" {
				return fmt.Errorf("--password is required")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			u.Password = string(hash)
			u.Status = domain.UserActive

			rt, err := openRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			roles, err := rt.factory.Roles()
			if err != nil {
				return err
			}
			role, err := roles.GetByName(cmd.Context(), roleName)
			if err != nil {
				return err
			}
			if role == nil {
				return fmt.Errorf("role %q: %w", roleName, domain.ErrNotFound)
			}
			u.RoleID = role.ID

			users, err := rt.factory.Users()
			if err != nil {
				return err
			}
			if err := users.Insert(cmd.Context(), &u); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d\n", u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&u.Username, "username", "", "login name")
	cmd.Flags().StringVar(&u.Password, "password", "", "plaintext password, stored hashed")
	cmd.Flags().StringVar(&u.RealName, "name", "", "display name")
	cmd.Flags().StringVar(&u.Email, "email", "", "email address")
	cmd.Flags().StringVar(&roleName, "role", "student", "role name")
	return cmd
}

func newUsersLoginCmd(configPath *string) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check a username and password and print the user's role",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, rt, err := openUserService(cmd, *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			u, err := svc.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d (%s), role %s\n", u.ID, u.Username, u.Role.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "plaintext password")
	return cmd
}

func newUsersStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID enable|disable",
		Short: "Enable or disable a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			var active bool
			switch args[1] {
			case "enable":
				active = true
			case "disable":
			default:
				return fmt.Errorf("expected enable or disable, got %q", args[1])
			}

			svc, rt, err := openUserService(cmd, *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()
			return svc.SetStatus(cmd.Context(), id, active)
		},
	}
}

func newUsersDeleteCmd(configPath *string) *cobra.Command {
	var cascade bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a user, refusing if they still own questions unless --cascade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			svc, rt, err := openUserService(cmd, *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()
			return svc.Delete(cmd.Context(), id, cascade)
		},
	}
	cmd.Flags().BoolVar(&cascade, "cascade", false, "also delete the user's questions")
	return cmd
}

func openUserService(cmd *cobra.Command, configPath string) (*app.UserService, *runtime, error) {
	rt, err := openRuntime(cmd.Context(), configPath)
	if err != nil {
		return nil, nil, err
	}
	users, err := rt.factory.Users()
	if err != nil {
		rt.Close()
		return nil, nil, err
	}
	questions, err := rt.factory.Questions()
	if err != nil {
		rt.Close()
		return nil, nil, err
	}
	roles, err := rt.factory.Roles()
	if err != nil {
		rt.Close()
		return nil, nil, err
	}
	return app.NewUserService(users, roles, questions), rt, nil
}

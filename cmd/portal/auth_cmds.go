package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jrsteele09/classroom-portal/authapi"
	apperrors "github.com/jrsteele09/classroom-portal/internal/errors"
	"github.com/jrsteele09/classroom-portal/internal/utils"
	"github.com/jrsteele09/classroom-portal/session"
	"github.com/spf13/cobra"
)

func loginCmd(flags *globalFlags) *cobra.Command {
	var req authapi.LoginRequest

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			if req.Password == "" {
				if req.Password, err = readSecret(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			if err := a.session.Login(cmd.Context(), req); err != nil {
				return failure(a.session.State(), err)
			}
			cmd.Printf("Signed in as %s\n", a.session.State().Identity.DisplayName())
			return nil
		},
	}

	cmd.Flags().StringVar(&req.CivilID, "civil-id", "", "Civil ID")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password (read from stdin when empty)")
	_ = cmd.MarkFlagRequired("civil-id")
	return cmd
}

func registerCmd(flags *globalFlags) *cobra.Command {
	var req authapi.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a teacher account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			if req.Password == "" {
				if req.Password, err = readSecret(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			if err := a.session.Register(cmd.Context(), req); err != nil {
				return failure(a.session.State(), err)
			}
			cmd.Printf("Registered and signed in as %s\n", a.session.State().Identity.DisplayName())
			return nil
		},
	}

	cmd.Flags().StringVar(&req.CivilID, "civil-id", "", "Civil ID")
	cmd.Flags().StringVar(&req.FullName, "name", "", "Full name")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&req.SchoolID, "school-id", "", "School ID (UUID)")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password (read from stdin when empty)")
	_ = cmd.MarkFlagRequired("civil-id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func whoamiCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Revalidate the stored credentials and show the signed in teacher",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			err = a.session.RefreshIdentity(cmd.Context())
			state := a.session.State()
			if !state.IsAuthenticated() {
				if err != nil && !errors.Is(err, apperrors.ErrAuthenticationRequired) {
					return fmt.Errorf("not signed in: %s", apperrors.MessageOf(err, err.Error()))
				}
				return errors.New("not signed in")
			}

			identity := utils.Value(state.Identity)
			cmd.Printf("%s\n", identity.DisplayName())
			cmd.Printf("  civil id: %s\n", identity.CivilID)
			if identity.Email != "" {
				cmd.Printf("  email:    %s\n", identity.Email)
			}
			if identity.SchoolID != "" {
				cmd.Printf("  school:   %s\n", identity.SchoolID)
			}
			return nil
		},
	}
}

func logoutCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			a.session.Logout(cmd.Context())
			cmd.Println("Signed out")
			return nil
		},
	}
}

// failure turns a failed login or registration into the message the session
// recorded for it.
func failure(state session.State, err error) error {
	if state.Err != nil {
		return errors.New(state.Err.Message)
	}
	return err
}

func readSecret(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

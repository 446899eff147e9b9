package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Folexy13/scholarhunter-sub001/internal/client"
	"github.com/spf13/cobra"
)

var (
	email     string
	password  string
	firstName string
	lastName  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	Long: `Signs in and stores the session locally.

The password is read from --password, then SCHOLARHUNTER_PASSWORD, then the
first line of standard input.`,
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		pw, err := readPassword()
		if err != nil {
			return err
		}
		if err := a.session.Login(cmd.Context(), client.Credentials{Email: email, Password: pw}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", a.session.User().Email)
		return nil
	}),
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		pw, err := readPassword()
		if err != nil {
			return err
		}
		data := client.RegisterData{Email: email, Password: pw, FirstName: firstName, LastName: lastName}
		if err := a.session.Register(cmd.Context(), data); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s\n", a.session.User().FullName())
		return nil
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		a.session.Wait()
		if err := a.session.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	}),
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed in user",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		if err := a.requireSession(); err != nil {
			return err
		}
		if err := a.session.RefreshUser(cmd.Context()); err != nil {
			return err
		}
		u := a.session.User()
		fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\nrole: %s\nid:   %s\n", u.FullName(), u.Email, u.Role, u.ID)
		return nil
	}),
}

func init() {
	for _, cmd := range []*cobra.Command{loginCmd, registerCmd} {
		cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
		cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")
		_ = cmd.MarkFlagRequired("email")
	}
	registerCmd.Flags().StringVar(&firstName, "first-name", "", "First name")
	registerCmd.Flags().StringVar(&lastName, "last-name", "", "Last name")
}

func readPassword() (string, error) {
	if password != "" {
		return password, nil
	}
	if pw := os.Getenv("SCHOLARHUNTER_PASSWORD"); pw != "" {
		return pw, nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", errors.New("password is required")
	}
	return line, nil
}

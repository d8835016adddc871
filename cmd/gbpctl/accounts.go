package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gbp-politico/backend/internal/auth"
	"github.com/gbp-politico/backend/internal/empresas"
	"github.com/gbp-politico/backend/internal/models"
	"github.com/gbp-politico/backend/pkg/utils"
)

// passwordEnv is read when --password is not given, to keep secrets out of shell history.
const passwordEnv = "GBP_PASSWORD"

var (
	userEmail    string
	userNome     string
	userNivel    string
	userPassword string
)

var empresaCmd = &cobra.Command{
	Use:   "empresa",
	Short: "Manage empresas",
}

var empresaCreateCmd = &cobra.Command{
	Use:   "create <nome>",
	Short: "Create an active empresa",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		e, err := empresas.NewRepository(a.pool).Create(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("create empresa: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), e.ID)
		return nil
	}),
}

func empresaStatusCmd(use, status string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <empresa-id>",
		Short: "Set the empresa status to " + status,
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid empresa id: %w", err)
			}
			if err := empresas.NewRepository(a.pool).SetStatus(cmd.Context(), id, status); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "empresa %s is %s\n", id, status)
			return nil
		}),
	}
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user inside an empresa",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		empresa, err := requireEmpresa()
		if err != nil {
			return err
		}
		nivel := models.NivelAcesso(userNivel)
		if !nivel.Valid() {
			return fmt.Errorf("invalid --nivel %q", userNivel)
		}
		password := userPassword
		if password == "" {
			password = os.Getenv(passwordEnv)
		}
		if password == "" {
			return fmt.Errorf("--password or %s is required", passwordEnv)
		}
		hash, err := utils.HashPassword(password)
		if err != nil {
			return err
		}
		u, err := auth.NewRepository(a.pool).Create(cmd.Context(), empresa, userEmail, hash, userNome, nivel)
		if errors.Is(err, auth.ErrEmailTaken) {
			return fmt.Errorf("email %s is already registered", userEmail)
		}
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), u.ID)
		return nil
	}),
}

func init() {
	empresaCmd.AddCommand(empresaCreateCmd,
		empresaStatusCmd("suspend", models.EmpresaSuspended),
		empresaStatusCmd("activate", models.EmpresaActive),
	)

	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "Login email")
	userCreateCmd.Flags().StringVar(&userNome, "nome", "", "Display name")
	userCreateCmd.Flags().StringVar(&userNivel, "nivel", string(models.NivelAtendente), "Access level: admin, gerente, attendant or comum")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "Password (defaults to $"+passwordEnv+")")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("nome")
	userCmd.AddCommand(userCreateCmd)

	rootCmd.AddCommand(empresaCmd, userCmd)
}

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ignatzorin/rental-backend/internal/dto"
	"github.com/ignatzorin/rental-backend/internal/service"
)

func tokenCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Access токены для служебных клиентов",
	}

	var userID, role string
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Выпустить access токен",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("cli: некорректный --user: %w", err)
			}
			req := dto.IssueTokenRequest{UserID: id, Role: role}

			tokens := service.NewTokenManager(e.cfg.JWTSecret, e.cfg.AccessTokenTTL)
			token, exp, err := tokens.GenerateAccess(req.UserID, req.Role)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(dto.TokenResponse{AccessToken: token, ExpiresAt: exp})
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "идентификатор пользователя")
	issue.Flags().StringVar(&role, "role", "admin", "роль: tenant, landlord или admin")
	_ = issue.MarkFlagRequired("user")

	cmd.AddCommand(issue)
	return cmd
}

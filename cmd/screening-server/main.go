package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/medscreen/medscreen/internal/config"
	"github.com/medscreen/medscreen/internal/domain/calorie"
	"github.com/medscreen/medscreen/internal/domain/identity"
	"github.com/medscreen/medscreen/internal/platform/auth"
	"github.com/medscreen/medscreen/internal/platform/db"
	"github.com/medscreen/medscreen/migrations"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "screening-server",
		Short: "Medical screening API server",
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(calorieCmd())
	root.AddCommand(doctorCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the screening API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

// calorieCmd runs the calculator offline and prints the breakdown as JSON.
func calorieCmd() *cobra.Command {
	var in calorie.Input
	var gender, activity string

	cmd := &cobra.Command{
		Use:   "calorie",
		Short: "Compute a daily caloric requirement",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Gender = calorie.Gender(gender)
			in.ActivityLevel = calorie.ActivityLevel(activity)
			res, err := calorie.Compute(in)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&gender, "gender", "", "male or female")
	cmd.Flags().Float64Var(&in.HeightCm, "height", 0, "Height in centimetres")
	cmd.Flags().Float64Var(&in.WeightKg, "weight", 0, "Weight in kilograms")
	cmd.Flags().IntVar(&in.Age, "age", 0, "Age in years")
	cmd.Flags().StringVar(&activity, "activity", "", "rest, light, moderate or heavy")
	for _, name := range []string{"gender", "height", "weight", "age", "activity"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// doctorCmd bootstraps doctor accounts, typically the first admin, since
// registering doctors over HTTP already requires an admin token.
func doctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Manage doctor accounts",
	}

	var req identity.RegisterDoctorRequest
	var admin bool
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a doctor account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				req.Password = os.Getenv("DOCTOR_PASSWORD")
			}
			req.Role = auth.RoleUser
			if admin {
				req.Role = auth.RoleAdmin
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := identity.NewService(
				identity.NewDoctorRepoPG(pool),
				identity.NewPatientRepoPG(pool),
				identity.NewCaregiverRepoPG(pool),
				identity.NewRespondentRepoPG(pool),
				nil,
			)
			d, err := svc.RegisterDoctor(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created doctor %s (%s, role %s)\n", d.ID, d.Email, d.Role)
			return nil
		},
	}
	createCmd.Flags().StringVar(&req.Name, "name", "", "Full name")
	createCmd.Flags().StringVar(&req.Email, "email", "", "Login email")
	createCmd.Flags().StringVar(&req.Password, "password", "", "Password (defaults to $DOCTOR_PASSWORD)")
	createCmd.Flags().BoolVar(&admin, "admin", false, "Grant the ADMIN role")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("email")

	cmd.AddCommand(createCmd)
	return cmd
}

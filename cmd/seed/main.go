// seed creates the default coordinator and an approved demo applicant for local testing.
// Idempotent: accounts whose email already exists are left untouched.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"alumni-tracker/internal/account/domain"
	accountrepo "alumni-tracker/internal/account/repository"
	accountservice "alumni-tracker/internal/account/service"
	"alumni-tracker/internal/config"
	"alumni-tracker/internal/kv/backend"
	"alumni-tracker/internal/policy/engine"
	"alumni-tracker/internal/security"
	"alumni-tracker/internal/server/interceptors"
)

const (
	devCoordinatorPassword = "Admin123!"
	demoApplicantEmail     = "alumni.demo@alumni.local"
	demoApplicantPassword  = "Alumni123!"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.StoreBackend == config.BackendMemory {
		logger.Warn("STORE_BACKEND=memory: seeded data is discarded when seed exits")
	}
	password := cfg.SeedCoordinatorPassword
	if password == "" {
		if cfg.IsProduction() {
			return errors.New("SEED_COORDINATOR_PASSWORD is required in production")
		}
		password = devCoordinatorPassword
	}

	store, err := backend.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer store.Close()

	gate, err := engine.NewOPAGate(ctx, "", logger)
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	repo := accountrepo.NewKVRepository(store)
	svc := accountservice.NewAccountService(repo, security.NewHasher(cfg.BcryptCost), gate, accountservice.WithLogger(logger))

	coordinator, err := ensure(ctx, svc, repo, accountservice.RegisterInput{
		Email:      cfg.SeedCoordinatorEmail,
		Password:   password,
		NationalID: "1234567890",
		Role:       domain.RoleCoordinator,
		Profile: domain.Profile{
			FirstName: "Administrator",
			LastName:  "System",
			City:      "Manta",
			Province:  "Manabí",
		},
	})
	if err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}
	logger.Info("coordinator ready", "email", coordinator.Email, "id", coordinator.ID)

	applicant, err := ensure(ctx, svc, repo, accountservice.RegisterInput{
		Email:      demoApplicantEmail,
		Password:   demoApplicantPassword,
		NationalID: "0987654321",
		Role:       domain.RoleApplicant,
		Profile: domain.Profile{
			FirstName:      "Juan",
			LastName:       "Pérez",
			BirthDate:      "1995-05-15",
			City:           "Manta",
			Province:       "Manabí",
			Career:         "Systems Engineering",
			Faculty:        "Faculty of Computer Science",
			GraduationYear: "2020",
			Degree:         "Systems Engineer",
		},
		Employment: domain.Employment{
			Status:      domain.EmploymentEmployed,
			Company:     "Tech Solutions",
			Position:    "Full Stack Developer",
			SalaryRange: "1000-2000",
		},
	})
	if err != nil {
		return fmt.Errorf("demo applicant: %w", err)
	}
	if applicant.Status == domain.StatusPending {
		actx := interceptors.WithIdentity(ctx, coordinator.ID, string(domain.RoleCoordinator))
		err := svc.Decide(actx, applicant.ID, domain.DecisionApprove, domain.RoleCoordinator)
		if err != nil && !errors.Is(err, accountservice.ErrNotPending) {
			return fmt.Errorf("approve demo applicant: %w", err)
		}
	}
	logger.Info("demo applicant ready", "email", applicant.Email, "id", applicant.ID)
	return nil
}

// ensure returns the account registered under in.Email, registering it first when absent.
func ensure(ctx context.Context, svc *accountservice.AccountService, repo accountrepo.Repository, in accountservice.RegisterInput) (*domain.Account, error) {
	email := domain.NormalizeEmail(in.Email)
	existing, err := repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	a, err := svc.Register(ctx, in)
	if errors.Is(err, accountservice.ErrDuplicateEmail) {
		return repo.GetByEmail(ctx, email)
	}
	return a, err
}

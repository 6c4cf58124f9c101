package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"huddle-admin/backend/internal/config"
	"huddle-admin/backend/internal/logging"
	"huddle-admin/backend/internal/repository"
	"huddle-admin/backend/pkg/models"
)

func main() {
	var configPath, domain string

	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Seed a development tenant with a configuration, instances and an org chart",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return seed(cmd.Context(), configPath, domain)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a config file")
	cmd.Flags().StringVar(&domain, "domain", "localhost", "e-mail domain of the seeded tenant")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func seed(ctx context.Context, configPath, domain string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewLogger(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, pool, err := repository.OpenPostgres(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := repository.Migrate(ctx, db); err != nil {
		return err
	}
	store := repository.NewGormStore(db, logger)

	// 1. Ensure Tenant Exists
	tenant, err := store.GetTenantByDomain(ctx, domain)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		logger.Info("Creating default tenant", "domain", domain)
		tenant = &models.Tenant{Name: "Local Dev Tenant", Domain: domain}
		if err := store.CreateTenant(ctx, tenant); err != nil {
			return fmt.Errorf("create tenant: %w", err)
		}
	case err != nil:
		return fmt.Errorf("load tenant: %w", err)
	default:
		logger.Info("Found existing tenant", "id", tenant.ID)
	}

	// 2. Configurations, skipping names that already exist
	existing, err := store.ListConfigurations(ctx, tenant.ID)
	if err != nil {
		return fmt.Errorf("list configurations: %w", err)
	}
	existingMap := make(map[string]bool, len(existing))
	for _, c := range existing {
		existingMap[c.Name] = true
	}

	seeds := []struct {
		Name     string
		Template string
		Inputs   []string
	}{
		{"Standup Summary", "Summarize this standup for the team channel:\n{{notes}}", []string{
			"Alice shipped the billing fix; Bob is blocked on API keys.",
			"Release moved to Thursday; QA needs two more days.",
			"New hire onboarding starts Monday; laptops ordered.",
		}},
		{"Retro Themes", "List the three main themes of this retrospective:\n{{notes}}", []string{
			"Too many meetings, unclear ownership of on-call, good pairing.",
			"Deploys were slow; docs improved; customer escalations down.",
		}},
	}
	for _, s := range seeds {
		if existingMap[s.Name] {
			logger.Info("Skipping existing configuration", "name", s.Name)
			continue
		}
		cfgRow := &models.Configuration{
			TenantID:               tenant.ID,
			Name:                   s.Name,
			PromptTemplate:         s.Template,
			ModelProvider:          "openai",
			ModelName:              "gpt-4o-mini",
			GenerationsPerInstance: 3,
			CreatedBy:              "seed-script",
		}
		if err := store.CreateConfiguration(ctx, cfgRow); err != nil {
			return fmt.Errorf("create configuration %s: %w", s.Name, err)
		}
		instances := make([]*models.PromptInstance, 0, len(s.Inputs))
		for _, in := range s.Inputs {
			instances = append(instances, &models.PromptInstance{
				ConfigurationID: cfgRow.ID,
				Input:           []byte(fmt.Sprintf(`{"notes":%q}`, in)),
			})
		}
		if err := store.CreateInstances(ctx, instances); err != nil {
			return fmt.Errorf("create instances for %s: %w", s.Name, err)
		}
		logger.Info("Seeded configuration", "name", s.Name, "id", cfgRow.ID, "instances", len(instances))
	}

	// 3. Org chart
	people, err := store.ListEmployees(ctx, tenant.ID)
	if err != nil {
		return fmt.Errorf("list employees: %w", err)
	}
	if len(people) > 0 {
		logger.Info("Employees already seeded", "count", len(people))
		logger.Info("Seeding complete!")
		return nil
	}
	lead := &models.Employee{TenantID: tenant.ID, Name: "Dana Lead", Email: "dana@" + domain}
	if err := store.CreateEmployees(ctx, []*models.Employee{lead}); err != nil {
		return fmt.Errorf("create lead: %w", err)
	}
	manager := &models.Employee{TenantID: tenant.ID, Name: "Sam Manager", Email: "sam@" + domain, ManagerID: &lead.ID}
	if err := store.CreateEmployees(ctx, []*models.Employee{manager}); err != nil {
		return fmt.Errorf("create manager: %w", err)
	}
	if err := store.CreateEmployees(ctx, []*models.Employee{
		{TenantID: tenant.ID, Name: "Ari Engineer", Email: "ari@" + domain, ManagerID: &manager.ID},
		{TenantID: tenant.ID, Name: "Kim Designer", Email: "kim@" + domain, ManagerID: &manager.ID},
	}); err != nil {
		return fmt.Errorf("create reports: %w", err)
	}
	logger.Info("Seeding complete!")
	return nil
}

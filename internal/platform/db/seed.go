package db

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"appraisal/internal/domain/appraisal"
	"appraisal/internal/domain/auth"
	"appraisal/internal/platform/config"
)

// Seed makes a fresh install usable: an admin account when
// SEED_ADMIN_EMAIL is set, and an active period for the current quarter
// when no period is active. Both steps are idempotent.
func Seed(ctx context.Context, svc *appraisal.Service, cfg config.Config, now time.Time) error {
	if err := ensureAdmin(ctx, svc, cfg.SeedAdminEmail, cfg.SeedAdminName); err != nil {
		return err
	}
	return ensureActivePeriod(ctx, svc, now)
}

func ensureAdmin(ctx context.Context, svc *appraisal.Service, email, name string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}
	admins, err := svc.ListStaff(ctx, appraisal.StaffFilter{Role: auth.RoleAdmin})
	if err != nil {
		return err
	}
	for _, admin := range admins {
		if admin.Email == email {
			return nil
		}
	}
	created, err := svc.CreateStaff(ctx, appraisal.Staff{Name: name, Email: email, Role: auth.RoleAdmin})
	if errors.Is(err, appraisal.ErrStaffExists) {
		slog.Warn("seed admin email belongs to a non-admin account", "email", email)
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("seeded admin", "staffId", created.ID, "email", email)
	return nil
}

func ensureActivePeriod(ctx context.Context, svc *appraisal.Service, now time.Time) error {
	if _, err := svc.ActivePeriod(ctx); err == nil {
		return nil
	} else if !errors.Is(err, appraisal.ErrNoActivePeriod) {
		return err
	}

	year, quarter := now.Year(), int(now.Month()-1)/3+1
	periods, err := svc.ListPeriods(ctx, year)
	if err != nil {
		return err
	}
	for _, period := range periods {
		if period.Quarter == quarter {
			return svc.ActivatePeriod(ctx, period.ID)
		}
	}
	period, err := svc.CreatePeriod(ctx, year, quarter, "", true)
	if err != nil {
		return err
	}
	slog.Info("seeded period", "periodId", period.ID, "label", period.Label)
	return nil
}

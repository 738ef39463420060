package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"perfreview/internal/domain/auth"
	"perfreview/internal/domain/review"
	"perfreview/internal/platform/config"
)

// SeedResult identifies the bootstrap tenant and its HR administrator.
type SeedResult struct {
	CompanyID      string
	AdminID        string
	CompanyCreated bool
	AdminCreated   bool
}

// Seed makes sure the configured company and its HR administrator exist. It is idempotent.
func Seed(ctx context.Context, store review.Store, cfg config.Config) (SeedResult, error) {
	var result SeedResult
	err := store.InTx(ctx, func(tx review.Tx) error {
		company, created, err := ensureCompany(ctx, tx, cfg.SeedCompanyName)
		if err != nil {
			return err
		}
		result.CompanyID = company.ID
		result.CompanyCreated = created

		admin, created, err := ensureAdmin(ctx, tx, company.ID, cfg.SeedAdminName, cfg.SeedAdminEmail)
		if err != nil {
			return err
		}
		result.AdminID = admin.ID
		result.AdminCreated = created
		return nil
	})
	return result, err
}

func ensureCompany(ctx context.Context, tx review.Tx, name string) (review.Company, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return review.Company{}, false, errors.New("seed company name is required")
	}
	company, err := tx.FindCompanyByName(ctx, name)
	if err == nil {
		return company, false, nil
	}
	if !errors.Is(err, review.ErrNotFound) {
		return review.Company{}, false, err
	}

	company = review.Company{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	if err := tx.InsertCompany(ctx, company); err != nil {
		return review.Company{}, false, err
	}
	return company, true, nil
}

func ensureAdmin(ctx context.Context, tx review.Tx, companyID, name, email string) (review.User, bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return review.User{}, false, errors.New("seed admin email is required")
	}
	user, err := tx.FindUserByEmail(ctx, companyID, email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, review.ErrNotFound) {
		return review.User{}, false, err
	}

	if strings.TrimSpace(name) == "" {
		name = "HR Admin"
	}
	now := time.Now().UTC()
	user = review.User{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		Name:      name,
		Email:     email,
		Role:      string(auth.RoleHR),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.InsertUser(ctx, user); err != nil {
		return review.User{}, false, err
	}
	return user, true, nil
}

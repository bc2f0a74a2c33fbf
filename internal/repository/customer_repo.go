package repository

import (
	"context"
	"database/sql"

	"github.com/lephuong249/storefront-orders/internal/models"
)

const addressColumns = `id, user_id, full_name, phone, address_line, ward, district, city, is_default`

type addressRepo struct {
	db DBTX
}

func scanAddress(row rowScanner) (models.Address, error) {
	var (
		a              models.Address
		ward, district sql.NullString
	)
	err := row.Scan(&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.AddressLine, &ward, &district, &a.City, &a.IsDefault)
	a.Ward = ward.String
	a.District = district.String
	return a, err
}

func (r *addressRepo) GetForUser(ctx context.Context, id, userID string) (models.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1 AND user_id = $2`
	a, err := scanAddress(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		return models.Address{}, mapError("get address", err)
	}
	return a, nil
}

func (r *addressRepo) GetByID(ctx context.Context, id string) (models.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1`
	a, err := scanAddress(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return models.Address{}, mapError("get address", err)
	}
	return a, nil
}

type paymentMethodRepo struct {
	db DBTX
}

func (r *paymentMethodRepo) GetActive(ctx context.Context, id string) (models.PaymentMethod, error) {
	var pm models.PaymentMethod
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, code, is_active FROM payment_methods WHERE id = $1 AND is_active`, id,
	).Scan(&pm.ID, &pm.Name, &pm.Code, &pm.IsActive)
	if err != nil {
		return models.PaymentMethod{}, mapError("get payment method", err)
	}
	return pm, nil
}

func (r *paymentMethodRepo) GetByID(ctx context.Context, id string) (models.PaymentMethod, error) {
	var pm models.PaymentMethod
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, code, is_active FROM payment_methods WHERE id = $1`, id,
	).Scan(&pm.ID, &pm.Name, &pm.Code, &pm.IsActive)
	if err != nil {
		return models.PaymentMethod{}, mapError("get payment method", err)
	}
	return pm, nil
}

type userRepo struct {
	db DBTX
}

func (r *userRepo) GetSummary(ctx context.Context, id string) (models.UserSummary, error) {
	var (
		u     models.UserSummary
		phone sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_name, email, phone_number FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.UserName, &u.Email, &phone)
	if err != nil {
		return models.UserSummary{}, mapError("get user", err)
	}
	u.PhoneNumber = phone.String
	return u, nil
}

// internal/service/inventory/infrastructure/mapper.go
package infrastructure

import (
	"database/sql"

	"stockpile/internal/service/inventory/domain"
)

// ToDomainReservation 将数据库模型转换为领域模型
func ToDomainReservation(model *ReservationModel) *domain.Reservation {
	if model == nil {
		return nil
	}
	return &domain.Reservation{
		ID:        model.ReservationID,
		ProductID: model.ProductID,
		VariantID: model.VariantID,
		Quantity:  model.Quantity,
		Holder: domain.Holder{
			UserID:    model.UserID.String,
			SessionID: model.SessionID.String,
		},
		Status:    model.Status,
		OrderID:   model.OrderID.String,
		CreatedAt: model.CreatedAt,
		ExpiresAt: model.ExpiresAt,
	}
}

// ToReservationModel 将领域模型转换为数据库模型
func ToReservationModel(r *domain.Reservation) *ReservationModel {
	return &ReservationModel{
		ReservationID: r.ID,
		ProductID:     r.ProductID,
		VariantID:     r.VariantID,
		Quantity:      r.Quantity,
		UserID:        nullString(r.Holder.UserID),
		SessionID:     nullString(r.Holder.SessionID),
		Status:        r.Status,
		OrderID:       nullString(r.OrderID),
		ExpiresAt:     r.ExpiresAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/segyhp/pawn-engine/internal/repository"
	customError "github.com/segyhp/pawn-engine/pkg/errors"
	"github.com/segyhp/pawn-engine/pkg/utils"
	"github.com/shopspring/decimal"
)

// storeError translates repository failures into business errors.
// Errors that already carry a business code pass through unchanged.
func storeError(err error, entity string, id uuid.UUID) error {
	var be *customError.BusinessError
	switch {
	case errors.As(err, &be):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return customError.WrapEntityNotFound(entity, id.String())
	case errors.Is(err, repository.ErrVersionConflict):
		return customError.WrapConcurrentModification(entity, id.String())
	}
	return customError.WrapDatabaseError(err)
}

// requireExists fails with ENTITY_NOT_FOUND when the reference lookup misses
func requireExists(ok bool, err error, entity string, id uuid.UUID) error {
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if !ok {
		return customError.WrapEntityNotFound(entity, id.String())
	}
	return nil
}

type scaledField struct {
	name   string
	value  decimal.Decimal
	places int32
}

// requireScale rejects values with more decimal places than their column stores,
// so nothing is rounded silently on the way to the database
func requireScale(fields ...scaledField) error {
	for _, f := range fields {
		if !utils.HasScale(f.value, f.places) {
			return customError.WrapValidation(
				fmt.Sprintf("%s %s has more than %d decimal places", f.name, f.value.String(), f.places))
		}
	}
	return nil
}

func moneyField(name string, d decimal.Decimal) scaledField {
	return scaledField{name: name, value: d, places: utils.MoneyScale}
}

func rateField(name string, d decimal.Decimal) scaledField {
	return scaledField{name: name, value: d, places: utils.RateScale}
}

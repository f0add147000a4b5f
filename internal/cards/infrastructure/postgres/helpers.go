package postgres

import (
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"bankcards/internal/cards/domain"
	"bankcards/internal/common/types"
)

func moneyToNumeric(value types.Money) pgtype.Numeric {
	return pgtype.Numeric{
		Int:   value.Amount.Coefficient(),
		Exp:   value.Amount.Exponent(),
		Valid: true,
	}
}

func numericToMoney(value pgtype.Numeric) (types.Money, error) {
	if !value.Valid {
		return types.Money{}, fmt.Errorf("numeric is NULL")
	}
	if value.NaN {
		return types.Money{}, fmt.Errorf("numeric is NaN")
	}
	if value.InfinityModifier != pgtype.Finite {
		return types.Money{}, fmt.Errorf("numeric is %s", value.InfinityModifier)
	}

	intVal := value.Int
	if intVal == nil {
		intVal = big.NewInt(0)
	}

	return types.NewMoney(decimal.NewFromBigInt(intVal, value.Exp)), nil
}

func dateFromTime(value time.Time) pgtype.Date {
	return pgtype.Date{Time: domain.DateOf(value), Valid: true}
}

func dateToTime(value pgtype.Date) (time.Time, error) {
	if !value.Valid {
		return time.Time{}, fmt.Errorf("date is NULL")
	}
	if value.InfinityModifier != pgtype.Finite {
		return time.Time{}, fmt.Errorf("date is %s", value.InfinityModifier)
	}
	return value.Time, nil
}

func timestamptzToTimePtr(value pgtype.Timestamptz) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	if value.InfinityModifier != pgtype.Finite {
		return nil, fmt.Errorf("timestamp is %s", value.InfinityModifier)
	}

	result := value.Time.UTC()
	return &result, nil
}

func textFromString(value string) pgtype.Text {
	return pgtype.Text{String: value, Valid: value != ""}
}

func statusStrings(statuses []domain.CardStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

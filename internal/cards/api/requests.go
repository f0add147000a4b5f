package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"required,max=255"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// CreateCardRequest is the JSON body for POST /api/admin/cards.
// Balance may be omitted or null; it then defaults to zero.
type CreateCardRequest struct {
	OwnerID   string              `json:"owner_id" validate:"required,uuid"`
	Number    string              `json:"number" validate:"required,min=12,max=23"`
	ExpiresAt string              `json:"expires_at" validate:"required,datetime=2006-01-02"`
	Balance   decimal.NullDecimal `json:"balance"`
}

// UpdateCardStatusRequest is the JSON body for PATCH /api/admin/cards/{id}/status.
type UpdateCardStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// TransferRequest is the JSON body for POST /api/transfers.
// Amount is kept nullable so a missing amount reaches the transfer rules.
type TransferRequest struct {
	FromCardID string              `json:"from_card_id" validate:"required,uuid"`
	ToCardID   string              `json:"to_card_id" validate:"required,uuid"`
	Amount     decimal.NullDecimal `json:"amount"`
}

// decodeJSON decodes and validates the request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return validateStruct(v)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func pageParams(r *http.Request) (page, size int, err error) {
	if page, err = queryInt(r, "page"); err != nil {
		return 0, 0, err
	}
	if size, err = queryInt(r, "size"); err != nil {
		return 0, 0, err
	}
	return page, size, nil
}

package domain

import "errors"

// Domain errors for the cards context.
var (
	// ErrOwnershipViolation is returned when a transfer touches a card the caller does not own.
	ErrOwnershipViolation = errors.New("card does not belong to user")

	// ErrCardInactive is returned when an operation requires an ACTIVE card.
	ErrCardInactive = errors.New("card must be ACTIVE")

	// ErrCardExpired is returned when a card's expiry date has passed.
	ErrCardExpired = errors.New("card has expired")

	// ErrNotEnoughFunds is returned when the source balance cannot cover a debit.
	ErrNotEnoughFunds = errors.New("not enough funds")

	// ErrSameCard is returned when source and destination of a transfer are the same card.
	ErrSameCard = errors.New("source and destination cards must differ")

	// ErrInvalidAmount is returned when an amount is missing, zero or negative.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInvalidDate is returned when a date that must not be in the past is.
	ErrInvalidDate = errors.New("date cannot be in the past")

	// ErrCardNotFound is returned when a card cannot be found or is hidden from the caller.
	ErrCardNotFound = errors.New("card not found")

	// ErrUserNotFound is returned when a user cannot be found.
	ErrUserNotFound = errors.New("user not found")

	// ErrTransferNotFound is returned when a transfer cannot be found or is hidden from the caller.
	ErrTransferNotFound = errors.New("transfer not found")

	// ErrOptimisticLock is returned when an optimistic lock conflict occurs.
	ErrOptimisticLock = errors.New("optimistic lock conflict")

	// ErrInvalidStateTransition is returned when a state transition is not allowed.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrInvalidStatus is returned when parsing an unknown card status.
	ErrInvalidStatus = errors.New("invalid card status")

	// ErrDuplicateCardNumber is returned when a card number is already issued.
	ErrDuplicateCardNumber = errors.New("card number already exists")

	// ErrInvalidCardNumber is returned when a card number has the wrong shape.
	ErrInvalidCardNumber = errors.New("card number must be 12-23 digits or spaces")

	// ErrEmailTaken is returned when registering an email that is already in use.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidEmail is returned when an email is missing or malformed.
	ErrInvalidEmail = errors.New("invalid email")

	// ErrWeakPassword is returned when a password is too short.
	ErrWeakPassword = errors.New("password is too short")

	// ErrInvalidCredentials is returned when login fails.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrIdempotencyKeyExists is returned when an idempotency key already exists.
	ErrIdempotencyKeyExists = errors.New("idempotency key already exists")

	// ErrCorruptData is returned when data loaded from persistence is invalid.
	ErrCorruptData = errors.New("corrupt data in database")
)

// Code is the business-rule kind of an error, independent of transport.
type Code string

const (
	CodeOwnershipViolation Code = "OWNERSHIP_VIOLATION"
	CodeCardInactive       Code = "CARD_INACTIVE"
	CodeCardExpired        Code = "CARD_EXPIRED"
	CodeNotEnoughFunds     Code = "NOT_ENOUGH_FUNDS"
	CodeSameCard           Code = "SAME_CARD"
	CodeInvalidAmount      Code = "INVALID_AMOUNT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeVersionConflict    Code = "VERSION_CONFLICT"
	CodeStateConflict      Code = "STATE_CONFLICT"
	CodeDuplicate          Code = "DUPLICATE"
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeInternal           Code = "INTERNAL"
)

// Category groups codes by how a caller should react.
type Category string

const (
	CategoryClient    Category = "client"
	CategoryNotFound  Category = "not_found"
	CategoryTransient Category = "transient"
	CategoryInternal  Category = "internal"
)

var errorCodes = []struct {
	err  error
	code Code
}{
	{ErrOwnershipViolation, CodeOwnershipViolation},
	{ErrCardInactive, CodeCardInactive},
	{ErrCardExpired, CodeCardExpired},
	{ErrNotEnoughFunds, CodeNotEnoughFunds},
	{ErrSameCard, CodeSameCard},
	{ErrInvalidAmount, CodeInvalidAmount},
	// no dedicated date code; INVALID_AMOUNT doubles as "invalid date"
	{ErrInvalidDate, CodeInvalidAmount},
	{ErrCardNotFound, CodeNotFound},
	{ErrUserNotFound, CodeNotFound},
	{ErrTransferNotFound, CodeNotFound},
	{ErrOptimisticLock, CodeVersionConflict},
	{ErrInvalidStateTransition, CodeStateConflict},
	{ErrIdempotencyKeyExists, CodeStateConflict},
	{ErrDuplicateCardNumber, CodeDuplicate},
	{ErrEmailTaken, CodeDuplicate},
	{ErrInvalidStatus, CodeValidation},
	{ErrInvalidCardNumber, CodeValidation},
	{ErrInvalidEmail, CodeValidation},
	{ErrWeakPassword, CodeValidation},
	{ErrInvalidCredentials, CodeInvalidCredentials},
}

// CodeOf maps err to its business-rule code. Unknown errors map to CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// CategoryOf classifies err as client-correctable, not-found, transient or internal.
func CategoryOf(err error) Category {
	switch CodeOf(err) {
	case "":
		return ""
	case CodeNotFound:
		return CategoryNotFound
	case CodeVersionConflict:
		return CategoryTransient
	case CodeInternal:
		return CategoryInternal
	default:
		return CategoryClient
	}
}

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"bankcards/internal/cards/api"
	"bankcards/internal/cards/application"
	"bankcards/internal/cards/infrastructure/memory"
	"bankcards/internal/common/auth"
)

// HandlerSuite tests routing, role checks and error-to-status mapping.
//
// Justification: status codes and the error body shape are a boundary concern
// that only shows at the HTTP level.
type HandlerSuite struct {
	suite.Suite
	mux        *http.ServeMux
	users      *application.UserService
	adminToken string
	userToken  string
	userID     string
	otherToken string
	otherID    string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctx := context.Background()
	clock := func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }

	tokens, err := auth.NewTokenService("0123456789abcdef0123456789abcdef", time.Hour)
	s.Require().NoError(err)

	store := memory.NewDataStore()
	s.users = application.NewUserService(store, auth.NewPasswordHasher(bcrypt.MinCost), tokens, application.WithClock(clock))
	handler := api.NewHandler(
		application.NewCardService(store, application.WithClock(clock)),
		application.NewTransferService(store, application.WithClock(clock)),
		s.users,
		auth.NewMiddleware(tokens),
	)
	s.mux = http.NewServeMux()
	handler.RegisterRoutes(s.mux)

	s.Require().NoError(s.users.EnsureAdmin(ctx, "admin@example.com", "admin-password", "Admin"))
	s.adminToken, _ = s.login("admin@example.com", "admin-password")
	s.userID = s.register("alice@example.com", "Alice")
	s.userToken, _ = s.login("alice@example.com", "password-1")
	s.otherID = s.register("bob@example.com", "Bob")
	s.otherToken, _ = s.login("bob@example.com", "password-1")
}

func (s *HandlerSuite) register(email, name string) string {
	rec := s.do(http.MethodPost, "/auth/register", "", map[string]any{
		"email": email, "password": "password-1", "full_name": name,
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body["id"].(string)
}

func (s *HandlerSuite) login(email, password string) (string, int) {
	rec := s.do(http.MethodPost, "/auth/login", "", map[string]any{"email": email, "password": password})
	if rec.Code != http.StatusOK {
		return "", rec.Code
	}
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body["access_token"].(string), rec.Code
}

func (s *HandlerSuite) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		jsonBody, err := json.Marshal(body)
		s.Require().NoError(err)
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func (s *HandlerSuite) createCard(ownerID, number, balance string) string {
	rec := s.do(http.MethodPost, "/api/admin/cards", s.adminToken, map[string]any{
		"owner_id":   ownerID,
		"number":     number,
		"expires_at": "2028-12-31",
		"balance":    balance,
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	return s.decode(rec)["id"].(string)
}

func (s *HandlerSuite) TestAuthentication() {
	s.Run("missing token returns 401", func() {
		rec := s.do(http.MethodGet, "/api/cards", "", nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Equal("UNAUTHORIZED", s.decode(rec)["code"])
	})

	s.Run("garbage token returns 401", func() {
		rec := s.do(http.MethodGet, "/api/cards", "not-a-token", nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("user on admin route returns 403", func() {
		rec := s.do(http.MethodGet, "/api/admin/cards", s.userToken, nil)
		s.Equal(http.StatusForbidden, rec.Code)
		s.Equal("FORBIDDEN", s.decode(rec)["code"])
	})

	s.Run("wrong password returns 401", func() {
		_, code := s.login("alice@example.com", "wrong-password")
		s.Equal(http.StatusUnauthorized, code)
	})

	s.Run("duplicate registration returns 409", func() {
		rec := s.do(http.MethodPost, "/auth/register", "", map[string]any{
			"email": "alice@example.com", "password": "password-1", "full_name": "Alice",
		})
		s.Equal(http.StatusConflict, rec.Code)
		s.Equal("DUPLICATE", s.decode(rec)["code"])
	})

	s.Run("me returns the caller", func() {
		rec := s.do(http.MethodGet, "/api/me", s.userToken, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		body := s.decode(rec)
		s.Equal(s.userID, body["id"])
		s.Equal("USER", body["role"])
	})
}

func (s *HandlerSuite) TestAdminCreateCard() {
	s.Run("returns masked card", func() {
		rec := s.do(http.MethodPost, "/api/admin/cards", s.adminToken, map[string]any{
			"owner_id":   s.userID,
			"number":     "4111 1111 1111 1234",
			"expires_at": "2028-12-31",
		})
		s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
		body := s.decode(rec)
		s.Equal("**** **** **** 1234", body["masked_number"])
		s.Equal("ACTIVE", body["status"])
		s.Equal("0.00", body["balance"])
		s.Equal("Alice", body["owner_name"])
		s.Equal("2028-12-31", body["expires_at"])
	})

	s.Run("validation errors return 400", func() {
		rec := s.do(http.MethodPost, "/api/admin/cards", s.adminToken, map[string]any{
			"owner_id":   "not-a-uuid",
			"number":     "4111 1111 1111 9999",
			"expires_at": "2028-12-31",
		})
		s.Equal(http.StatusBadRequest, rec.Code)
		body := s.decode(rec)
		s.Equal("VALIDATION_ERROR", body["code"])
		s.Contains(body["message"], "owner_id")
	})

	s.Run("letters in number return 400", func() {
		rec := s.do(http.MethodPost, "/api/admin/cards", s.adminToken, map[string]any{
			"owner_id":   s.userID,
			"number":     "4111 1111 1111 ABCD",
			"expires_at": "2028-12-31",
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("past expiry returns INVALID_AMOUNT", func() {
		rec := s.do(http.MethodPost, "/api/admin/cards", s.adminToken, map[string]any{
			"owner_id":   s.userID,
			"number":     "4111 1111 1111 8888",
			"expires_at": "2020-01-01",
		})
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
		s.Equal("INVALID_AMOUNT", s.decode(rec)["code"])
	})

	s.Run("unknown owner returns 404", func() {
		rec := s.do(http.MethodPost, "/api/admin/cards", s.adminToken, map[string]any{
			"owner_id":   "00000000-0000-0000-0000-000000000001",
			"number":     "4111 1111 1111 7777",
			"expires_at": "2028-12-31",
		})
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("duplicate number returns 409", func() {
		rec := s.do(http.MethodPost, "/api/admin/cards", s.adminToken, map[string]any{
			"owner_id":   s.otherID,
			"number":     "4111111111111234",
			"expires_at": "2028-12-31",
		})
		s.Equal(http.StatusConflict, rec.Code)
	})
}

func (s *HandlerSuite) TestUserCards() {
	mine := s.createCard(s.userID, "4111 1111 1111 4444", "25.50")
	s.createCard(s.userID, "4111 1111 1111 1111", "0")
	theirs := s.createCard(s.otherID, "5500 0000 0000 0004", "0")

	s.Run("search by last digits", func() {
		rec := s.do(http.MethodGet, "/api/cards?search=4444", s.userToken, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		body := s.decode(rec)
		s.EqualValues(1, body["total_elements"])
		content := body["content"].([]any)
		s.Require().Len(content, 1)
		s.Equal(mine, content[0].(map[string]any)["id"])
	})

	s.Run("balance", func() {
		rec := s.do(http.MethodGet, "/api/cards/"+mine+"/balance", s.userToken, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal("25.50", s.decode(rec)["balance"])
	})

	s.Run("foreign card looks absent", func() {
		rec := s.do(http.MethodGet, "/api/cards/"+theirs, s.userToken, nil)
		s.Equal(http.StatusNotFound, rec.Code)
		s.Equal("NOT_FOUND", s.decode(rec)["code"])
	})

	s.Run("page far past the end is empty", func() {
		rec := s.do(http.MethodGet, "/api/cards?page=461168601842738791", s.userToken, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		body := s.decode(rec)
		s.Empty(body["content"])
		s.EqualValues(2, body["total_elements"])
	})

	s.Run("bad page parameter", func() {
		rec := s.do(http.MethodGet, "/api/cards?page=-1", s.userToken, nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("block request then conflict", func() {
		rec := s.do(http.MethodPost, "/api/cards/"+mine+"/request-block", s.userToken, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal("PENDING_BLOCK", s.decode(rec)["status"])

		rec = s.do(http.MethodPost, "/api/cards/"+mine+"/request-block", s.userToken, nil)
		s.Equal(http.StatusConflict, rec.Code)
		s.Equal("STATE_CONFLICT", s.decode(rec)["code"])

		rec = s.do(http.MethodGet, "/api/admin/cards/pending-block", s.adminToken, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.EqualValues(1, s.decode(rec)["total_elements"])
	})
}

func (s *HandlerSuite) TestTransfers() {
	from := s.createCard(s.userID, "4111 1111 1111 1111", "100.00")
	to := s.createCard(s.userID, "4111 1111 1111 2222", "10.00")
	foreign := s.createCard(s.otherID, "5500 0000 0000 0004", "0")

	transfer := func(from, to string, amount any, headers ...string) *httptest.ResponseRecorder {
		return s.do(http.MethodPost, "/api/transfers", s.userToken, map[string]any{
			"from_card_id": from, "to_card_id": to, "amount": amount,
		}, headers...)
	}

	s.Run("completes and returns masked numbers", func() {
		rec := transfer(from, to, "40.00")
		s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
		body := s.decode(rec)
		s.Equal("COMPLETED", body["status"])
		s.Equal("40.00", body["amount"])
		s.Equal("**** **** **** 1111", body["from_masked_number"])

		rec = s.do(http.MethodGet, "/api/transfers/"+body["id"].(string), s.userToken, nil)
		s.Equal(http.StatusOK, rec.Code)
		rec = s.do(http.MethodGet, "/api/transfers/"+body["id"].(string), s.otherToken, nil)
		s.Equal(http.StatusNotFound, rec.Code)

		rec = s.do(http.MethodGet, "/api/cards/"+from+"/balance", s.userToken, nil)
		s.Equal("60.00", s.decode(rec)["balance"])
	})

	s.Run("numeric amount is accepted", func() {
		rec := transfer(from, to, 0.5)
		s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
		s.Equal("0.50", s.decode(rec)["amount"])
	})

	s.Run("business rule errors return 422 with code", func() {
		cases := []struct {
			name   string
			from   string
			to     string
			amount any
			code   string
		}{
			{"not enough funds", from, to, "1000", "NOT_ENOUGH_FUNDS"},
			{"same card", from, from, "1", "SAME_CARD"},
			{"zero amount", from, to, "0", "INVALID_AMOUNT"},
			{"missing amount", from, to, nil, "INVALID_AMOUNT"},
			{"foreign card", from, foreign, "1", "OWNERSHIP_VIOLATION"},
		}
		for _, tc := range cases {
			s.Run(tc.name, func() {
				rec := transfer(tc.from, tc.to, tc.amount)
				s.Equal(http.StatusUnprocessableEntity, rec.Code)
				s.Equal(tc.code, s.decode(rec)["code"])
			})
		}
	})

	s.Run("idempotency key replays the first result", func() {
		first := transfer(from, to, "1.00", "Idempotency-Key", "abc-123")
		s.Require().Equal(http.StatusCreated, first.Code)
		second := transfer(from, to, "1.00", "Idempotency-Key", "abc-123")
		s.Require().Equal(http.StatusCreated, second.Code)
		s.Equal(s.decode(first)["id"], s.decode(second)["id"])

		reused := transfer(from, to, "2.00", "Idempotency-Key", "abc-123")
		s.Equal(http.StatusConflict, reused.Code)
		s.Equal("STATE_CONFLICT", s.decode(reused)["code"])
	})
}

func (s *HandlerSuite) TestAdminCardManagement() {
	card := s.createCard(s.userID, "4111 1111 1111 1111", "0")
	s.createCard(s.otherID, "5500 0000 0000 0004", "0")

	s.Run("status update allows any transition", func() {
		rec := s.do(http.MethodPatch, "/api/admin/cards/"+card+"/status", s.adminToken, map[string]any{"status": "expired"})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		s.Equal("EXPIRED", s.decode(rec)["status"])

		rec = s.do(http.MethodPatch, "/api/admin/cards/"+card+"/status", s.adminToken, map[string]any{"status": "ACTIVE"})
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("unknown status returns 400", func() {
		rec := s.do(http.MethodPatch, "/api/admin/cards/"+card+"/status", s.adminToken, map[string]any{"status": "FROZEN"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("filters combine", func() {
		rec := s.do(http.MethodGet, "/api/admin/cards", s.adminToken, nil)
		s.EqualValues(2, s.decode(rec)["total_elements"])

		rec = s.do(http.MethodGet, "/api/admin/cards?owner_id="+s.userID, s.adminToken, nil)
		s.EqualValues(1, s.decode(rec)["total_elements"])

		rec = s.do(http.MethodGet, "/api/admin/cards?owner_id="+s.userID+"&status=BLOCKED", s.adminToken, nil)
		s.EqualValues(0, s.decode(rec)["total_elements"])
	})

	s.Run("delete then 404", func() {
		rec := s.do(http.MethodDelete, "/api/admin/cards/"+card, s.adminToken, nil)
		s.Equal(http.StatusNoContent, rec.Code)

		rec = s.do(http.MethodDelete, "/api/admin/cards/"+card, s.adminToken, nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

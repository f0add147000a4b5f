package features

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/cucumber/godog"
	"golang.org/x/crypto/bcrypt"

	cardsapi "bankcards/internal/cards/api"
	"bankcards/internal/cards/application"
	"bankcards/internal/cards/infrastructure/memory"
	"bankcards/internal/common/auth"
)

const contractSecret = "contract-secret-contract-secret-32"

type contractState struct {
	server   *httptest.Server
	response *http.Response
	token    string
}

func InitializeScenario(sc *godog.ScenarioContext) {
	state := &contractState{}

	sc.Step(`^the service is running$`, state.theServiceIsRunning)
	sc.Step(`^I am logged in as a new user "([^"]*)"$`, state.iAmLoggedInAsANewUser)
	sc.Step(`^I request the health endpoint$`, state.iRequestTheHealthEndpoint)
	sc.Step(`^I send "([A-Z]+)" to "([^"]*)" without a token$`, state.iSendWithoutAToken)
	sc.Step(`^I send "([A-Z]+)" to "([^"]*)" with my token$`, state.iSendWithMyToken)
	sc.Step(`^the response status should be (\d+)$`, state.theResponseStatusShouldBe)
	sc.Step(`^the error code should be "([^"]*)"$`, state.theErrorCodeShouldBe)

	sc.After(func(ctx context.Context, scenario *godog.Scenario, err error) (context.Context, error) {
		if state.server != nil {
			state.server.Close()
		}
		if state.response != nil {
			state.response.Body.Close()
		}
		return ctx, nil
	})
}

func (s *contractState) theServiceIsRunning() error {
	tokens, err := auth.NewTokenService(contractSecret, time.Hour)
	if err != nil {
		return err
	}
	store := memory.NewDataStore()
	handler := cardsapi.NewHandler(
		application.NewCardService(store),
		application.NewTransferService(store),
		application.NewUserService(store, auth.NewPasswordHasher(bcrypt.MinCost), tokens),
		auth.NewMiddleware(tokens),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	handler.RegisterRoutes(mux)
	s.server = httptest.NewServer(mux)
	return nil
}

func (s *contractState) post(path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return http.Post(s.server.URL+path, "application/json", bytes.NewReader(payload))
}

func (s *contractState) iAmLoggedInAsANewUser(email string) error {
	creds := map[string]string{"email": email, "password": "password-1"}
	resp, err := s.post("/auth/register", map[string]string{
		"email": email, "password": creds["password"], "full_name": "Contract User",
	})
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("register: expected 201, got %d", resp.StatusCode)
	}

	resp, err = s.post("/auth/login", creds)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var login struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	s.token = login.AccessToken
	return nil
}

func (s *contractState) iRequestTheHealthEndpoint() error {
	if s.server == nil {
		return fmt.Errorf("server not running")
	}
	resp, err := http.Get(s.server.URL + "/health")
	if err != nil {
		return fmt.Errorf("failed to request health endpoint: %w", err)
	}
	s.response = resp
	return nil
}

func (s *contractState) send(method, path, token string) error {
	if s.server == nil {
		return fmt.Errorf("server not running")
	}
	req, err := http.NewRequest(method, s.server.URL+path, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	s.response = resp
	return nil
}

func (s *contractState) iSendWithoutAToken(method, path string) error {
	return s.send(method, path, "")
}

func (s *contractState) iSendWithMyToken(method, path string) error {
	if s.token == "" {
		return fmt.Errorf("not logged in")
	}
	return s.send(method, path, s.token)
}

func (s *contractState) theResponseStatusShouldBe(expected int) error {
	if s.response == nil {
		return fmt.Errorf("no response received")
	}
	if s.response.StatusCode != expected {
		return fmt.Errorf("expected status %d, got %d", expected, s.response.StatusCode)
	}
	return nil
}

func (s *contractState) theErrorCodeShouldBe(code string) error {
	if s.response == nil {
		return fmt.Errorf("no response received")
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(s.response.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode error body: %w", err)
	}
	if body.Code != code {
		return fmt.Errorf("expected error code %q, got %q", code, body.Code)
	}
	return nil
}

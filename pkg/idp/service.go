package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Service is a client of a hosted identity provider speaking the identity toolkit REST dialect
type Service struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
	breaker    *gobreaker.CircuitBreaker
}

func (s *Service) LoggerComponent() string {
	return "IdentityProvider.Service"
}

func NewService(apiURL, apiKey string, opts ...ServiceOption) (*Service, error) {
	if _, err := url.ParseRequestURI(apiURL); err != nil {
		return nil, errors.Wrap(err, "api url")
	}

	c := &Service{
		apiURL:     apiURL,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		logger:     log.Logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "idp",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}

	for _, o := range opts {
		o(c)
	}

	c.logger = c.logger.With().Str("component", c.LoggerComponent()).Logger()

	return c, nil
}

type ServiceOption func(*Service)

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

func WithHTTPClient(c *http.Client) ServiceOption {
	return func(s *Service) {
		s.httpClient = c
	}
}

func WithBreaker(st gobreaker.Settings) ServiceOption {
	return func(s *Service) {
		s.breaker = gobreaker.NewCircuitBreaker(st)
	}
}

func (s *Service) SignUp(ctx context.Context, in *SignUpRequest, out *SignUpResponse) error {
	l := s.logger.With().Str("method", "SignUp").Logger()
	in.ReturnSecureToken = true

	if err := s.call(l.WithContext(ctx), "/v1/accounts:signUp", in, out); err != nil {
		return err
	}

	l.Debug().Str("local_id", out.LocalID).Msg("SignUp success")
	return nil
}

func (s *Service) SignInWithPassword(ctx context.Context, in *SignInRequest, out *SignInResponse) error {
	l := s.logger.With().Str("method", "SignInWithPassword").Logger()
	in.ReturnSecureToken = true

	if err := s.call(l.WithContext(ctx), "/v1/accounts:signInWithPassword", in, out); err != nil {
		return err
	}

	l.Debug().Str("local_id", out.LocalID).Msg("SignIn success")
	return nil
}

func (s *Service) Update(ctx context.Context, in *UpdateRequest, out *UpdateResponse) error {
	l := s.logger.With().Str("method", "Update").Logger()

	if err := s.call(l.WithContext(ctx), "/v1/accounts:update", in, out); err != nil {
		return err
	}

	l.Debug().Str("local_id", out.LocalID).Msg("Update success")
	return nil
}

type RemoteError struct {
	ResponseBody string
	StatusCode   int
	Message      string
}

func NewRemoteError(responseBody string, statusCode int) *RemoteError {
	return &RemoteError{
		ResponseBody: responseBody,
		StatusCode:   statusCode,
		Message:      remoteMessage(responseBody),
	}
}

func (e *RemoteError) Error() string {
	return e.Message
}

// call runs a request through the breaker. Rejections from the provider (4xx)
// are answers, not outages, and do not count against the breaker.
func (s *Service) call(ctx context.Context, endpoint string, in interface{}, out interface{}) error {
	var rejected error

	_, err := s.breaker.Execute(func() (interface{}, error) {
		err := s.genericCall(ctx, http.MethodPost, endpoint, in, out)
		var re *RemoteError
		if errors.As(err, &re) && re.StatusCode < http.StatusInternalServerError {
			rejected = err
			return nil, nil
		}
		return nil, err
	})
	if err != nil {
		return err
	}

	return rejected
}

func (s *Service) genericCall(ctx context.Context, method, endpoint string, in interface{}, out interface{}) error {
	l := zerolog.Ctx(ctx).With().Str("http_method", method).Str("endpoint", endpoint).Logger()
	ctx = l.WithContext(ctx)

	res, err := s.request(ctx, method, endpoint, in)
	if err != nil {
		l.Error().Err(err).
			Msg("Service request failed")
		return errors.Wrap(err, "request")
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode >= 400 {
		resBody := readString(res.Body)
		l.Debug().
			Int("http_status", res.StatusCode).
			Str("http_body", resBody).
			Msg("Service responded with error")
		return NewRemoteError(resBody, res.StatusCode)
	}

	if err := readJSON(res.Body, out); err != nil {
		return errors.Wrap(err, "body read")
	}

	return nil
}

func (s *Service) request(
	ctx context.Context,
	method string,
	endpoint string,
	bodyParams interface{},
) (*http.Response, error) {
	fullURL := s.apiURL + endpoint
	if s.apiKey != "" {
		fullURL += "?key=" + url.QueryEscape(s.apiKey)
	}
	l := zerolog.Ctx(ctx).With().
		Str("http_method", method).
		Str("endpoint", endpoint).
		Logger()
	l.Debug().Msg("HTTP request")

	rawJSON, err := json.Marshal(bodyParams)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bytes.NewReader(rawJSON))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")

	res, err := s.httpClient.Do(req)
	if err != nil {
		l.Error().Err(err).
			Msg("Call failed")
		return nil, fmt.Errorf("do request: %w", err)
	}

	return res, nil
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Wildnerds/korrectNG-sub003/internal/config"
	"github.com/Wildnerds/korrectNG-sub003/internal/domain"
	apperrors "github.com/Wildnerds/korrectNG-sub003/pkg/util"
)

// EscrowInterlock is the dispute workflow's only side effect on money
// movement. PauseRelease must tolerate repeats; ResumeOrSettle must happen
// exactly once per resolution, and only after the dispute is persisted as
// resolved.
type EscrowInterlock interface {
	PauseRelease(ctx context.Context, contractID string) error
	ResumeOrSettle(ctx context.Context, contractID string, outcome domain.ResolutionOutcome, idempotencyKey string) error
}

// SettlementKeyStore records issued settlement idempotency keys so a
// retried resolve never settles twice.
type SettlementKeyStore interface {
	// MarkSettled returns false when the key was already recorded.
	MarkSettled(ctx context.Context, key string) (bool, error)
	// Clear releases a key after a failed settlement call so it can retry.
	Clear(ctx context.Context, key string) error
}

const settlementKeyTTL = 30 * 24 * time.Hour

type redisSettlementKeyStore struct {
	client *redis.Client
}

// NewRedisSettlementKeyStore backs idempotency keys with Redis.
func NewRedisSettlementKeyStore(client *redis.Client) SettlementKeyStore {
	return &redisSettlementKeyStore{client: client}
}

func (s *redisSettlementKeyStore) MarkSettled(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, "escrow:settle:"+key, time.Now().UTC().Format(time.RFC3339), settlementKeyTTL).Result()
}

func (s *redisSettlementKeyStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, "escrow:settle:"+key).Err()
}

type memorySettlementKeyStore struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewMemorySettlementKeyStore keeps keys in process memory, for tests and
// single-instance deployments without Redis.
func NewMemorySettlementKeyStore() SettlementKeyStore {
	return &memorySettlementKeyStore{keys: make(map[string]struct{})}
}

func (s *memorySettlementKeyStore) MarkSettled(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keys[key]; exists {
		return false, nil
	}
	s.keys[key] = struct{}{}
	return true, nil
}

func (s *memorySettlementKeyStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

// EscrowService talks to the escrow subsystem's internal API. Failures here
// are a consistency risk between dispute state and money flow, so they are
// logged at error level, never swallowed.
type EscrowService struct {
	baseURL  string
	apiKey   string
	attempts int
	client   *http.Client
	keys     SettlementKeyStore
	logger   *zap.Logger
}

// NewEscrowService builds the interlock client. Without a configured base
// URL the calls are logged and treated as delivered (development mode);
// idempotency bookkeeping still applies so call counts stay observable.
func NewEscrowService(cfg config.EscrowConfig, keys SettlementKeyStore, logger *zap.Logger) *EscrowService {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		logger.Warn("ESCROW_BASE_URL not provided; escrow calls will be logged only")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &EscrowService{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		attempts: attempts,
		client:   &http.Client{Timeout: timeout},
		keys:     keys,
		logger:   logger,
	}
}

type pauseRequest struct {
	ContractID string `json:"contract_id"`
}

type settleRequest struct {
	ContractID     string                   `json:"contract_id"`
	Outcome        domain.ResolutionOutcome `json:"outcome"`
	IdempotencyKey string                   `json:"idempotency_key"`
}

// PauseRelease pauses escrow release for a contract. The escrow side treats
// repeat pauses as no-ops, so retries are safe.
func (s *EscrowService) PauseRelease(ctx context.Context, contractID string) error {
	if s.baseURL == "" {
		s.logger.Info("escrow pause (stub)", zap.String("contract_id", contractID))
		return nil
	}
	err := s.post(ctx, "/v1/escrow/pause", pauseRequest{ContractID: contractID})
	if err != nil {
		s.logger.Error("escrow pause failed",
			zap.String("contract_id", contractID),
			zap.Error(err))
		return apperrors.NewUpstreamError("escrow pause failed", err)
	}
	s.logger.Info("escrow release paused", zap.String("contract_id", contractID))
	return nil
}

// ResumeOrSettle instructs the escrow subsystem to release, refund, or
// split the held funds. The idempotency key (the dispute id) guards
// against double settlement on retried resolutions.
func (s *EscrowService) ResumeOrSettle(ctx context.Context, contractID string, outcome domain.ResolutionOutcome, idempotencyKey string) error {
	fresh, err := s.keys.MarkSettled(ctx, idempotencyKey)
	if err != nil {
		s.logger.Error("settlement key store unavailable",
			zap.String("contract_id", contractID),
			zap.Error(err))
		return apperrors.NewUpstreamError("settlement bookkeeping failed", err)
	}
	if !fresh {
		s.logger.Info("settlement already issued; skipping",
			zap.String("contract_id", contractID),
			zap.String("idempotency_key", idempotencyKey))
		return nil
	}

	if s.baseURL == "" {
		s.logger.Info("escrow settle (stub)",
			zap.String("contract_id", contractID),
			zap.String("outcome", string(outcome)))
		return nil
	}

	err = s.post(ctx, "/v1/escrow/settle", settleRequest{
		ContractID:     contractID,
		Outcome:        outcome,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		// Release the key so a later retry can settle.
		if clearErr := s.keys.Clear(ctx, idempotencyKey); clearErr != nil {
			s.logger.Error("failed to clear settlement key",
				zap.String("idempotency_key", idempotencyKey),
				zap.Error(clearErr))
		}
		s.logger.Error("escrow settlement failed",
			zap.String("contract_id", contractID),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
		return apperrors.NewUpstreamError("escrow settlement failed", err)
	}
	s.logger.Info("escrow settled",
		zap.String("contract_id", contractID),
		zap.String("outcome", string(outcome)))
	return nil
}

func (s *EscrowService) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if s.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+s.apiKey)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("escrow api returned %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// Client errors will not succeed on retry.
			return lastErr
		}
	}
	return lastErr
}

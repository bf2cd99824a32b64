// Package app assembles the verification stack from configuration. The
// verifier service and the scanner CLI's local mode share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"gatepass/internal/clock"
	"gatepass/internal/config"
	"gatepass/internal/domain"
	"gatepass/internal/infra/crypto"
	"gatepass/internal/infra/db"
	"gatepass/internal/infra/oracle/ethrpc"
	"gatepass/internal/infra/oracle/memory"
	"gatepass/internal/infra/policyopa"
	"gatepass/internal/infra/ratelimit"
	"gatepass/internal/infra/replay"
	"gatepass/internal/usecase"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type Stack struct {
	Config     config.Config
	Clock      clock.Clock
	Crypto     *crypto.Service
	Oracle     domain.OwnershipOracle
	Nonces     usecase.NonceStore
	Admissions domain.AdmissionRepository
	Policy     *policyopa.Engine
	Limiter    domain.RateLimiter
	Verifier   *usecase.GateVerifier
	Admit      *usecase.AdmitTicket

	store   *db.Store
	redis   *redis.Client
	closers []func()
}

// NewStack connects every backing service named in cfg. Unset backends fall
// back to in-process implementations.
func NewStack(ctx context.Context, cfg config.Config, c clock.Clock, log zerolog.Logger) (*Stack, error) {
	if c == nil {
		c = clock.NewSystem()
	}
	s := &Stack{Config: cfg, Clock: c, Crypto: crypto.NewService()}

	if err := s.initOracle(ctx, log); err != nil {
		s.Close()
		return nil, err
	}
	if cfg.RedisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		s.closers = append(s.closers, func() { _ = s.redis.Close() })
	}
	if err := s.initReplay(log); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.initAdmissions(ctx, log); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.initLimiter(); err != nil {
		s.Close()
		return nil, err
	}

	policy, err := policyopa.NewEngine(ctx, cfg.GatePolicyPath)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("load gate policy: %w", err)
	}
	s.Policy = policy
	log.Info().Str("policy_hash", policy.PolicyHash()).Msg("gate policy loaded")

	s.Verifier = &usecase.GateVerifier{
		Ticket: &usecase.VerifyTicket{
			Crypto:           s.Crypto,
			Oracle:           s.Oracle,
			Clock:            c,
			RotationInterval: cfg.RotationInterval(),
			OracleTimeout:    cfg.OracleTimeout(),
			ClockSkew:        cfg.ClockSkew(),
		},
		Replay: &usecase.ReplayGuard{
			Nonces:     s.Nonces,
			GateID:     cfg.GateID,
			Clock:      c,
			ClockSkew:  cfg.ClockSkew(),
			FailClosed: cfg.ReplayFailClosed,
		},
	}
	s.Admit = &usecase.AdmitTicket{Verifier: s.Verifier, Admissions: s.Admissions, Clock: c}
	return s, nil
}

func (s *Stack) initOracle(ctx context.Context, log zerolog.Logger) error {
	cfg := s.Config
	if cfg.OracleRPCURL == "" {
		ledger, err := memory.Parse(cfg.TicketOwners)
		if err != nil {
			return fmt.Errorf("parse TICKET_OWNERS: %w", err)
		}
		log.Warn().Int("tickets", len(cfg.TicketOwners)).Msg("ORACLE_RPC_URL not set; using in-memory ownership ledger")
		s.Oracle = ledger
		return nil
	}
	if cfg.TicketContractAddress == "" {
		return errors.New("TICKET_CONTRACT_ADDRESS is required with ORACLE_RPC_URL")
	}
	oracle, err := ethrpc.Dial(ctx, cfg.OracleRPCURL, cfg.TicketContractAddress, cfg.ChainID)
	if err != nil {
		return fmt.Errorf("dial ownership oracle: %w", err)
	}
	log.Info().Str("contract", cfg.TicketContractAddress).Int64("chain_id", cfg.ChainID).Msg("ownership oracle connected")
	s.Oracle = oracle
	s.closers = append(s.closers, oracle.Close)
	return nil
}

func (s *Stack) initReplay(log zerolog.Logger) error {
	if s.redis == nil {
		log.Warn().Msg("REDIS_ADDR not set; nonce replay guard is local to this process")
		s.Nonces = replay.NewMemoryStore(s.Clock)
		return nil
	}
	store, err := replay.NewRedisStore(s.redis)
	if err != nil {
		return fmt.Errorf("init redis replay store: %w", err)
	}
	s.Nonces = store
	return nil
}

func (s *Stack) initAdmissions(ctx context.Context, log zerolog.Logger) error {
	store, err := db.NewStore(s.Config, log)
	if err != nil {
		return err
	}
	s.store = store
	s.closers = append(s.closers, func() { _ = store.Close() })
	if store.DB == nil {
		s.Admissions = db.NewMemoryAdmissionRepository()
		return nil
	}
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate admissions: %w", err)
	}
	s.Admissions = db.NewAdmissionRepository(store.DB)
	return nil
}

func (s *Stack) initLimiter() error {
	if s.redis == nil {
		s.Limiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
			Clock:   s.Clock,
			MaxKeys: s.Config.RateLimitMaxKeys,
		})
		return nil
	}
	limiter, err := ratelimit.NewRedisLimiter(s.redis, s.Clock)
	if err != nil {
		return fmt.Errorf("init redis rate limiter: %w", err)
	}
	s.Limiter = limiter
	return nil
}

// Operators authenticates scanner operators against the allowlist.
func (s *Stack) Operators() *usecase.AuthenticateOperator {
	return &usecase.AuthenticateOperator{
		Crypto:    s.Crypto,
		Policy:    s.Policy,
		Allowlist: s.Config.ScannerAllowlist,
		GateID:    s.Config.GateID,
		Clock:     s.Clock,
		MaxSkew:   s.Config.OperatorAuthSkew(),
	}
}

// Ready reports whether the database and Redis answer.
func (s *Stack) Ready(ctx context.Context) error {
	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

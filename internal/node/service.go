package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/parasail-network/node-agent/internal/api"
	"github.com/parasail-network/node-agent/internal/auth"
	"github.com/parasail-network/node-agent/internal/credentials"
	"github.com/parasail-network/node-agent/internal/models"
	"go.uber.org/zap"
)

// ErrReauthFailed aborts an action whose token refresh did not produce a
// new credential. The next scheduled cycle tries again.
var ErrReauthFailed = errors.New("re-authentication failed")

// maxAuthAttempts bounds the refresh-and-retry loop: the original call plus
// one retry with a fresh token. Two consecutive 401s mean the problem is
// not the token.
const maxAuthAttempts = 2

// Service performs the node actions: onboarding, check-in and stats fetch.
// Each action is one authenticated call with transparent token refresh.
type Service struct {
	client  *api.Client
	auth    *auth.Manager
	session *credentials.Session
	log     *zap.Logger
}

func NewService(client *api.Client, mgr *auth.Manager, session *credentials.Session, log *zap.Logger) *Service {
	return &Service{client: client, auth: mgr, session: session, log: log}
}

// call runs fn, refreshing the bearer token at most once on a 401.
func (s *Service) call(ctx context.Context, name string, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxAuthAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !errors.Is(err, api.ErrUnauthorized) {
			return err
		}
		if attempt+1 == maxAuthAttempts {
			break
		}
		s.log.Warn("token rejected, refreshing", zap.String("action", name))
		if !s.auth.VerifyUser(ctx) {
			return fmt.Errorf("%s: %w", name, ErrReauthFailed)
		}
		s.log.Info("token refreshed, retrying", zap.String("action", name))
	}
	s.log.Error("still unauthorized after token refresh", zap.String("action", name))
	return err
}

func (s *Service) Onboard(ctx context.Context) error {
	s.log.Info("onboarding node", zap.String("address", s.session.Address()))
	return s.call(ctx, "onboard", func(ctx context.Context) error {
		data, err := s.client.Request(ctx, http.MethodPost, "/v1/node/onboard",
			models.AddressRequest{Address: s.session.Address()})
		if err != nil {
			return err
		}
		var res models.OnboardResponse
		if err := json.Unmarshal(data, &res); err != nil {
			return fmt.Errorf("decode onboard response: %w", err)
		}
		s.log.Info("node onboarded", zap.Stringp("message", res.Message))
		return nil
	})
}

func (s *Service) CheckIn(ctx context.Context) (*models.CheckInResult, error) {
	s.log.Info("performing node check-in", zap.String("address", s.session.Address()))
	var result models.CheckInResult
	err := s.call(ctx, "check_in", func(ctx context.Context) error {
		data, err := s.client.Request(ctx, http.MethodPost, "/v1/node/check_in",
			models.AddressRequest{Address: s.session.Address()})
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &result); err != nil {
			return fmt.Errorf("decode check-in response: %w", err)
		}
		s.log.Info("node checked in",
			zap.Float64p("points", result.Points),
			zap.Stringp("message", result.Message),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Stats fetches the node snapshot. Stats are advisory and must never block
// scheduling: non-auth failures degrade to an empty snapshot with no error.
func (s *Service) Stats(ctx context.Context) (*models.NodeStats, error) {
	var stats models.NodeStats
	err := s.call(ctx, "node_stats", func(ctx context.Context) error {
		path := "/v1/node/node_stats?address=" + url.QueryEscape(s.session.Address())
		data, err := s.client.Request(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &stats); err != nil {
			return fmt.Errorf("decode stats response: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) || errors.Is(err, ErrReauthFailed) {
			return nil, err
		}
		s.log.Warn("stats fetch failed, continuing without snapshot", zap.Error(err))
		return &models.NodeStats{}, nil
	}

	s.log.Info("node stats",
		zap.Boolp("has_node", stats.HasNode),
		zap.Stringp("node_address", stats.NodeAddress),
		zap.Float64p("points", stats.Points),
		zap.Float64p("pending_rewards", stats.PendingRewards),
		zap.Float64p("total_distributed", stats.TotalDistributed),
		zap.Int64p("last_checkin_time", stats.LastCheckinTime),
		zap.Intp("card_count", stats.CardCount),
	)
	return &stats, nil
}

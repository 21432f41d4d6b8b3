package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/parasail-network/node-agent/internal/api"
	"github.com/parasail-network/node-agent/internal/credentials"
	"github.com/parasail-network/node-agent/internal/models"
	"github.com/parasail-network/node-agent/internal/signer"
	"go.uber.org/zap"
)

// termsMessage is the fixed blob the wallet signs to prove ownership. The
// API expects it verbatim; it must never change.
const termsMessage = "By signing this message, you confirm that you agree to the Parasail Terms of Service.\n\n" +
	"Parasail (including the Website and Parasail Smart Contracts) is not intended for:\n" +
	"(a) access and/or use by Excluded Persons;\n" +
	"(b) access and/or use by any person or entity in, or accessing or using the Website from, an Excluded Jurisdiction.\n\n" +
	"Excluded Persons are prohibited from accessing and/or using Parasail (including the Website and Parasail Smart Contracts).\n\n" +
	"For full terms, refer to: https://parasail.network/Parasail_User_Terms.pdf"

// expiryLeeway refreshes the token slightly before its exp claim so a call
// issued right at the boundary does not burn a 401.
const expiryLeeway = 30 * time.Second

// Manager exchanges wallet signatures for bearer tokens and keeps the
// session's token current.
type Manager struct {
	signer  *signer.Signer
	client  *api.Client
	session *credentials.Session
	log     *zap.Logger

	now func() time.Time
}

func NewManager(sgn *signer.Signer, client *api.Client, session *credentials.Session, log *zap.Logger) *Manager {
	return &Manager{
		signer:  sgn,
		client:  client,
		session: session,
		log:     log,
		now:     time.Now,
	}
}

// VerifyUser signs the terms message, trades the signature for a bearer
// token and persists it. It never propagates failures: the cause is logged
// and the result is a plain yes/no, so call sites can retry without
// unwinding. Safe to call repeatedly; each success overwrites the token.
func (m *Manager) VerifyUser(ctx context.Context) bool {
	m.log.Info("verifying user", zap.String("address", m.signer.Address()))

	sig, err := m.signer.SignMessage(termsMessage)
	if err != nil {
		m.log.Error("failed to sign terms message", zap.Error(err))
		return false
	}

	payload := models.SignaturePayload{
		Address:   m.signer.Address(),
		Message:   termsMessage,
		Signature: sig,
	}

	data, err := m.client.Request(ctx, http.MethodPost, "/user/verify", payload)
	if err != nil {
		m.log.Error("user verification failed", zap.Error(err))
		return false
	}

	var res models.VerifyResponse
	if err := json.Unmarshal(data, &res); err != nil {
		m.log.Error("failed to decode verify response", zap.Error(err))
		return false
	}
	if res.Token == "" {
		m.log.Error("verify response carried no token")
		return false
	}

	if err := m.session.SetToken(ctx, res.Token); err != nil {
		m.log.Error("failed to persist bearer token", zap.Error(err))
		return false
	}

	m.log.Info("bearer token obtained and saved")
	return true
}

// TokenExpired reports whether the stored token is missing, unreadable or
// past its exp claim. The token is minted by the API and we hold no
// verification key, so the claims are parsed unverified; this is an
// optimization only, the server remains the authority via 401s.
func (m *Manager) TokenExpired() bool {
	token := m.session.Token()
	if token == "" {
		return true
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return m.now().After(claims.ExpiresAt.Time.Add(-expiryLeeway))
}

// EnsureAuthenticated verifies only when the stored token is missing or
// stale. Used at startup.
func (m *Manager) EnsureAuthenticated(ctx context.Context) error {
	if !m.TokenExpired() {
		m.log.Info("existing bearer token still valid")
		return nil
	}
	if !m.VerifyUser(ctx) {
		return errors.New("could not obtain bearer token")
	}
	return nil
}

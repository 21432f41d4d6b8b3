package models

// Credential is the persisted pairing of wallet address and bearer token.
// WalletAddress must always match the address derived from the active
// private key; startup corrects and re-persists it if they diverge.
type Credential struct {
	WalletAddress string `json:"wallet_address"`
	BearerToken   string `json:"bearer_token"`
}

// SignaturePayload is the material sent to the verify endpoint. Built fresh
// for every authentication attempt, never persisted.
type SignaturePayload struct {
	Address   string `json:"address"`
	Message   string `json:"msg"`
	Signature string `json:"signature"`
}

type VerifyResponse struct {
	Token string `json:"token"`
}

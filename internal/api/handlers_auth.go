package api

import (
	"net/http"
)

type nonceRequest struct {
	WalletAddress string `json:"walletAddress"`
}

// handleAuthNonce returns the challenge message the wallet must sign.
func (s *Server) handleAuthNonce(w http.ResponseWriter, r *http.Request) {
	var req nonceRequest
	if err := parseJSONBody(r, &req); err != nil || req.WalletAddress == "" {
		respondError(w, http.StatusBadRequest, "Wallet address required")
		return
	}

	message, err := s.auth.Challenge(r.Context(), req.WalletAddress)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid wallet address")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}

type verifyRequest struct {
	WalletAddress string `json:"walletAddress"`
	Signature     string `json:"signature"`
}

// handleAuthVerify checks the signed challenge and mints a session
// token.
func (s *Server) handleAuthVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := parseJSONBody(r, &req); err != nil || req.WalletAddress == "" || req.Signature == "" {
		respondError(w, http.StatusBadRequest, "Wallet address and signature required")
		return
	}

	user, err := s.auth.Login(r.Context(), req.WalletAddress, req.Signature)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	token, err := s.sessions.Create(r.Context(), user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "An internal error occurred")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user": map[string]interface{}{
			"id":            user.ID,
			"walletAddress": user.WalletAddress,
			"username":      user.Username,
			"avatarUrl":     user.AvatarURL,
		},
	})
}

// handleAuthMe returns the authenticated user and their managed wallet.
func (s *Server) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	payload := map[string]interface{}{
		"user": map[string]interface{}{
			"id":            user.ID,
			"walletAddress": user.WalletAddress,
			"username":      user.Username,
			"avatarUrl":     user.AvatarURL,
		},
		"managedWallet": nil,
	}

	if managed, err := s.wallets.Get(r.Context(), user.ID); err == nil {
		payload["managedWallet"] = map[string]interface{}{
			"id":        managed.ID,
			"publicKey": managed.PublicKey,
			"balance":   managed.Balance,
			"status":    managed.Status,
		}
	}

	respondJSON(w, http.StatusOK, payload)
}

type profileRequest struct {
	Username  *string `json:"username"`
	AvatarURL *string `json:"avatarUrl"`
}

// handleAuthProfile updates the user's display fields.
func (s *Server) handleAuthProfile(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req profileRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid profile data")
		return
	}

	updates := map[string]interface{}{}
	if req.Username != nil {
		updates["username"] = *req.Username
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = *req.AvatarURL
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(r.Context()).Model(user).Updates(updates).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to update profile")
			return
		}
	}

	respondJSON(w, http.StatusOK, user)
}

// handleAuthLogout revokes the session token.
func (s *Server) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Revoke(r.Context(), bearerToken(r)); err != nil {
		respondError(w, http.StatusInternalServerError, "An internal error occurred")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

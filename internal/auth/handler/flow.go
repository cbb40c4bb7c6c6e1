package handler

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yashgoel75/cleit-cdc/internal/utils"
)

const (
	stateCookieName = "__oauth_state"
	pkceCookieName  = "__oauth_pkce"
	flowTTL         = 5 * time.Minute
)

type flow struct {
	state     string
	verifier  string
	challenge string
}

// beginFlow creates the state and PKCE verifier for one authorization
// request and stores both in short-lived cookies.
func (h *Handler) beginFlow(c *gin.Context) (flow, error) {
	state, err := utils.RandomString(32)
	if err != nil {
		return flow{}, err
	}
	verifier, err := utils.RandomString(32)
	if err != nil {
		return flow{}, err
	}

	h.setFlowCookie(c, stateCookieName, state, int(flowTTL.Seconds()))
	h.setFlowCookie(c, pkceCookieName, verifier, int(flowTTL.Seconds()))

	return flow{state: state, verifier: verifier, challenge: pkceChallenge(verifier)}, nil
}

// endFlow checks the returned state against its cookie, clears both flow
// cookies and returns the PKCE verifier.
func (h *Handler) endFlow(c *gin.Context) (verifier string, ok bool) {
	q := c.Query("state")
	st, err := c.Request.Cookie(stateCookieName)
	if q == "" || err != nil || subtle.ConstantTimeCompare([]byte(st.Value), []byte(q)) != 1 {
		return "", false
	}
	if pk, err := c.Request.Cookie(pkceCookieName); err == nil {
		verifier = pk.Value
	}

	h.setFlowCookie(c, stateCookieName, "", -1)
	h.setFlowCookie(c, pkceCookieName, "", -1)
	return verifier, true
}

func (h *Handler) setFlowCookie(c *gin.Context, name, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func pkceChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

package handlers

import (
	"math/rand/v2"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Hints hands out an occasional tip in the page header, at most one per
// session per cooldown.
type Hints struct {
	cooldowns   map[string]time.Time // session token -> last hint time
	cooldownMu  sync.RWMutex
	cooldownDur time.Duration
	hintChance  float32
	hints       []string
	now         func() time.Time
}

func NewHints() *Hints {
	return &Hints{
		cooldowns:   make(map[string]time.Time),
		cooldownDur: 10 * time.Minute,
		hintChance:  0.2,
		hints: []string{
			"Tip: paste a Spotify profile link into search to jump straight to that profile",
			"Tip: pick a custom profile URL in the editor before you connect",
			"Tip: playlist pages can be shared with anyone, no login needed",
			"Tip: your dashboard keeps showing your last loaded plays if Spotify is slow",
		},
		now: time.Now,
	}
}

// ShouldShowHint rolls for a hint and respects the session's cooldown.
func (h *Hints) ShouldShowHint(sessionToken string) (string, bool) {
	if len(h.hints) == 0 || rand.Float32() >= h.hintChance {
		return "", false
	}

	h.cooldownMu.Lock()
	defer h.cooldownMu.Unlock()

	if last, ok := h.cooldowns[sessionToken]; ok && h.now().Sub(last) < h.cooldownDur {
		return "", false
	}
	hint := h.hints[rand.IntN(len(h.hints))]
	h.cooldowns[sessionToken] = h.now()

	log.Tracef("Showing hint for session %s: %s", sessionToken, hint)
	return hint, true
}

func (h *Hints) ClearCooldown(sessionToken string) {
	h.cooldownMu.Lock()
	delete(h.cooldowns, sessionToken)
	h.cooldownMu.Unlock()
}

func (h *Hints) GetCooldownRemaining(sessionToken string) time.Duration {
	h.cooldownMu.RLock()
	defer h.cooldownMu.RUnlock()
	last, ok := h.cooldowns[sessionToken]
	if !ok {
		return 0
	}
	remaining := h.cooldownDur - h.now().Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Prune drops cooldowns that have run out, so sessions that never come
// back don't pile up.
func (h *Hints) Prune() int {
	h.cooldownMu.Lock()
	defer h.cooldownMu.Unlock()
	dropped := 0
	for token, last := range h.cooldowns {
		if h.now().Sub(last) >= h.cooldownDur {
			delete(h.cooldowns, token)
			dropped++
		}
	}
	return dropped
}

package orders

import "sync"

// TokenLocks serializa la operación sobre un token entre el scan loop y
// el exit loop: mientras un token está tomado (p.ej. en liquidación),
// nadie más coloca órdenes sobre él.
type TokenLocks struct {
	mu    sync.Mutex
	taken map[string]bool
}

// NewTokenLocks crea el registro compartido.
func NewTokenLocks() *TokenLocks {
	return &TokenLocks{taken: make(map[string]bool)}
}

// TryLock intenta tomar el token. Devuelve false si ya está tomado.
func (l *TokenLocks) TryLock(tokenID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.taken[tokenID] {
		return false
	}
	l.taken[tokenID] = true
	return true
}

// Unlock libera el token.
func (l *TokenLocks) Unlock(tokenID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.taken, tokenID)
}

// Locked devuelve true si el token está tomado.
func (l *TokenLocks) Locked(tokenID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.taken[tokenID]
}

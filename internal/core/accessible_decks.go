package core

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"flashdeck-backend-go/internal/db"
	"flashdeck-backend-go/internal/models"
)

// AccessibleDecksView is one published state of the aggregator.
type AccessibleDecksView struct {
	Identity string
	Decks    []*models.AccessibleDeck
	// Loading is true until the owned listener delivers its first result.
	Loading bool
	// Err is the owned listener failure. It is the only fatal state.
	Err error
	// CollabErr is a collaborative listener failure. Owned decks keep
	// flowing and the last collaborative result is retained.
	CollabErr error
}

// MergeAccessibleDecks merges the owned and collaborative result sets for
// identity. Owned decks win over collaborative entries with the same id, and
// the result is sorted by updatedAt descending across both sources, ties by id.
func MergeAccessibleDecks(identity string, owned, collab []*models.Deck) []*models.AccessibleDeck {
	merged := make([]*models.AccessibleDeck, 0, len(owned)+len(collab))
	seen := make(map[string]bool, len(owned)+len(collab))

	for _, d := range owned {
		if d == nil || seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		merged = append(merged, &models.AccessibleDeck{Deck: *d, EffectiveRole: models.RoleOwner})
	}
	for _, d := range collab {
		if d == nil || seen[d.ID] {
			continue
		}
		role, ok := d.Roles[identity]
		if !ok || !role.IsCollaborator() {
			continue
		}
		seen[d.ID] = true
		merged = append(merged, &models.AccessibleDeck{Deck: *d, EffectiveRole: role})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
	return merged
}

// AccessibleDecksAggregator keeps the owned and collaborative live queries
// for one identity and publishes their merged view on every push.
//
// Listeners are bound to a generation. Changing identity or closing bumps
// the generation, so callbacks from torn-down listeners are dropped, and
// each unsubscribe function is called exactly once. The collaborative
// listener also carries its own generation so it can be restarted alone.
type AccessibleDecksAggregator struct {
	ctx      context.Context
	decks    db.DeckRepository
	logger   *zap.Logger
	onChange func(AccessibleDecksView)

	mu          sync.Mutex
	identity    string
	generation  uint64
	collabGen   uint64
	closed      bool
	owned       []*models.Deck
	ownedReady  bool
	collab      []*models.Deck
	ownedErr    error
	collabErr   error
	unsubOwned  func()
	unsubCollab func()
	version     uint64

	publishMu sync.Mutex
	published uint64
}

// NewAccessibleDecksAggregator creates an aggregator with no identity.
// Listeners live until Close, a sign-out, or ctx is done. onChange may be nil
// and is never called with the aggregator's lock held.
func NewAccessibleDecksAggregator(ctx context.Context, decks db.DeckRepository, logger *zap.Logger, onChange func(AccessibleDecksView)) *AccessibleDecksAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessibleDecksAggregator{
		ctx:      ctx,
		decks:    decks,
		logger:   logger,
		onChange: onChange,
	}
}

// SetIdentity tears down the listeners of the previous identity and, unless
// identity is "", subscribes for the new one. Setting the current identity
// again only restarts a failed collaborative listener (see RetryCollaborative).
func (a *AccessibleDecksAggregator) SetIdentity(identity string) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if identity == a.identity && (identity == "" || a.unsubOwned != nil) {
		retry := a.collabErr != nil
		a.mu.Unlock()
		if retry {
			a.RetryCollaborative()
		}
		return
	}
	oldOwned, oldCollab := a.resetLocked(identity)
	gen, cgen := a.generation, a.collabGen
	v, view := a.snapshotLocked()
	a.mu.Unlock()

	a.stop(oldOwned, oldCollab)
	a.publish(v, view)

	if identity == "" {
		return
	}

	a.logger.Debug("Subscribing accessible decks", zap.String("identity", identity))
	unsubOwned := a.decks.SubscribeOwned(a.ctx, identity,
		func(decks []*models.Deck) { a.onOwned(gen, decks) },
		func(err error) { a.onOwnedError(gen, err) })
	unsubCollab := a.subscribeCollaborative(identity, gen, cgen)

	a.mu.Lock()
	if a.closed || a.generation != gen {
		// Superseded while subscribing.
		a.mu.Unlock()
		a.stop(unsubOwned, unsubCollab)
		return
	}
	a.unsubOwned = unsubOwned
	if a.collabGen == cgen {
		a.unsubCollab = unsubCollab
		a.mu.Unlock()
		return
	}
	// A retry replaced this listener while we were subscribing.
	a.mu.Unlock()
	a.stop(unsubCollab)
}

// RetryCollaborative restarts the collaborative listener after it failed,
// e.g. once a missing index has been built. The owned listener and the decks
// already delivered are left alone; CollabErr clears on the first result.
// It reports whether a new listener was started. It must not be called from
// onChange.
func (a *AccessibleDecksAggregator) RetryCollaborative() bool {
	a.mu.Lock()
	if a.closed || a.identity == "" || a.unsubOwned == nil || a.collabErr == nil {
		a.mu.Unlock()
		return false
	}
	a.collabGen++
	identity, gen, cgen := a.identity, a.generation, a.collabGen
	old := a.unsubCollab
	a.unsubCollab = nil
	a.mu.Unlock()

	a.stop(old)
	a.logger.Debug("Retrying collaborative decks listener", zap.String("identity", identity))
	unsub := a.subscribeCollaborative(identity, gen, cgen)

	a.mu.Lock()
	if a.closed || a.generation != gen || a.collabGen != cgen {
		a.mu.Unlock()
		a.stop(unsub)
		return false
	}
	a.unsubCollab = unsub
	a.mu.Unlock()
	return true
}

func (a *AccessibleDecksAggregator) subscribeCollaborative(identity string, gen, cgen uint64) func() {
	return a.decks.SubscribeCollaborative(a.ctx, identity,
		func(decks []*models.Deck) { a.onCollab(gen, cgen, decks) },
		func(err error) { a.onCollabError(gen, cgen, err) })
}

// Follow tracks provider's identity until the returned function is called.
func (a *AccessibleDecksAggregator) Follow(provider IdentityProvider) func() {
	cancel := provider.OnIdentityChange(a.SetIdentity)
	a.SetIdentity(provider.CurrentIdentity())
	return cancel
}

// Close unsubscribes both listeners. Later calls do nothing.
func (a *AccessibleDecksAggregator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.generation++
	oldOwned, oldCollab := a.unsubOwned, a.unsubCollab
	a.unsubOwned, a.unsubCollab = nil, nil
	a.mu.Unlock()

	a.stop(oldOwned, oldCollab)
}

// Current returns the latest merged view.
func (a *AccessibleDecksAggregator) Current() AccessibleDecksView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.viewLocked()
}

// resetLocked switches to identity, clears derived state and hands back the
// previous unsubscribe functions for the caller to invoke.
func (a *AccessibleDecksAggregator) resetLocked(identity string) (func(), func()) {
	a.generation++
	oldOwned, oldCollab := a.unsubOwned, a.unsubCollab
	a.unsubOwned, a.unsubCollab = nil, nil
	a.identity = identity
	a.owned, a.collab = nil, nil
	a.ownedReady = false
	a.ownedErr, a.collabErr = nil, nil
	return oldOwned, oldCollab
}

func (a *AccessibleDecksAggregator) stop(fns ...func()) {
	for _, fn := range fns {
		if fn != nil {
			fn()
		}
	}
}

func (a *AccessibleDecksAggregator) onOwned(gen uint64, decks []*models.Deck) {
	a.update(gen, func() bool {
		a.owned = decks
		a.ownedReady = true
		a.ownedErr = nil
		return true
	})
}

func (a *AccessibleDecksAggregator) onOwnedError(gen uint64, err error) {
	a.update(gen, func() bool {
		a.logger.Error("Owned decks listener failed", zap.String("identity", a.identity), zap.Error(err))
		a.ownedErr = err
		return true
	})
}

func (a *AccessibleDecksAggregator) onCollab(gen, cgen uint64, decks []*models.Deck) {
	a.update(gen, func() bool {
		if cgen != a.collabGen {
			return false
		}
		a.collab = decks
		a.collabErr = nil
		return true
	})
}

func (a *AccessibleDecksAggregator) onCollabError(gen, cgen uint64, err error) {
	a.update(gen, func() bool {
		if cgen != a.collabGen {
			return false
		}
		a.logger.Warn("Collaborative decks listener failed, serving owned decks only",
			zap.String("identity", a.identity), zap.Error(err))
		a.collabErr = err
		return true
	})
}

// update applies fn if gen is still current and publishes the new view.
// fn returns false to drop a stale callback.
func (a *AccessibleDecksAggregator) update(gen uint64, fn func() bool) {
	a.mu.Lock()
	if a.closed || gen != a.generation || !fn() {
		a.mu.Unlock()
		return
	}
	v, view := a.snapshotLocked()
	a.mu.Unlock()

	a.publish(v, view)
}

func (a *AccessibleDecksAggregator) snapshotLocked() (uint64, AccessibleDecksView) {
	a.version++
	return a.version, a.viewLocked()
}

func (a *AccessibleDecksAggregator) viewLocked() AccessibleDecksView {
	return AccessibleDecksView{
		Identity:  a.identity,
		Decks:     MergeAccessibleDecks(a.identity, a.owned, a.collab),
		Loading:   a.identity != "" && !a.ownedReady && a.ownedErr == nil,
		Err:       a.ownedErr,
		CollabErr: a.collabErr,
	}
}

// publish delivers views in version order, dropping any that were overtaken.
func (a *AccessibleDecksAggregator) publish(version uint64, view AccessibleDecksView) {
	if a.onChange == nil {
		return
	}
	a.publishMu.Lock()
	defer a.publishMu.Unlock()
	if version <= a.published {
		return
	}
	a.published = version
	a.onChange(view)
}

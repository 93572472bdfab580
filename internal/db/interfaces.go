package db

import (
	"context"
	"iter"
	"time"

	"flashdeck-backend-go/internal/models"
)

// DocRef addresses a single document by collection path and document ID.
// Collection may be nested, e.g. "decks/{deckId}/cards".
type DocRef struct {
	Collection string
	ID         string
}

// Path returns the slash-separated document path.
func (r DocRef) Path() string {
	return r.Collection + "/" + r.ID
}

// Op is a query predicate operator.
type Op string

const (
	OpEqual Op = "=="
	OpIn    Op = "in" // field value is a member of a small fixed set
)

// Filter is a single query predicate. Path may address a key inside a map
// field using dots, e.g. "roles.<uid>".
type Filter struct {
	Path  string
	Op    Op
	Value any
}

// Query describes a compound query against one collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
}

// Where returns a copy of q with an additional predicate.
func (q Query) Where(path string, op Op, value any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Path: path, Op: op, Value: value})
	return q
}

// Order returns a copy of q ordered by path.
func (q Query) Order(path string, descending bool) Query {
	q.OrderBy = path
	q.Descending = descending
	return q
}

// Document is a raw store document.
type Document interface {
	Ref() DocRef
	Data() map[string]any
	// DataTo decodes the document into a struct using its `firestore` tags.
	DataTo(v any) error
}

// WriteBatch groups writes that are committed all-or-nothing.
type WriteBatch interface {
	Create(ref DocRef, fields map[string]any)
	// Update sets the given field paths on an existing document. A value of
	// DeleteField removes the field. Updating a missing document fails the batch.
	Update(ref DocRef, fields map[string]any)
	Delete(ref DocRef)
	// Len reports the number of queued writes.
	Len() int
	Commit(ctx context.Context) error
}

// DocumentStore is the document database the ordering and access layers run on.
type DocumentStore interface {
	Get(ctx context.Context, ref DocRef) (Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	// Documents iterates the results of q lazily.
	Documents(ctx context.Context, q Query) iter.Seq2[Document, error]
	// Subscribe starts a live query. onNext receives the complete result set on
	// every change; onError is called at most once, after which the listener is
	// dead. The returned function stops the listener and is safe to call repeatedly.
	Subscribe(ctx context.Context, q Query, onNext func([]Document), onError func(error)) (unsubscribe func())
	Batch() WriteBatch
	// NewID pre-generates a document ID for collection.
	NewID(collection string) string
	Close() error
}

type deleteFieldSentinel struct{}

// DeleteField, used as an Update value, removes the field.
var DeleteField any = deleteFieldSentinel{}

type opKind int

const (
	opCreate opKind = iota
	opUpdate
	opDelete
)

type writeOp struct {
	kind   opKind
	ref    DocRef
	fields map[string]any
}

// pendingWrites is the queue shared by both batch implementations.
type pendingWrites struct {
	ops []writeOp
}

func (p *pendingWrites) Create(ref DocRef, fields map[string]any) {
	p.ops = append(p.ops, writeOp{kind: opCreate, ref: ref, fields: fields})
}

func (p *pendingWrites) Update(ref DocRef, fields map[string]any) {
	p.ops = append(p.ops, writeOp{kind: opUpdate, ref: ref, fields: fields})
}

func (p *pendingWrites) Delete(ref DocRef) {
	p.ops = append(p.ops, writeOp{kind: opDelete, ref: ref})
}

func (p *pendingWrites) Len() int {
	return len(p.ops)
}

// DeckRepository reads decks and stages deck writes onto caller-owned batches.
type DeckRepository interface {
	GetByID(ctx context.Context, deckID string) (*models.Deck, error)
	ListOwned(ctx context.Context, ownerID string) ([]*models.Deck, error)
	ListCollaborative(ctx context.Context, uid string) ([]*models.Deck, error)
	// SubscribeOwned listens to decks owned by ownerID, newest update first.
	SubscribeOwned(ctx context.Context, ownerID string, onNext func([]*models.Deck), onError func(error)) (unsubscribe func())
	// SubscribeCollaborative listens to decks where uid holds a collaborator
	// role, newest update first. It needs a composite index on the backend.
	SubscribeCollaborative(ctx context.Context, uid string, onNext func([]*models.Deck), onError func(error)) (unsubscribe func())

	NewID() string
	StageCreate(b WriteBatch, deck *models.Deck)
	StageRename(b WriteBatch, deckID, title string, at time.Time)
	StageSetRole(b WriteBatch, deckID, uid string, role models.Role, at time.Time)
	StageRemoveRole(b WriteBatch, deckID, uid string, at time.Time)
	// StageTouch bumps updatedAt.
	StageTouch(b WriteBatch, deckID string, at time.Time)
	StageDelete(b WriteBatch, deckID string)
}

// CardRepository reads cards of a deck and stages card writes.
type CardRepository interface {
	GetByID(ctx context.Context, deckID, cardID string) (*models.Card, error)
	// ListByDeck returns every card of the deck, archived included, in display
	// order (orderIndex, then createdAt, then id).
	ListByDeck(ctx context.Context, deckID string) ([]*models.Card, error)

	NewID(deckID string) string
	StageCreate(b WriteBatch, card *models.Card)
	StageContent(b WriteBatch, deckID, cardID string, title, body *string, at time.Time)
	StageOrderIndex(b WriteBatch, deckID, cardID string, orderIndex int, at time.Time)
	StageFlag(b WriteBatch, deckID, cardID string, flag CardFlag, value bool, at time.Time)
	StageDelete(b WriteBatch, deckID, cardID string)
}

// SnapshotRepository reads order snapshots and stages snapshot writes.
type SnapshotRepository interface {
	GetByID(ctx context.Context, deckID, snapshotID string) (*models.OrderSnapshot, error)
	// List yields the deck's snapshots lazily, in no particular order.
	List(ctx context.Context, deckID string) iter.Seq2[*models.OrderSnapshot, error]

	NewID(deckID string) string
	StageCreate(b WriteBatch, snapshot *models.OrderSnapshot)
	StageRename(b WriteBatch, deckID, snapshotID, name string)
	StageDelete(b WriteBatch, deckID, snapshotID string)
}

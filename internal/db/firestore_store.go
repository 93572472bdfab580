package db

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements DocumentStore on Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreStore wraps an initialized Firestore client.
func NewFirestoreStore(client *firestore.Client, logger *zap.Logger) *FirestoreStore {
	if client == nil {
		log.Fatal("Firestore client is not initialized for FirestoreStore.")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FirestoreStore{client: client, logger: logger}
}

func (s *FirestoreStore) doc(ref DocRef) *firestore.DocumentRef {
	return s.client.Collection(ref.Collection).Doc(ref.ID)
}

func (s *FirestoreStore) query(q Query) firestore.Query {
	fq := s.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		fq = fq.Where(f.Path, string(f.Op), f.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Descending {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, dir)
	}
	return fq
}

func (s *FirestoreStore) Get(ctx context.Context, ref DocRef) (Document, error) {
	snap, err := s.doc(ref).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref.Path(), TranslateError(err))
	}
	return firestoreDocument{snap: snap}, nil
}

func (s *FirestoreStore) Query(ctx context.Context, q Query) ([]Document, error) {
	var docs []Document
	for doc, err := range s.Documents(ctx, q) {
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *FirestoreStore) Documents(ctx context.Context, q Query) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		it := s.query(q).Documents(ctx)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("query %s: %w", q.Collection, TranslateError(err)))
				return
			}
			if !yield(firestoreDocument{snap: snap}, nil) {
				return
			}
		}
	}
}

// Subscribe runs a snapshot listener in its own goroutine. Callbacks are
// serialized and never delivered once unsubscribe has returned, so a callback
// must not call unsubscribe itself.
func (s *FirestoreStore) Subscribe(ctx context.Context, q Query, onNext func([]Document), onError func(error)) func() {
	listenCtx, cancel := context.WithCancel(ctx)

	var (
		mu      sync.Mutex
		stopped bool
		once    sync.Once
	)
	unsubscribe := func() {
		once.Do(func() {
			mu.Lock()
			stopped = true
			mu.Unlock()
			cancel()
		})
	}
	deliver := func(fn func()) bool {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return false
		}
		fn()
		return true
	}

	go func() {
		it := s.query(q).Snapshots(listenCtx)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if listenCtx.Err() != nil || status.Code(err) == codes.Canceled {
					return
				}
				err = fmt.Errorf("listen %s: %w", q.Collection, TranslateError(err))
				deliver(func() { onError(err) })
				unsubscribe()
				return
			}
			snaps, err := snap.Documents.GetAll()
			if err != nil {
				err = fmt.Errorf("listen %s: %w", q.Collection, TranslateError(err))
				deliver(func() { onError(err) })
				unsubscribe()
				return
			}
			docs := make([]Document, 0, len(snaps))
			for _, ds := range snaps {
				docs = append(docs, firestoreDocument{snap: ds})
			}
			if !deliver(func() { onNext(docs) }) {
				return
			}
		}
	}()

	return unsubscribe
}

func (s *FirestoreStore) Batch() WriteBatch {
	return &firestoreBatch{store: s}
}

func (s *FirestoreStore) NewID(collection string) string {
	return s.client.Collection(collection).NewDoc().ID
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// firestoreBatch commits through a single-attempt transaction so that a
// failed commit is reported instead of silently retried.
type firestoreBatch struct {
	pendingWrites
	store *FirestoreStore
}

func (b *firestoreBatch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	err := b.store.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, op := range b.ops {
			ref := b.store.doc(op.ref)
			var err error
			switch op.kind {
			case opCreate:
				err = tx.Create(ref, op.fields)
			case opUpdate:
				err = tx.Update(ref, firestoreUpdates(op.fields))
			case opDelete:
				err = tx.Delete(ref)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", op.ref.Path(), err)
			}
		}
		return nil
	}, firestore.MaxAttempts(1))
	if err != nil {
		return fmt.Errorf("commit %d writes: %w", len(b.ops), TranslateError(err))
	}
	b.store.logger.Debug("Batch committed", zap.Int("writes", len(b.ops)))
	return nil
}

func firestoreUpdates(fields map[string]any) []firestore.Update {
	paths := make([]string, 0, len(fields))
	for path := range fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	updates := make([]firestore.Update, 0, len(paths))
	for _, path := range paths {
		value := fields[path]
		if value == DeleteField {
			value = firestore.Delete
		}
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}
	return updates
}

type firestoreDocument struct {
	snap *firestore.DocumentSnapshot
}

func (d firestoreDocument) Ref() DocRef {
	return DocRef{
		Collection: relativePath(d.snap.Ref.Parent.Path),
		ID:         d.snap.Ref.ID,
	}
}

func (d firestoreDocument) Data() map[string]any {
	return d.snap.Data()
}

func (d firestoreDocument) DataTo(v any) error {
	return d.snap.DataTo(v)
}

// relativePath strips the "projects/p/databases/d/documents/" prefix.
func relativePath(full string) string {
	const marker = "/documents/"
	if i := strings.Index(full, marker); i >= 0 {
		return full[i+len(marker):]
	}
	return full
}

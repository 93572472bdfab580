package db

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MemoryStore is an in-process DocumentStore. It backs STORE_BACKEND=memory
// and serves as the store double in tests: batches are atomic, live queries
// are re-evaluated after every commit, and faults can be injected.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	subs        map[int]*memorySubscription
	nextSubID   int
	commitErrs  []error
	queryFault  func(Query) error
	commits     int
	writes      int
	logger      *zap.Logger
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
		subs:        make(map[int]*memorySubscription),
		logger:      logger,
	}
}

type memorySubscription struct {
	q       Query
	onNext  func([]Document)
	onError func(error)
	active  bool

	deliverMu sync.Mutex
	seq       int // guarded by MemoryStore.mu
	delivered int // guarded by deliverMu

	stopOnce sync.Once
	done     chan struct{}
}

func (sub *memorySubscription) stop() {
	sub.stopOnce.Do(func() { close(sub.done) })
}

// Seed writes a document directly, bypassing batches, counters and listeners.
func (s *MemoryStore) Seed(ref DocRef, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collections[ref.Collection]
	if coll == nil {
		coll = make(map[string]map[string]any)
		s.collections[ref.Collection] = coll
	}
	coll[ref.ID] = cloneFields(fields)
}

// FailNextCommit makes the next Commit fail with err without applying any write.
// Calls queue up.
func (s *MemoryStore) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErrs = append(s.commitErrs, err)
}

// SetQueryFault installs a hook consulted by Query, Documents and Subscribe.
// A non-nil error from fault fails the call (or the listener) with it.
func (s *MemoryStore) SetQueryFault(fault func(Query) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryFault = fault
}

// FailSubscriptions kills every active listener whose query matches, invoking
// its onError with err. It returns the number of listeners failed.
func (s *MemoryStore) FailSubscriptions(match func(Query) bool, err error) int {
	s.mu.Lock()
	var failed []*memorySubscription
	for id, sub := range s.subs {
		if match(sub.q) {
			sub.active = false
			delete(s.subs, id)
			failed = append(failed, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range failed {
		sub.onError(fmt.Errorf("listen %s: %w", sub.q.Collection, err))
		sub.stop()
	}
	return len(failed)
}

// Commits reports the number of successful non-empty commits.
func (s *MemoryStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// Writes reports the number of document writes applied by successful commits.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// ActiveSubscriptions reports the number of live listeners.
func (s *MemoryStore) ActiveSubscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *MemoryStore) Get(ctx context.Context, ref DocRef) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.collections[ref.Collection][ref.ID]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", ref.Path(), ErrNotFound)
	}
	return memoryDocument{ref: ref, data: cloneFields(data)}, nil
}

func (s *MemoryStore) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryFault != nil {
		if err := s.queryFault(q); err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Collection, err)
		}
	}
	return s.evaluate(q), nil
}

func (s *MemoryStore) Documents(ctx context.Context, q Query) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		docs, err := s.Query(ctx, q)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, doc := range docs {
			if !yield(doc, nil) {
				return
			}
		}
	}
}

// Subscribe delivers the initial result set before returning. Later results
// are delivered synchronously by the committing goroutine, outside the store lock.
func (s *MemoryStore) Subscribe(ctx context.Context, q Query, onNext func([]Document), onError func(error)) func() {
	s.mu.Lock()
	if s.queryFault != nil {
		if err := s.queryFault(q); err != nil {
			s.mu.Unlock()
			onError(fmt.Errorf("listen %s: %w", q.Collection, err))
			return func() {}
		}
	}
	s.nextSubID++
	id := s.nextSubID
	sub := &memorySubscription{
		q:       q,
		onNext:  onNext,
		onError: onError,
		active:  true,
		done:    make(chan struct{}),
	}
	s.subs[id] = sub
	sub.seq++
	seq, docs := sub.seq, s.evaluate(q)
	s.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			sub.active = false
			delete(s.subs, id)
			s.mu.Unlock()
			sub.stop()
		})
	}
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				unsubscribe()
			case <-sub.done:
			}
		}()
	}

	s.deliver(sub, seq, docs)
	return unsubscribe
}

func (s *MemoryStore) deliver(sub *memorySubscription, seq int, docs []Document) {
	sub.deliverMu.Lock()
	defer sub.deliverMu.Unlock()
	if seq <= sub.delivered {
		return
	}
	s.mu.Lock()
	active := sub.active
	s.mu.Unlock()
	if !active {
		return
	}
	sub.delivered = seq
	sub.onNext(docs)
}

func (s *MemoryStore) Batch() WriteBatch {
	return &memoryBatch{store: s}
}

func (s *MemoryStore) NewID(string) string {
	return uuid.NewString()
}

// Close drops every live listener.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[int]*memorySubscription)
	for _, sub := range subs {
		sub.active = false
	}
	s.mu.Unlock()
	for _, sub := range subs {
		sub.stop()
	}
	return nil
}

type memoryBatch struct {
	pendingWrites
	store *MemoryStore
}

func (b *memoryBatch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.store.commit(b.ops)
}

type memoryPush struct {
	sub  *memorySubscription
	seq  int
	docs []Document
}

func (s *MemoryStore) commit(ops []writeOp) error {
	s.mu.Lock()
	if len(s.commitErrs) > 0 {
		err := s.commitErrs[0]
		s.commitErrs = s.commitErrs[1:]
		s.mu.Unlock()
		return fmt.Errorf("commit %d writes: %w", len(ops), err)
	}
	if len(ops) == 0 {
		s.mu.Unlock()
		return nil
	}

	// Stage every write first so a failing op leaves the store untouched.
	staged := make(map[DocRef]map[string]any) // nil marks a delete
	current := func(ref DocRef) (map[string]any, bool) {
		if doc, ok := staged[ref]; ok {
			return doc, doc != nil
		}
		doc, ok := s.collections[ref.Collection][ref.ID]
		return doc, ok
	}
	for _, op := range ops {
		switch op.kind {
		case opCreate:
			if _, exists := current(op.ref); exists {
				s.mu.Unlock()
				return fmt.Errorf("create %s: %w", op.ref.Path(), ErrAlreadyExists)
			}
			staged[op.ref] = cloneFields(op.fields)
		case opUpdate:
			doc, exists := current(op.ref)
			if !exists {
				s.mu.Unlock()
				return fmt.Errorf("update %s: %w", op.ref.Path(), ErrNotFound)
			}
			next := cloneFields(doc)
			for path, value := range op.fields {
				setPath(next, path, value)
			}
			staged[op.ref] = next
		case opDelete:
			staged[op.ref] = nil
		}
	}

	touched := make(map[string]bool)
	for ref, doc := range staged {
		touched[ref.Collection] = true
		if doc == nil {
			delete(s.collections[ref.Collection], ref.ID)
			continue
		}
		coll := s.collections[ref.Collection]
		if coll == nil {
			coll = make(map[string]map[string]any)
			s.collections[ref.Collection] = coll
		}
		coll[ref.ID] = doc
	}
	s.commits++
	s.writes += len(ops)

	var pushes []memoryPush
	for _, sub := range s.subs {
		if !touched[sub.q.Collection] {
			continue
		}
		sub.seq++
		pushes = append(pushes, memoryPush{sub: sub, seq: sub.seq, docs: s.evaluate(sub.q)})
	}
	s.mu.Unlock()

	s.logger.Debug("Batch committed", zap.Int("writes", len(ops)), zap.Int("listeners", len(pushes)))
	for _, p := range pushes {
		s.deliver(p.sub, p.seq, p.docs)
	}
	return nil
}

// evaluate runs q against the current data. Caller holds s.mu.
func (s *MemoryStore) evaluate(q Query) []Document {
	var matched []memoryDocument
	for id, data := range s.collections[q.Collection] {
		if !matchesFilters(data, q.Filters) {
			continue
		}
		// Like Firestore, ordering by a field excludes documents without it.
		if q.OrderBy != "" {
			if _, ok := lookupPath(data, q.OrderBy); !ok {
				continue
			}
		}
		matched = append(matched, memoryDocument{
			ref:  DocRef{Collection: q.Collection, ID: id},
			data: cloneFields(data),
		})
	}

	sort.Slice(matched, func(i, j int) bool {
		if q.OrderBy != "" {
			a, _ := lookupPath(matched[i].data, q.OrderBy)
			b, _ := lookupPath(matched[j].data, q.OrderBy)
			if c := compareValues(a, b); c != 0 {
				if q.Descending {
					return c > 0
				}
				return c < 0
			}
			if q.Descending {
				return matched[i].ref.ID > matched[j].ref.ID
			}
		}
		return matched[i].ref.ID < matched[j].ref.ID
	})

	docs := make([]Document, len(matched))
	for i, d := range matched {
		docs[i] = d
	}
	return docs
}

func matchesFilters(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		value, ok := lookupPath(data, f.Path)
		if !ok {
			return false
		}
		switch f.Op {
		case OpEqual:
			if !equalValues(value, f.Value) {
				return false
			}
		case OpIn:
			set := reflect.ValueOf(f.Value)
			if set.Kind() != reflect.Slice && set.Kind() != reflect.Array {
				return false
			}
			found := false
			for i := 0; i < set.Len(); i++ {
				if equalValues(value, set.Index(i).Interface()) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func lookupPath(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = data
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func setPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	m := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			if value == DeleteField {
				return
			}
			next = make(map[string]any)
			m[part] = next
		}
		m = next
	}
	leaf := parts[len(parts)-1]
	if value == DeleteField {
		delete(m, leaf)
		return
	}
	m[leaf] = normalizeValue(value)
}

func equalValues(a, b any) bool {
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !ra.IsValid() || !rb.IsValid() {
		return !ra.IsValid() && !rb.IsValid()
	}
	if ra.Kind() == reflect.String && rb.Kind() == reflect.String {
		return ra.String() == rb.String()
	}
	if ia, ok := toInt64(ra); ok {
		if ib, ok := toInt64(rb); ok {
			return ia == ib
		}
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func compareValues(a, b any) int {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ia, ok := toInt64(ra); ok {
		if ib, ok := toInt64(rb); ok {
			switch {
			case ia < ib:
				return -1
			case ia > ib:
				return 1
			}
			return 0
		}
	}
	if ra.IsValid() && rb.IsValid() && ra.Kind() == reflect.String && rb.Kind() == reflect.String {
		return strings.Compare(ra.String(), rb.String())
	}
	return 0
}

func toInt64(v reflect.Value) (int64, bool) {
	if !v.IsValid() {
		return 0, false
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(v.Uint()), true
	}
	return 0, false
}

// normalizeValue deep-copies a field value into the shapes Firestore hands
// back: string-keyed maps become map[string]any, named strings plain strings
// and integers int64.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeValue(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		it := rv.MapRange()
		for it.Next() {
			out[it.Key().String()] = normalizeValue(it.Value().Interface())
		}
		return out
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(out, rv)
		return out.Interface()
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	}
	return v
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = normalizeValue(v)
	}
	return out
}

type memoryDocument struct {
	ref  DocRef
	data map[string]any
}

func (d memoryDocument) Ref() DocRef {
	return d.ref
}

func (d memoryDocument) Data() map[string]any {
	return cloneFields(d.data)
}

// DataTo decodes using the same `firestore` struct tags the Firestore client reads.
func (d memoryDocument) DataTo(v any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "firestore",
		Result:  v,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(d.data); err != nil {
		return fmt.Errorf("decode %s: %w", d.ref.Path(), err)
	}
	return nil
}

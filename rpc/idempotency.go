package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
	"lukechampine.com/blake3"
)

const (
	headerIdempotency      = "Idempotency-Key"
	headerIdempotencyCache = "X-Idempotency-Cache"

	defaultIdempotencyTTL = 24 * time.Hour
)

var bucketIdempotency = []byte("idempotency")

// IdempotencyRecord is the cached outcome of a successful write.
type IdempotencyRecord struct {
	ParamsDigest string          `json:"paramsDigest"`
	Result       json.RawMessage `json:"result"`
	StoredAt     time.Time       `json:"storedAt"`
	ExpiresAt    time.Time       `json:"expiresAt"`
}

// IdempotencyStore persists write results keyed by the caller's
// Idempotency-Key so retried requests replay instead of re-executing.
type IdempotencyStore struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

// OpenIdempotencyStore opens (or creates) the Bolt file at path and drops
// records that expired while the daemon was down.
func OpenIdempotencyStore(path string, ttl time.Duration) (*IdempotencyStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc: idempotency store path required")
	}
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketIdempotency)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	store := &IdempotencyStore{db: db, ttl: ttl, now: time.Now}
	if _, err := store.Prune(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying Bolt handle.
func (s *IdempotencyStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the live record for key. Expired records are deleted.
func (s *IdempotencyStore) Get(key string) (IdempotencyRecord, bool, error) {
	var (
		record IdempotencyRecord
		found  bool
	)
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketIdempotency)
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &record); err != nil {
			return err
		}
		if s.now().After(record.ExpiresAt) {
			record = IdempotencyRecord{}
			return bucket.Delete([]byte(key))
		}
		found = true
		return nil
	})
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return record, found, nil
}

// Put stores record under key, stamping its lifetime.
func (s *IdempotencyStore) Put(key string, record IdempotencyRecord) error {
	record.StoredAt = s.now()
	record.ExpiresAt = record.StoredAt.Add(s.ttl)
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIdempotency).Put([]byte(key), payload)
	})
}

// Prune deletes every expired record and reports how many were removed.
func (s *IdempotencyStore) Prune() (int, error) {
	removed := 0
	now := s.now()
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketIdempotency)
		var stale [][]byte
		if err := bucket.ForEach(func(k, v []byte) error {
			var record IdempotencyRecord
			if err := json.Unmarshal(v, &record); err != nil || now.After(record.ExpiresAt) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

// idempotencyKey scopes a client key to the credential and method that used
// it. The bearer token is hashed, never stored.
func idempotencyKey(authorization, method, key string) string {
	sum := blake3.Sum256([]byte(authorization + "\x00" + method + "\x00" + key))
	return hex.EncodeToString(sum[:])
}

func paramsDigest(params []json.RawMessage) string {
	h := blake3.New(32, nil)
	for _, p := range params {
		_, _ = h.Write(p)
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// dispatchIdempotent runs a write at most once per Idempotency-Key. A replay
// with different params is rejected; failures are not cached.
func (s *Server) dispatchIdempotent(w http.ResponseWriter, r *http.Request, m method, req *RPCRequest, clientKey string) (interface{}, *RPCError) {
	authorization := r.Header.Get("Authorization")
	if m.scope != "" {
		if _, authErr := s.auth.requireScope(r, m.scope); authErr != nil {
			return nil, authErr
		}
	} else if authorization != "" {
		if _, authErr := s.auth.authenticate(r); authErr != nil {
			return nil, authErr
		}
	}
	key := idempotencyKey(authorization, req.Method, clientKey)
	digest := paramsDigest(req.Params)

	s.idemMu.Lock()
	defer s.idemMu.Unlock()

	record, found, err := s.idempotency.Get(key)
	if err != nil {
		s.logger.Warn("idempotency lookup failed", slog.String("method", req.Method), slog.Any("error", err))
	} else if found {
		if record.ParamsDigest != digest {
			return nil, &RPCError{
				Code:    codeIdempotencyConflict,
				Message: "idempotency key reused with different params",
				status:  http.StatusConflict,
			}
		}
		w.Header().Set(headerIdempotencyCache, "hit")
		return record.Result, nil
	}

	result, rpcErr := s.dispatch(r, m, req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	encoded, err := json.Marshal(result)
	if err == nil {
		err = s.idempotency.Put(key, IdempotencyRecord{ParamsDigest: digest, Result: encoded})
	}
	if err != nil {
		s.logger.Warn("idempotency record not stored", slog.String("method", req.Method), slog.Any("error", err))
	}
	w.Header().Set(headerIdempotencyCache, "miss")
	return result, nil
}

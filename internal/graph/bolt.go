// Package graph keeps a clause graph projection in a bbolt file: one node per clause,
// keyed by clause ID, with a per-tender index.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hyperjump/tenderwise/internal/models"
)

var (
	bucketNodes    = []byte("clauses")
	bucketByTender = []byte("tender_clauses")
)

// sep separates tender ID and clause ID in index keys.
const sep = 0x00

// Store is a bbolt-backed graph projection.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the graph file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create graph dir: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketNodes, bucketByTender} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init graph buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func tenderKey(tenderID, clauseID string) []byte {
	k := make([]byte, 0, len(tenderID)+1+len(clauseID))
	k = append(k, tenderID...)
	k = append(k, sep)
	return append(k, clauseID...)
}

// UpsertClause writes the node, replacing any node with the same clause ID.
func (s *Store) UpsertClause(ctx context.Context, node *models.GraphNode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if node == nil || node.ClauseID == "" {
		return fmt.Errorf("%w: clause id is required", models.ErrValidation)
	}
	if node.UpdatedAt.IsZero() {
		node.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("encode node: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		nodes := tx.Bucket(bucketNodes)
		idx := tx.Bucket(bucketByTender)
		if prev := nodes.Get([]byte(node.ClauseID)); prev != nil {
			var old models.GraphNode
			if err := json.Unmarshal(prev, &old); err == nil && old.TenderID != node.TenderID {
				if err := idx.Delete(tenderKey(old.TenderID, old.ClauseID)); err != nil {
					return err
				}
			}
		}
		if err := nodes.Put([]byte(node.ClauseID), data); err != nil {
			return err
		}
		return idx.Put(tenderKey(node.TenderID, node.ClauseID), nil)
	})
}

// Get returns the node for clauseID, or models.ErrNotFound.
func (s *Store) Get(ctx context.Context, clauseID string) (*models.GraphNode, error) {
	var node *models.GraphNode
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketNodes).Get([]byte(clauseID))
		if data == nil {
			return fmt.Errorf("clause %q: %w", clauseID, models.ErrNotFound)
		}
		node = new(models.GraphNode)
		return json.Unmarshal(data, node)
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// ClausesByTender returns the tender's nodes ordered by clause ID.
func (s *Store) ClausesByTender(ctx context.Context, tenderID string) ([]*models.GraphNode, error) {
	var out []*models.GraphNode
	prefix := tenderKey(tenderID, "")
	err := s.db.View(func(tx *bolt.Tx) error {
		nodes := tx.Bucket(bucketNodes)
		c := tx.Bucket(bucketByTender).Cursor()
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			data := nodes.Get(k[len(prefix):])
			if data == nil {
				continue
			}
			var n models.GraphNode
			if err := json.Unmarshal(data, &n); err != nil {
				return fmt.Errorf("decode node: %w", err)
			}
			out = append(out, &n)
		}
		return nil
	})
	return out, err
}

// Count returns the number of nodes.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketNodes).Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the underlying file.
func (s *Store) Close() error {
	return s.db.Close()
}

func hasPrefix(k, prefix []byte) bool {
	return len(k) >= len(prefix) && string(k[:len(prefix)]) == string(prefix)
}

package memory

import (
	"context"

	"github.com/memvault/memvault/pkg/crypto"
	"github.com/memvault/memvault/pkg/errors"
	"github.com/memvault/memvault/pkg/log"
)

// EncryptedStore decorates a Store so content is sealed before it reaches
// the adapter and opened on the way back out. IDs, labels, sources and
// embeddings stay in the clear so filtering and vector search keep working.
//
// Records that cannot be opened (wrong key, corrupt blob) are skipped on
// Scan and reported as a storage error on Get.
type EncryptedStore struct {
	inner  Store
	cipher *crypto.Cipher
}

// EncryptedVectorStore is an EncryptedStore over a vector-capable adapter.
type EncryptedVectorStore struct {
	EncryptedStore
	innerVec VectorStore
}

// NewEncrypted wraps a store with content encryption. When the inner store
// supports vector search the wrapper does too. A disabled cipher makes the
// wrapper a transparent passthrough.
func NewEncrypted(inner Store, cipher *crypto.Cipher) Store {
	es := EncryptedStore{inner: inner, cipher: cipher}
	if vs, ok := inner.(VectorStore); ok {
		return &EncryptedVectorStore{EncryptedStore: es, innerVec: vs}
	}
	return &es
}

func (s *EncryptedStore) Insert(ctx context.Context, record Record) error {
	sealed, err := s.cipher.Seal(record.Content)
	if err != nil {
		return errors.Wrap(err, errors.ErrStorage)
	}
	record.Content = sealed
	return s.inner.Insert(ctx, record)
}

func (s *EncryptedStore) Get(ctx context.Context, id string) (Record, error) {
	record, err := s.inner.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	opened, err := s.cipher.Open(record.Content)
	if err != nil {
		return Record{}, errors.Wrap(err, errors.ErrStorage)
	}
	record.Content = opened
	return record, nil
}

func (s *EncryptedStore) Delete(ctx context.Context, id string) (bool, error) {
	return s.inner.Delete(ctx, id)
}

func (s *EncryptedStore) UpdateLabels(ctx context.Context, id string, labels []string) error {
	return s.inner.UpdateLabels(ctx, id, labels)
}

func (s *EncryptedStore) Scan(ctx context.Context, query ScanQuery) ([]Record, error) {
	records, err := s.inner.Scan(ctx, query)
	if err != nil {
		return nil, err
	}
	out := records[:0]
	for _, record := range records {
		opened, err := s.cipher.Open(record.Content)
		if err != nil {
			log.Warn("Skipping undecryptable record", "id", record.ID, "error", err)
			continue
		}
		record.Content = opened
		out = append(out, record)
	}
	return out, nil
}

func (s *EncryptedStore) Close() error {
	return s.inner.Close()
}

// Nearest opens the content of each neighbor, dropping any it cannot open.
func (s *EncryptedVectorStore) Nearest(ctx context.Context, namespace string, embedding []float32, limit int) ([]Neighbor, error) {
	neighbors, err := s.innerVec.Nearest(ctx, namespace, embedding, limit)
	if err != nil {
		return nil, err
	}
	out := neighbors[:0]
	for _, n := range neighbors {
		opened, err := s.cipher.Open(n.Record.Content)
		if err != nil {
			log.Warn("Skipping undecryptable record", "id", n.Record.ID, "error", err)
			continue
		}
		n.Record.Content = opened
		out = append(out, n)
	}
	return out, nil
}

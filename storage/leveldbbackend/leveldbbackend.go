// Package leveldbbackend is a dagsync.Backend backed by a LevelDB database,
// the durable counterpart to storage/membackend. It is a thin wrapper
// around the LevelDB handle in the same style as
// database/ffldb/ldb.LevelDBCursor: small, pkg/errors-wrapped methods with
// no transaction machinery beyond what LevelDB itself provides.
package leveldbbackend

import (
	"context"
	"encoding/json"

	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/btcsuite/goleveldb/leveldb/opt"
	"github.com/btcsuite/goleveldb/leveldb/util"
	"github.com/kaspanet/dagsync/domain/consensus/model/externalapi"
	"github.com/kaspanet/dagsync/domain/dagsync"
	"github.com/kaspanet/dagsync/logger"
	"github.com/pkg/errors"
)

var log, _ = logger.Get(logger.SubsystemTags.STOR)

var (
	blockBucket       = []byte("blocks-")
	childBucket       = []byte("children-")
	justificationsKey = []byte("justifications")
)

// ValidateFunc decides whether a newly admitted summary is acceptable. A
// nil ValidateFunc accepts everything.
type ValidateFunc func(summary *dagsync.BlockSummary) error

// Backend is a dagsync.Backend over a single LevelDB database.
type Backend struct {
	db       *leveldb.DB
	validate ValidateFunc
}

// Open opens (creating if necessary) the LevelDB database at path and
// returns a Backend over it. dbPath follows the same on-disk layout
// conventions as database/ffldb: one directory per store, managed
// entirely by the caller's choice of path.
func Open(dbPath string, validate ValidateFunc) (*Backend, error) {
	db, err := leveldb.OpenFile(dbPath, &opt.Options{ErrorIfMissing: false})
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb database at %s", dbPath)
	}
	return &Backend{db: db, validate: validate}, nil
}

// Close releases the underlying LevelDB handle.
func (b *Backend) Close() error {
	return errors.WithStack(b.db.Close())
}

func blockKey(hash *externalapi.DomainHash) []byte {
	return append(append([]byte{}, blockBucket...), hash[:]...)
}

func childKey(parent, child *externalapi.DomainHash) []byte {
	key := append(append([]byte{}, childBucket...), parent[:]...)
	return append(key, child[:]...)
}

// storedSummary is the JSON shape persisted for each admitted block. Ranks
// are stored as plain decimal text via encoding/json rather than a packed
// binary layout - dagsync's write volume doesn't justify a custom codec
// the way the wire protocol's appmessage types do.
type storedSummary struct {
	ParentHashes   []externalapi.DomainHash `json:"parentHashes"`
	Justifications []externalapi.DomainHash `json:"justifications,omitempty"`
	Rank           uint64                   `json:"rank"`
}

// Admit persists summary and the parent/child edges it introduces. Callers
// are expected to call Admit, in topological order, for every summary a
// Syncer.SyncDag call returned (mirroring storage/membackend.Backend.Admit).
func (b *Backend) Admit(summary *dagsync.BlockSummary) error {
	if summary.BlockHash == nil {
		return errors.New("cannot admit a summary with no block hash")
	}

	stored := storedSummary{Rank: summary.Header.Rank}
	for _, p := range summary.ParentHashes {
		stored.ParentHashes = append(stored.ParentHashes, *p)
	}
	for _, j := range summary.Justifications {
		stored.Justifications = append(stored.Justifications, *j.LatestBlockHash)
	}

	encoded, err := json.Marshal(stored)
	if err != nil {
		return errors.Wrap(err, "encoding block summary")
	}

	batch := new(leveldb.Batch)
	batch.Put(blockKey(summary.BlockHash), encoded)
	for _, parent := range summary.ParentHashes {
		batch.Put(childKey(parent, summary.BlockHash), []byte{1})
	}
	if err := b.db.Write(batch, nil); err != nil {
		return errors.Wrap(err, "writing admitted block")
	}
	log.Tracef("admitted block %s at rank %d", summary.BlockHash, summary.Header.Rank)
	return nil
}

// Get reconstructs the BlockSummary admitted for hash, if any. It's used to
// serve ancestors to other peers (see cmd/dagsyncd's jsonpeer.Producer),
// not by dagsync.Syncer itself.
func (b *Backend) Get(hash *externalapi.DomainHash) (*dagsync.BlockSummary, bool, error) {
	data, err := b.db.Get(blockKey(hash), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "reading admitted block")
	}

	var stored storedSummary
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, false, errors.Wrap(err, "decoding admitted block")
	}

	summary := &dagsync.BlockSummary{
		BlockHash: hash,
		Header:    &dagsync.BlockHeader{Rank: stored.Rank},
	}
	for i := range stored.ParentHashes {
		summary.ParentHashes = append(summary.ParentHashes, &stored.ParentHashes[i])
	}
	for i := range stored.Justifications {
		summary.Justifications = append(summary.Justifications,
			&dagsync.BlockJustification{LatestBlockHash: &stored.Justifications[i]})
	}
	return summary, true, nil
}

// Tips implements dagsync.Backend: every admitted block with no recorded
// child edge.
func (b *Backend) Tips(ctx context.Context) ([]*externalapi.DomainHash, error) {
	var tips []*externalapi.DomainHash

	iter := b.db.NewIterator(util.BytesPrefix(blockBucket), nil)
	defer iter.Release()
	for iter.Next() {
		var hash externalapi.DomainHash
		copy(hash[:], iter.Key()[len(blockBucket):])

		hasChild := false
		childIter := b.db.NewIterator(util.BytesPrefix(append(append([]byte{}, childBucket...), hash[:]...)), nil)
		hasChild = childIter.Next()
		childIter.Release()

		if !hasChild {
			hashCopy := hash
			tips = append(tips, &hashCopy)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "iterating admitted blocks")
	}
	return tips, nil
}

// Justifications implements dagsync.Backend.
func (b *Backend) Justifications(ctx context.Context) ([]*externalapi.DomainHash, error) {
	data, err := b.db.Get(justificationsKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading stored justifications")
	}

	var hashes []externalapi.DomainHash
	if err := json.Unmarshal(data, &hashes); err != nil {
		return nil, errors.Wrap(err, "decoding stored justifications")
	}
	out := make([]*externalapi.DomainHash, len(hashes))
	for i := range hashes {
		out[i] = &hashes[i]
	}
	return out, nil
}

// SetJustifications overwrites the backend's justification set,
// e.g. after a pruning-point move.
func (b *Backend) SetJustifications(hashes []*externalapi.DomainHash) error {
	flat := make([]externalapi.DomainHash, len(hashes))
	for i, h := range hashes {
		flat[i] = *h
	}
	encoded, err := json.Marshal(flat)
	if err != nil {
		return errors.Wrap(err, "encoding justifications")
	}
	return errors.Wrap(b.db.Put(justificationsKey, encoded, nil), "writing justifications")
}

// Validate implements dagsync.Backend.
func (b *Backend) Validate(ctx context.Context, summary *dagsync.BlockSummary) error {
	if b.validate == nil {
		return nil
	}
	return b.validate(summary)
}

// NotInDAG implements dagsync.Backend.
func (b *Backend) NotInDAG(ctx context.Context, hash *externalapi.DomainHash) (bool, error) {
	has, err := b.db.Has(blockKey(hash), nil)
	if err != nil {
		return false, errors.Wrap(err, "checking block membership")
	}
	return !has, nil
}

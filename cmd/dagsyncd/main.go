// Command dagsyncd is a minimal daemon wiring dagsync.Syncer to a leveldb
// backend and a jsonpeer transport - the demo binary the rest of the
// module's packages exist to support, in the spirit of cmd/addsubnetwork's
// one-shot command-line tools.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"

	"github.com/kaspanet/dagsync/domain/consensus/model/externalapi"
	"github.com/kaspanet/dagsync/domain/dagsync"
	"github.com/kaspanet/dagsync/logger"
	"github.com/kaspanet/dagsync/storage/leveldbbackend"
	"github.com/kaspanet/dagsync/transport/jsonpeer"
	"github.com/pkg/errors"
)

var log, _ = logger.Get(logger.SubsystemTags.DSCD)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger.InitLogRotators(cfg.LogFile, cfg.ErrLogFile)
	logger.SetLogLevels(cfg.LogLevel)

	store, err := leveldbbackend.Open(cfg.DataDir, nil)
	if err != nil {
		return errors.Wrap(err, "opening data directory")
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if cfg.ListenAddr != "" {
		server, err := jsonpeer.Listen(cfg.ListenAddr, ancestorProducer(store))
		if err != nil {
			return errors.Wrap(err, "starting listener")
		}
		defer server.Close()

		go func() {
			if err := server.Serve(ctx); err != nil && ctx.Err() == nil {
				log.Errorf("serving ancestor streams: %s", err)
			}
		}()
		log.Infof("serving ancestor streams on %s", server.Addr())
	}

	if cfg.PeerAddr == "" {
		log.Infof("no --peer given, running as a server only")
		<-ctx.Done()
		return nil
	}

	targets, err := parseTargets(cfg.Targets)
	if err != nil {
		return err
	}

	syncer, err := dagsync.New(store, dagsync.Config{
		MaxPossibleDepth:         cfg.MaxPossibleDepth,
		MaxBranchingFactor:       cfg.MaxBranchingFactor,
		MaxDepthAncestorsRequest: cfg.MaxDepthAncestorsRequest,
	})
	if err != nil {
		return errors.Wrap(err, "constructing syncer")
	}

	peer := jsonpeer.NewPeer(cfg.PeerAddr)
	summaries, err := syncer.SyncDag(ctx, dagsync.PeerID(cfg.PeerAddr), peer, targets)
	if err != nil {
		return errors.Wrap(err, "syncing dag")
	}

	for _, summary := range summaries {
		if err := store.Admit(summary); err != nil {
			return errors.Wrapf(err, "admitting block %s", summary.BlockHash)
		}
	}
	log.Infof("admitted %d block(s) from %s", len(summaries), cfg.PeerAddr)
	return nil
}

func parseTargets(hexHashes []string) ([]*externalapi.DomainHash, error) {
	targets := make([]*externalapi.DomainHash, len(hexHashes))
	for i, h := range hexHashes {
		raw, err := hex.DecodeString(h)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding target hash %q", h)
		}
		if len(raw) != externalapi.DomainHashSize {
			return nil, errors.Errorf("target hash %q is not %d bytes", h, externalapi.DomainHashSize)
		}
		var hash externalapi.DomainHash
		copy(hash[:], raw)
		targets[i] = &hash
	}
	return targets, nil
}

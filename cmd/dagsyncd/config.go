package main

import (
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	defaultMaxPossibleDepth         = 2_000
	defaultMaxBranchingFactor       = 8.0
	defaultMaxDepthAncestorsRequest = 500
	defaultLogFilename              = "dagsyncd.log"
	defaultErrLogFilename           = "dagsyncd_err.log"
	defaultDataDirname              = "data"
)

// config holds every flag dagsyncd accepts, in the same shape
// cmd/addsubnetwork/config.go builds one: a single flags-tagged struct
// parsed by go-flags, validated once, and handed to the rest of main.
type config struct {
	AppDir    string `long:"appdir" description:"Directory to store data"`
	PeerAddr  string `long:"peer" description:"host:port of the peer to sync from"`
	ListenAddr string `long:"listen" description:"host:port to serve ancestor streams on"`
	LogLevel  string `long:"loglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical}" default:"info"`

	MaxPossibleDepth         int     `long:"maxdepth" description:"Maximum accepted parent-depth of a single sync call"`
	MaxBranchingFactor       float64 `long:"maxbranching" description:"Maximum accepted per-rank population growth ratio"`
	MaxDepthAncestorsRequest int     `long:"maxancestorrequest" description:"Maximum hops requested from the peer per ancestor stream"`
	Targets                  []string `long:"target" description:"Hex-encoded hash to fetch ancestors of; repeatable. Required with --peer."`

	DataDir string
	LogFile string
	ErrLogFile string
}

func loadConfig() (*config, error) {
	cfg := &config{
		MaxPossibleDepth:         defaultMaxPossibleDepth,
		MaxBranchingFactor:       defaultMaxBranchingFactor,
		MaxDepthAncestorsRequest: defaultMaxDepthAncestorsRequest,
	}

	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	if cfg.AppDir == "" {
		return nil, errors.New("--appdir is required")
	}
	if cfg.MaxPossibleDepth < 1 {
		return nil, errors.Errorf("maxdepth must be >= 1, got %d", cfg.MaxPossibleDepth)
	}
	if cfg.MaxBranchingFactor < 1.0 {
		return nil, errors.Errorf("maxbranching must be >= 1.0, got %f", cfg.MaxBranchingFactor)
	}
	if cfg.MaxDepthAncestorsRequest < 1 {
		return nil, errors.Errorf("maxancestorrequest must be >= 1, got %d", cfg.MaxDepthAncestorsRequest)
	}
	if cfg.PeerAddr != "" && len(cfg.Targets) == 0 {
		return nil, errors.New("--target is required when --peer is given")
	}

	cfg.DataDir = filepath.Join(cfg.AppDir, defaultDataDirname)
	cfg.LogFile = filepath.Join(cfg.AppDir, "logs", defaultLogFilename)
	cfg.ErrLogFile = filepath.Join(cfg.AppDir, "logs", defaultErrLogFilename)

	return cfg, nil
}

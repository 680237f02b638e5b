package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/kuitang/noteflow/internal/config"
	"github.com/kuitang/noteflow/internal/crypto"
	"github.com/kuitang/noteflow/internal/db"
	"github.com/kuitang/noteflow/internal/errs"
	"github.com/kuitang/noteflow/internal/notes"
	"github.com/kuitang/noteflow/internal/obs"
	"github.com/kuitang/noteflow/internal/s3client"
)

const (
	// databaseKeyName and databaseKeyVersion select the HKDF info string
	// for the notes database key.
	databaseKeyName    = "notes"
	databaseKeyVersion = 1

	localBucketName = "noteflow-local"
)

// app carries global flags and the resources one command invocation opens.
type app struct {
	flags   config.Flags
	jsonOut bool
	fs      afero.Fs

	cfg   *config.Config
	db    *db.DB
	store *notes.Store
}

// env is what a command body works with.
type env struct {
	ctx   context.Context
	cmd   *cobra.Command
	cfg   *config.Config
	db    *db.DB
	store *notes.Store
}

func (a *app) loadConfig() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	obs.Init()
	cfg, err := config.LoadConfig(a.flags)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err.Error(), err)
	}
	if !obs.SetLevel(cfg.LogLevel) {
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown log level %q", cfg.LogLevel))
	}
	a.cfg = cfg
	return cfg, nil
}

// open loads configuration, opens the database and loads the store.
func (a *app) open(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	var key []byte
	if cfg.Encrypted() {
		master, err := crypto.ParseMasterKey(cfg.MasterKey)
		if err != nil {
			return errs.Wrap(errs.InvalidArgument, "invalid NOTEFLOW_MASTER_KEY", err)
		}
		key = crypto.DeriveDatabaseKey(master, databaseKeyName, databaseKeyVersion)
	}

	d, err := db.Open(ctx, cfg.DatabasePath, key)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "failed to open database", err)
	}
	store := notes.NewStore(d, notes.WithAutoSaveDelay(cfg.AutoSaveDelay))
	if err := store.Initialize(ctx); err != nil {
		d.Close()
		return err
	}

	obs.From(ctx).Debug("store loaded",
		"db", cfg.DatabasePath,
		"encrypted", cfg.Encrypted(),
		"notes", len(store.Notes()),
		"folders", len(store.Folders()),
	)
	a.db = d
	a.store = store
	return nil
}

// close flushes pending autosaves and closes the database.
func (a *app) close(ctx context.Context) error {
	var errList []error
	if a.store != nil {
		errList = append(errList, a.store.Close(ctx))
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errList = append(errList, errs.Wrap(errs.Unavailable, "failed to close database", err))
		}
	}
	a.store, a.db = nil, nil
	return errors.Join(errList...)
}

// run opens the store, runs fn and closes the store again.
func (a *app) run(cmd *cobra.Command, fn func(e *env) error) (err error) {
	ctx := obs.WithCommand(cmd.Context(), cmd.CommandPath())
	if err := a.open(ctx); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.close(ctx))
	}()
	return fn(&env{ctx: ctx, cmd: cmd, cfg: a.cfg, db: a.db, store: a.store})
}

// objectStore returns the drawing upload client for the current
// configuration. Call stop when done.
func (a *app) objectStore(ctx context.Context) (c *s3client.Client, stop func(), err error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.NoS3 {
		c, stop, err := s3client.NewInProcess(ctx, localBucketName)
		if err != nil {
			return nil, nil, errs.Wrap(errs.Unavailable, "failed to start local object store", err)
		}
		return c, stop, nil
	}
	if !cfg.S3Configured() {
		return nil, nil, errs.New(errs.FailedPrecondition, "object storage is not configured (set AWS_ENDPOINT_URL_S3 or pass --no-s3)")
	}
	c, err = s3client.New(ctx, s3client.Config{
		Endpoint:        cfg.AWSEndpointS3,
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		BucketName:      cfg.AWSBucketName,
		PublicURL:       cfg.AWSPublicURL,
	})
	if err != nil {
		return nil, nil, errs.Wrap(errs.Unavailable, "failed to configure object storage", err)
	}
	return c, func() {}, nil
}

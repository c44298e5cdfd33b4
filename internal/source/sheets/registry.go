// Package sheets reads the user and ledger registry from a Google spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/dtroode/kurisync/internal/model"
	"github.com/dtroode/kurisync/internal/remote"
)

// valuesReader reads the cell values of one A1 range.
type valuesReader interface {
	Values(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
}

type serviceReader struct{ svc *sheetsapi.Service }

func (r serviceReader) Values(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := r.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// NewService creates a read-only Sheets client from a service account key file.
func NewService(ctx context.Context, credentialsFile string) (*sheetsapi.Service, error) {
	key, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	conf, err := google.JWTConfigFromJSON(key, sheetsapi.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	svc, err := sheetsapi.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return svc, nil
}

// Config locates the registry inside the spreadsheet.
type Config struct {
	SpreadsheetID string
	UsersRange    string
	LedgersRange  string
}

var _ model.RegistrySource = (*Registry)(nil)

type Registry struct {
	reader valuesReader
	caller *remote.Caller
	cfg    Config
	now    func() time.Time
}

// NewRegistry creates a Registry backed by the Sheets API.
func NewRegistry(svc *sheetsapi.Service, caller *remote.Caller, cfg Config) *Registry {
	return NewRegistryWithReader(serviceReader{svc: svc}, caller, cfg)
}

// NewRegistryWithReader allows injecting a fake reader (used in tests).
func NewRegistryWithReader(reader valuesReader, caller *remote.Caller, cfg Config) *Registry {
	return &Registry{
		reader: reader,
		caller: caller,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Fetch reads both ranges concurrently. A failure to read either range or a
// single malformed row fails the whole fetch.
func (r *Registry) Fetch(ctx context.Context) (model.Registry, error) {
	var userRows, ledgerRows [][]any

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.read(gctx, r.cfg.UsersRange)
		userRows = rows
		return err
	})
	g.Go(func() error {
		rows, err := r.read(gctx, r.cfg.LedgersRange)
		ledgerRows = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Registry{}, fmt.Errorf("failed to read registry: %w", err)
	}

	users, err := parseUsers(r.cfg.UsersRange, userRows)
	if err != nil {
		return model.Registry{}, err
	}

	ledgers, err := parseLedgers(r.cfg.LedgersRange, ledgerRows)
	if err != nil {
		return model.Registry{}, err
	}

	return model.Registry{
		Users:     users,
		Ledgers:   ledgers,
		FetchedAt: r.now().UTC(),
	}, nil
}

func (r *Registry) read(ctx context.Context, rng string) ([][]any, error) {
	return remote.Call(ctx, r.caller, r.cfg.SpreadsheetID, "values.get "+rng, func(ctx context.Context) ([][]any, error) {
		return r.reader.Values(ctx, r.cfg.SpreadsheetID, rng)
	})
}

// Classify maps Sheets API errors to remote failure classes.
func Classify(err error) remote.Kind {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return remote.KindOther
	}

	switch apiErr.Code {
	case http.StatusTooManyRequests:
		return remote.KindRateLimited
	case http.StatusForbidden:
		for _, item := range apiErr.Errors {
			if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
				return remote.KindRateLimited
			}
		}
		return remote.KindRejected
	case http.StatusBadRequest, http.StatusNotFound:
		return remote.KindRejected
	default:
		return remote.KindOther
	}
}

package couch

import (
	"context"
	"fmt"
	"net/url"

	"github.com/couchdir/couchdir/config"
	"github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"
)

// Client wraps the kivik client and the directory database handle.
type Client struct {
	client *kivik.Client
	db     *kivik.DB
	dbName string
}

// Open connects to CouchDB and binds the configured database. The
// database itself may not exist yet; EnsureDatabase creates it.
func Open(ctx context.Context, cfg config.CouchConfig) (*Client, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	client, err := kivik.New("couch", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect couchdb: %w", err)
	}
	if _, err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping couchdb: %w", err)
	}

	return &Client{
		client: client,
		db:     client.DB(cfg.DBName),
		dbName: cfg.DBName,
	}, nil
}

// EnsureDatabase creates the directory database if it is missing.
func (c *Client) EnsureDatabase(ctx context.Context) error {
	exists, err := c.client.DBExists(ctx, c.dbName)
	if err != nil {
		return fmt.Errorf("check database %q: %w", c.dbName, err)
	}
	if exists {
		return nil
	}
	if err := c.client.CreateDB(ctx, c.dbName); err != nil {
		return fmt.Errorf("create database %q: %w", c.dbName, err)
	}
	c.db = c.client.DB(c.dbName)
	return nil
}

// Store returns the directory store backed by this database.
func (c *Client) Store() *Store {
	return &Store{db: c.db}
}

// Close releases the underlying kivik client.
func (c *Client) Close() error {
	return c.client.Close()
}

func buildDSN(cfg config.CouchConfig) (string, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse couchdb url: %w", err)
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String(), nil
}

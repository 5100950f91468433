package graph

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/rkondo/kaiwa/internal/logger"
)

// Client wraps the Neo4j driver for the grammar-pattern knowledge graph.
// The graph itself is maintained elsewhere; kaiwa only performs exact-text
// lookups against it.
type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
	log      *logger.Logger
}

// NewFromEnv builds a Client from KAIWA_NEO4J_* environment variables.
// Returns (nil, nil) when KAIWA_NEO4J_URI is unset: the graph is an
// optional collaborator and enrichment degrades to a no-op without it.
func NewFromEnv(log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}

	uri := strings.TrimSpace(os.Getenv("KAIWA_NEO4J_URI"))
	if uri == "" {
		return nil, nil
	}

	user := strings.TrimSpace(os.Getenv("KAIWA_NEO4J_USER"))
	if user == "" {
		user = "neo4j"
	}
	password := strings.TrimSpace(os.Getenv("KAIWA_NEO4J_PASSWORD"))
	database := strings.TrimSpace(os.Getenv("KAIWA_NEO4J_DATABASE"))

	timeoutSec := 10
	if v := strings.TrimSpace(os.Getenv("KAIWA_NEO4J_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	auth := neo4j.BasicAuth(user, password, "")
	driver, err := neo4j.NewDriverWithContext(uri, auth, func(cfg *neo4j.Config) {
		cfg.SocketConnectTimeout = time.Duration(timeoutSec) * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("graph: init driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graph: verify connectivity: %w", err)
	}

	return &Client{
		Driver:   driver,
		Database: database,
		log:      log.With("client", "graph"),
	}, nil
}

// Close releases the driver.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}

// FindPattern performs an exact-text lookup of a grammar-pattern surface
// form and returns all matching node identifiers. Callers decide what to do
// with zero, one, or many results; this method never guesses.
func (c *Client) FindPattern(ctx context.Context, surface string) ([]string, error) {
	if c == nil || c.Driver == nil {
		return nil, nil
	}

	session := c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: c.Database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (p:GrammarPattern {surface: $surface}) RETURN p.id AS id`,
			map[string]any{"surface": surface})
		if err != nil {
			return nil, err
		}

		var ids []string
		for res.Next(ctx) {
			if v, ok := res.Record().Get("id"); ok {
				if id, ok := v.(string); ok && id != "" {
					ids = append(ids, id)
				}
			}
		}
		return ids, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("graph: find pattern %q: %w", surface, err)
	}

	ids, _ := out.([]string)
	c.log.Debug("pattern lookup", "surface", surface, "matches", len(ids))
	return ids, nil
}

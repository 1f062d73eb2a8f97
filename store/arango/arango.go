// Package arango implements the document store contract on ArangoDB.
package arango

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/xerrors"

	"github.com/vulnwatch/kevsync/store"
)

const (
	connectInitialInterval = 2 * time.Second
	connectMaxInterval     = 30 * time.Second
	connectMaxElapsed      = 2 * time.Minute
)

var logger = initLogger()

// Config holds the connection parameters for the ArangoDB store.
type Config struct {
	URL        string
	User       string
	Password   string
	Database   string
	Collection string
}

// Store keeps one document per active catalog identifier in a single
// ArangoDB collection.
type Store struct {
	db         arangodb.Database
	collection string
	transport  *http.Transport
}

// initLogger sets up the Zap Logger to log to the console in a human readable format
func initLogger() *zap.Logger {
	prodConfig := zap.NewProductionConfig()
	prodConfig.Encoding = "console"
	prodConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	prodConfig.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	l, _ := prodConfig.Build()
	return l
}

func connectionConfig(endpoint connection.Endpoint, user, password string, transport *http.Transport) connection.HttpConfiguration {
	return connection.HttpConfiguration{
		Authentication: connection.NewBasicAuth(user, password),
		Endpoint:       endpoint,
		ContentType:    connection.ApplicationJSON,
		Transport:      transport,
	}
}

func newTransport() *http.Transport {
	return &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, // #nosec G402
		},
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 90 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// New connects to ArangoDB with exponential backoff and ensures the
// database, collection, and identifier index exist. A store.ConnError is
// returned when the server stays unreachable.
func New(ctx context.Context, cfg Config) (*Store, error) {
	var client arangodb.Client
	transport := newTransport()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = connectInitialInterval
	bo.MaxInterval = connectMaxInterval
	bo.MaxElapsedTime = connectMaxElapsed

	err := backoff.RetryNotify(func() error {
		endpoint := connection.NewRoundRobinEndpoints([]string{cfg.URL})
		conn := connection.NewHttpConnection(connectionConfig(endpoint, cfg.User, cfg.Password, transport))

		client = arangodb.NewClient(conn)

		versionInfo, err := client.Version(ctx)
		if err != nil {
			return err
		}
		logger.Sugar().Infof("Database has version '%s' and license '%s'", versionInfo.Version, versionInfo.License)
		return nil
	}, bo, func(err error, _ time.Duration) {
		logger.Sugar().Infof("Retrying connection to ArangoDB: %v", err)
	})
	if err != nil {
		return nil, &store.ConnError{Err: err}
	}

	db, err := openDatabase(ctx, client, cfg.Database)
	if err != nil {
		return nil, &store.ConnError{Err: err}
	}

	col, err := openCollection(ctx, db, cfg.Collection)
	if err != nil {
		return nil, &store.ConnError{Err: err}
	}

	f := false
	if _, _, err = col.EnsurePersistentIndex(ctx, []string{"cveID"}, &arangodb.CreatePersistentIndexOptions{
		Unique: &f,
		Sparse: &f,
		Name:   "cve_id",
	}); err != nil {
		return nil, &store.ConnError{Err: xerrors.Errorf("failed to create index: %w", err)}
	}

	return &Store{db: db, collection: cfg.Collection, transport: transport}, nil
}

// Close releases the connection pool and flushes the store logger. The
// store must not be used afterwards.
func (s *Store) Close() error {
	s.transport.CloseIdleConnections()
	_ = logger.Sync()
	return nil
}

func openDatabase(ctx context.Context, client arangodb.Client, name string) (arangodb.Database, error) {
	dblist, err := client.Databases(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to list databases: %w", err)
	}
	for _, dbinfo := range dblist {
		if dbinfo.Name() == name {
			var options arangodb.GetDatabaseOptions
			return client.GetDatabase(ctx, name, &options)
		}
	}
	return client.CreateDatabase(ctx, name, nil)
}

func openCollection(ctx context.Context, db arangodb.Database, name string) (arangodb.Collection, error) {
	exists, err := db.CollectionExists(ctx, name)
	if err != nil {
		return nil, xerrors.Errorf("failed to check collection: %w", err)
	}
	if exists {
		var options arangodb.GetCollectionOptions
		return db.GetCollection(ctx, name, &options)
	}
	return db.CreateCollection(ctx, name, nil)
}

// IDs returns the identifiers of all persisted catalog documents. Its
// failure means the store could not be read at all, so it is reported as
// a connection-level error.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	query := `FOR d IN @@col RETURN { id: d.cveID }`
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"@col": s.collection},
	})
	if err != nil {
		return nil, &store.ConnError{Err: err}
	}
	defer cursor.Close()

	var ids []string
	for cursor.HasMore() {
		var result struct {
			ID string `json:"id"`
		}
		if _, err := cursor.ReadDocument(ctx, &result); err != nil {
			return nil, &store.ConnError{Err: err}
		}
		ids = append(ids, result.ID)
	}
	return ids, nil
}

// Upsert inserts or replaces the document for the given identifier.
func (s *Store) Upsert(ctx context.Context, id string, doc json.RawMessage) error {
	var fields map[string]interface{}
	if err := json.Unmarshal(doc, &fields); err != nil {
		return xerrors.Errorf("failed to unmarshal document %s: %w", id, err)
	}
	fields["_key"] = SanitizeKey(id)
	fields["cveID"] = id

	// REPLACE, not UPDATE: the persisted document must mirror the feed
	// record exactly, so fields the feed dropped must not survive.
	query := `
		UPSERT { _key: @key }
		INSERT @doc
		REPLACE @doc
		IN @@col
	`
	bindVars := map[string]interface{}{
		"@col": s.collection,
		"key":  SanitizeKey(id),
		"doc":  fields,
	}
	if _, err := s.db.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars}); err != nil {
		return xerrors.Errorf("failed to upsert %s: %w", id, connWrap(err))
	}
	return nil
}

// Delete removes the document for the given identifier. Missing documents
// are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	query := `
		FOR d IN @@col
			FILTER d.cveID == @id
			REMOVE d IN @@col
	`
	bindVars := map[string]interface{}{
		"@col": s.collection,
		"id":   id,
	}
	if _, err := s.db.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars}); err != nil {
		return xerrors.Errorf("failed to delete %s: %w", id, connWrap(err))
	}
	return nil
}

// connWrap marks network-level failures as connection errors so the sync
// engine can tell an unreachable store apart from a rejected document.
func connWrap(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &store.ConnError{Err: err}
	}
	return err
}

// keySafeBytes are the non-alphanumeric characters ArangoDB allows in
// document keys. '%' is also allowed but reserved here as the escape
// character so the encoding stays collision-free.
const keySafeBytes = "_-:.@()+,=;$!*'"

// SanitizeKey encodes an identifier as a valid ArangoDB document key.
// Bytes outside the key alphabet (and '%' itself) are percent-encoded, so
// distinct identifiers never map to the same key.
func SanitizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case strings.IndexByte(keySafeBytes, c) >= 0:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

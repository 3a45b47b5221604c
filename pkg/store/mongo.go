package store

import (
	"context"
	"fmt"
	"iter"
	"os"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
	"go.uber.org/zap"

	"github.com/ajitpratap0/synergy/pkg/config"
	"github.com/ajitpratap0/synergy/pkg/errors"
	"github.com/ajitpratap0/synergy/pkg/json"
	"github.com/ajitpratap0/synergy/pkg/metrics"
)

// MongoDB server error codes that indicate rejected credentials
const (
	codeUnauthorized         = 13
	codeAuthenticationFailed = 18
)

const disconnectTimeout = 5 * time.Second

// MongoDialer opens MongoDB-backed stores. It keeps one shared client per
// connection string and credential pair: a second Open for the same target
// reuses the open client, and the client is disconnected when the last
// backend using it is closed.
type MongoDialer struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[string]*sharedClient
}

type sharedClient struct {
	client *mongo.Client
	refs   int
}

// NewMongoDialer creates a dialer with no open clients
func NewMongoDialer(logger *zap.Logger) *MongoDialer {
	return &MongoDialer{
		logger:  logger.With(zap.String("backend", "mongodb")),
		clients: make(map[string]*sharedClient),
	}
}

// credentialsFile is the JSON shape of ConnectionConfig.CredentialsFile
type credentialsFile struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	AuthSource string `json:"auth_source"`
	Mechanism  string `json:"mechanism"`
}

// resolveCredentials applies the credential precedence: an explicit
// credentials file, then credentials embedded in the URI (handled by the
// driver), then none.
func resolveCredentials(cfg config.ConnectionConfig) (*options.Credential, error) {
	if cfg.CredentialsFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(cfg.CredentialsFile) //nolint:gosec // G304: path is supplied by the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "failed to read credentials file").
			WithDetail("path", cfg.CredentialsFile)
	}
	var cf credentialsFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "failed to parse credentials file").
			WithDetail("path", cfg.CredentialsFile)
	}
	if cf.Username == "" {
		return nil, errors.New(errors.ErrorTypeAuthentication, "credentials file has no username").
			WithDetail("path", cfg.CredentialsFile)
	}
	return &options.Credential{
		AuthMechanism: cf.Mechanism,
		AuthSource:    cf.AuthSource,
		Username:      cf.Username,
		Password:      cf.Password,
	}, nil
}

// Open connects to cfg.URI, or reuses an already open client for it, and
// returns a backend bound to the cfg.ProjectID database.
func (d *MongoDialer) Open(ctx context.Context, cfg config.ConnectionConfig) (Backend, error) {
	cred, err := resolveCredentials(cfg)
	if err != nil {
		return nil, err
	}
	handle := cfg.URI
	if cred != nil {
		handle += "|" + cred.Username + "@" + cred.AuthSource
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if sc, ok := d.clients[handle]; ok {
		sc.refs++
		d.logger.Debug("reusing shared client", zap.Int("refs", sc.refs))
		return d.backend(handle, sc.client, cfg), nil
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	if cfg.Timeout > 0 {
		opts.SetServerSelectionTimeout(cfg.Timeout).SetConnectTimeout(cfg.Timeout)
	}
	if cred != nil {
		opts.SetAuth(*cred)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, classifyMongo(err, "failed to connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		dctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		_ = client.Disconnect(dctx)
		cancel()
		return nil, classifyMongo(err, "failed to ping MongoDB")
	}

	d.clients[handle] = &sharedClient{client: client, refs: 1}
	metrics.ActiveConnections.Inc()
	d.logger.Info("connected to MongoDB", zap.String("database", cfg.ProjectID))

	return d.backend(handle, client, cfg), nil
}

func (d *MongoDialer) backend(handle string, client *mongo.Client, cfg config.ConnectionConfig) *mongoBackend {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &mongoBackend{
		dialer:  d,
		handle:  handle,
		db:      client.Database(cfg.ProjectID),
		timeout: timeout,
	}
}

// release drops one reference to handle and disconnects the client with the last one.
func (d *MongoDialer) release(ctx context.Context, handle string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sc, ok := d.clients[handle]
	if !ok {
		return nil
	}
	sc.refs--
	if sc.refs > 0 {
		return nil
	}
	delete(d.clients, handle)
	metrics.ActiveConnections.Dec()
	if err := sc.client.Disconnect(ctx); err != nil {
		return classifyMongo(err, "failed to disconnect from MongoDB")
	}
	d.logger.Info("disconnected from MongoDB")
	return nil
}

// OpenClients returns the number of shared clients currently open
func (d *MongoDialer) OpenClients() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}

// mongoDocument is the stored shape of a record. User fields are nested so
// they can never collide with _id.
type mongoDocument struct {
	Key       string    `bson:"_id"`
	Fields    bson.M    `bson:"fields"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (doc mongoDocument) record() Record {
	fields := make(Fields, len(doc.Fields))
	for k, v := range doc.Fields {
		fields[k] = normalizeBSON(v)
	}
	return Record{Key: doc.Key, Fields: fields, UpdatedAt: doc.UpdatedAt}
}

// normalizeBSON converts driver container types back to plain Go maps and slices.
func normalizeBSON(v any) any {
	switch t := v.(type) {
	case primitive.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeBSON(e)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalizeBSON(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeBSON(e)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}

type mongoBackend struct {
	dialer  *MongoDialer
	handle  string
	db      *mongo.Database
	timeout time.Duration
	once    sync.Once
}

func (b *mongoBackend) Write(ctx context.Context, collection, key string, fields Fields, ts time.Time) error {
	doc := mongoDocument{Key: key, Fields: bson.M(fields), UpdatedAt: ts.UTC()}
	_, err := b.db.Collection(collection).ReplaceOne(ctx,
		bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return classifyMongo(err, "failed to write document").
			WithDetail("collection", collection).
			WithDetail("key", key)
	}
	return nil
}

func (b *mongoBackend) ReadOne(ctx context.Context, collection, key string) (Record, bool, error) {
	var doc mongoDocument
	err := b.db.Collection(collection).FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, classifyMongo(err, "failed to read document").
			WithDetail("collection", collection).
			WithDetail("key", key)
	}
	return doc.record(), true, nil
}

// ReadMany bounds the initial query and every batch fetch by b.timeout.
// Time the consumer spends between elements is not counted.
func (b *mongoBackend) ReadMany(ctx context.Context, collection string, filter Filter) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		findCtx, cancel := context.WithTimeout(ctx, b.timeout)
		cursor, err := b.db.Collection(collection).Find(findCtx, bson.D{})
		cancel()
		if err != nil {
			yield(Record{}, classifyMongo(err, "failed to query collection").WithDetail("collection", collection))
			return
		}
		defer func() {
			cctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
			_ = cursor.Close(cctx)
			cancel()
		}()

		for b.next(ctx, cursor) {
			var doc mongoDocument
			if err := cursor.Decode(&doc); err != nil {
				yield(Record{}, errors.Wrap(err, errors.ErrorTypeInternal, "failed to decode document").
					WithDetail("collection", collection))
				return
			}
			rec := doc.record()
			if !filter.Match(rec) {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield(Record{}, classifyMongo(err, "cursor failed").WithDetail("collection", collection))
		}
	}
}

func (b *mongoBackend) next(ctx context.Context, cursor *mongo.Cursor) bool {
	nextCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return cursor.Next(nextCtx)
}

func (b *mongoBackend) Close(ctx context.Context) error {
	var err error
	b.once.Do(func() {
		err = b.dialer.release(ctx, b.handle)
	})
	return err
}

// classifyMongo maps driver errors onto the store taxonomy: network,
// server-selection and deadline failures are connectivity errors, rejected
// credentials are authentication errors, anything else is internal.
func classifyMongo(err error, message string) *errors.Error {
	var (
		cmdErr mongo.CommandError
		sseErr topology.ServerSelectionError
		conErr topology.ConnectionError
	)
	switch {
	case errors.As(err, &cmdErr) && (cmdErr.Code == codeAuthenticationFailed || cmdErr.Code == codeUnauthorized):
		return errors.Wrap(err, errors.ErrorTypeAuthentication, message)
	case mongo.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, errors.ErrorTypeTimeout, message)
	case mongo.IsNetworkError(err), errors.As(err, &sseErr), errors.As(err, &conErr),
		errors.Is(err, mongo.ErrClientDisconnected):
		return errors.Wrap(err, errors.ErrorTypeConnection, message)
	default:
		return errors.Wrap(err, errors.ErrorTypeInternal, fmt.Sprintf("%s (unclassified)", message))
	}
}

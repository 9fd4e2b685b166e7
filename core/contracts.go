package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// ProviderAdapter is implemented once per external provider domain.
// Adapters enforce their own timeouts; FetchData receives skip and limit as
// hints and may return the full unpaged list.
type ProviderAdapter interface {
	Domain() string
	ListSchemaIDs(ctx context.Context) ([]string, error)
	ListSchemaVersions(ctx context.Context, schemaID string) ([]int64, error)
	FetchData(ctx context.Context, req FetchRequest) ([]DataPoint, error)
}

type FetchRequest struct {
	SchemaID string
	Version  int64
	Grant    AuthorizationGrant
	Start    *time.Time
	End      *time.Time
	Columns  ColumnList
	Skip     int64
	Limit    int64
}

type Registry interface {
	Register(domain string, adapter ProviderAdapter) error
	HasDomain(domain string) bool
	Adapter(domain string) (ProviderAdapter, error)
	Domains() []string
	DomainsForStandardMeasure(ctx context.Context, schemaID string, version int64) ([]string, error)
	AllSchemaIDs(ctx context.Context) ([]string, error)
}

type AuthorizationStore interface {
	GetGrant(ctx context.Context, username string, domain string) (AuthorizationGrant, bool, error)
}

type GrantWriter interface {
	PutGrant(ctx context.Context, grant AuthorizationGrant) (AuthorizationGrant, error)
	RevokeGrant(ctx context.Context, username string, domain string) error
}

type DataQuery struct {
	Owner    string
	SchemaID string
	Version  int64
	Start    *time.Time
	End      *time.Time
	Columns  ColumnList
	Skip     int64
	Limit    int64
}

type DataDeletion struct {
	Owner    string
	SchemaID string
	Version  int64
	Start    *time.Time
	End      *time.Time
}

// DataStore is the local point storage. GetData applies skip and limit and
// reports the pre-paging total.
type DataStore interface {
	GetData(ctx context.Context, query DataQuery) (MultiValueResult[DataPoint], error)
	DeleteData(ctx context.Context, deletion DataDeletion) (int64, error)
	StoreData(ctx context.Context, points []DataPoint) error
}

type SchemaRegistry interface {
	CountMatching(ctx context.Context, schemaID string, version int64, skip int64, limit int64) (int64, error)
	ListSchemaIDs(ctx context.Context) ([]string, error)
	ListSchemaVersions(ctx context.Context, schemaID string) ([]int64, error)
	GetSchema(ctx context.Context, schemaID string, version int64) (SchemaDefinition, bool, error)
	CreateSchema(ctx context.Context, def SchemaDefinition) (SchemaDefinition, error)
}

type UserDirectory interface {
	ListUsernames(ctx context.Context) ([]string, error)
}

type StoreProvider interface {
	DataStore() DataStore
	SchemaRegistry() SchemaRegistry
	AuthorizationStore() AuthorizationStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

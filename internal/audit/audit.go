package audit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/config"
)

const (
	ActionLogin          = "login"
	ActionRegister       = "register"
	ActionOrderPlaced    = "order_placed"
	ActionAccountDeleted = "account_deleted"
	ActionPasswordChange = "password_changed"
	ActionProductWrite   = "product_write"
	ActionCouponCreated  = "coupon_created"
)

// Entry is one line of the audit trail.
type Entry struct {
	UserID     uint      `json:"user_id,omitempty"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	Success    bool      `json:"success"`
	Detail     string    `json:"detail,omitempty"`
	At         time.Time `json:"at"`
}

const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 500
)

// Query filters the audit trail. Zero fields match everything.
type Query struct {
	UserID uint
	Action string
	Limit  int
}

func (q Query) limit() int {
	switch {
	case q.Limit <= 0:
		return DefaultQueryLimit
	case q.Limit > MaxQueryLimit:
		return MaxQueryLimit
	}
	return q.Limit
}

func (q Query) match(e Entry) bool {
	return (q.UserID == 0 || e.UserID == q.UserID) && (q.Action == "" || e.Action == q.Action)
}

// Reader is implemented by loggers whose trail can be listed back.
type Reader interface {
	Entries(ctx context.Context, q Query) ([]Entry, error)
}

// Logger records audit entries. Implementations must not block request paths
// for long; callers treat failures as warnings.
type Logger interface {
	Log(ctx context.Context, e Entry) error
	Close()
}

type Noop struct{}

func (Noop) Log(context.Context, Entry) error { return nil }
func (Noop) Close()                           {}

const createTable = `CREATE TABLE IF NOT EXISTS audit_logs (
	id timeuuid PRIMARY KEY,
	user_id text,
	action text,
	resource text,
	resource_id text,
	ip_address text,
	success boolean,
	detail text,
	timestamp timestamp
)`

const selectEntries = `SELECT user_id, action, resource, resource_id, ip_address, success, detail, timestamp FROM audit_logs`

const insertEntry = `INSERT INTO audit_logs (
	id, user_id, action, resource, resource_id, ip_address, success, detail, timestamp
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// ScyllaLogger writes entries to the audit_logs table.
type ScyllaLogger struct {
	session *gocql.Session
}

// NewCluster builds the cluster configuration for the audit keyspace.
func NewCluster(cfg config.ScyllaConfig) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 5 * time.Second
	cluster.ConnectTimeout = 5 * time.Second
	cluster.NumConns = 4
	cluster.ReconnectInterval = time.Second
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())
	return cluster
}

func NewScyllaLogger(cfg config.ScyllaConfig) (*ScyllaLogger, error) {
	if len(cfg.Hosts) == 0 || cfg.Keyspace == "" {
		return nil, fmt.Errorf("scylla hosts and keyspace are required")
	}
	session, err := NewCluster(cfg).CreateSession()
	if err != nil {
		return nil, fmt.Errorf("create scylla session: %w", err)
	}
	if err := session.Query(createTable).Exec(); err != nil {
		session.Close()
		return nil, fmt.Errorf("create audit_logs: %w", err)
	}
	logrus.WithField("keyspace", cfg.Keyspace).Info("✅ ScyllaDB audit log ready")
	return &ScyllaLogger{session: session}, nil
}

func (l *ScyllaLogger) Log(ctx context.Context, e Entry) error {
	return l.session.Query(insertEntry, values(e)...).WithContext(ctx).Exec()
}

func (l *ScyllaLogger) Close() {
	l.session.Close()
}

// Entries reads back at most q.Limit rows. Rows come in token order, so the
// result is sorted newest first but is not guaranteed to be the latest rows.
func (l *ScyllaLogger) Entries(ctx context.Context, q Query) ([]Entry, error) {
	var conds []string
	var args []any
	if q.UserID != 0 {
		conds = append(conds, "user_id = ?")
		args = append(args, strconv.FormatUint(uint64(q.UserID), 10))
	}
	if q.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, q.Action)
	}
	stmt := selectEntries
	if len(conds) > 0 {
		stmt += " WHERE " + strings.Join(conds, " AND ")
	}
	stmt += " LIMIT ?"
	args = append(args, q.limit())
	if len(conds) > 0 {
		stmt += " ALLOW FILTERING"
	}

	iter := l.session.Query(stmt, args...).WithContext(ctx).Iter()
	entries := []Entry{}
	var (
		e      Entry
		userID string
	)
	for iter.Scan(&userID, &e.Action, &e.Resource, &e.ResourceID, &e.IPAddress, &e.Success, &e.Detail, &e.At) {
		if id, err := strconv.ParseUint(userID, 10, 64); err == nil {
			e.UserID = uint(id)
		}
		entries = append(entries, e)
		e = Entry{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("read audit_logs: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].At.After(entries[j].At) })
	return entries, nil
}

// Memory keeps the most recent entries in process. Used when no ScyllaDB
// cluster is configured.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	max     int
}

func NewMemory(max int) *Memory {
	if max <= 0 {
		max = MaxQueryLimit
	}
	return &Memory{max: max}
}

func (m *Memory) Log(_ context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	if over := len(m.entries) - m.max; over > 0 {
		m.entries = append(m.entries[:0:0], m.entries[over:]...)
	}
	return nil
}

func (m *Memory) Close() {}

// Entries returns matching entries, newest first.
func (m *Memory) Entries(_ context.Context, q Query) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Entry{}
	for i := len(m.entries) - 1; i >= 0 && len(out) < q.limit(); i-- {
		if q.match(m.entries[i]) {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

// values returns the bind values for insertEntry.
func values(e Entry) []any {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	userID := ""
	if e.UserID != 0 {
		userID = strconv.FormatUint(uint64(e.UserID), 10)
	}
	return []any{
		gocql.UUIDFromTime(at),
		userID,
		e.Action,
		e.Resource,
		e.ResourceID,
		e.IPAddress,
		e.Success,
		e.Detail,
		at,
	}
}

// Record logs e and only warns on failure.
func Record(ctx context.Context, l Logger, e Entry) {
	if l == nil {
		return
	}
	if err := l.Log(ctx, e); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"action":  e.Action,
			"user_id": e.UserID,
		}).Warn("⚠️ audit entry not written")
	}
}

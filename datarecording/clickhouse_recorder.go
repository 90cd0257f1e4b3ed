package datarecording

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/tebeka/atexit"
)

// ClickHouseScheme prefixes the targets that are recorded into ClickHouse.
const ClickHouseScheme = "clickhouse://"

// IsClickHouseDSN tells if the recording target names a ClickHouse server.
func IsClickHouseDSN(target string) bool {
	return strings.HasPrefix(target, ClickHouseScheme)
}

// Open creates a DataRecorder for the target. ClickHouse DSNs are recorded
// into the server, everything else into a SQLite file.
func Open(target string) (DataRecorder, error) {
	if !IsClickHouseDSN(target) {
		return NewSQLite(target)
	}

	r, err := NewClickHouse(target)
	if err != nil {
		return nil, err
	}

	return r, nil
}

type clickHouseTable struct {
	structType reflect.Type
	rows       [][]any
}

// ClickHouseRecorder records into a ClickHouse server using batched inserts.
type ClickHouseRecorder struct {
	conn      clickhouse.Conn
	mu        sync.Mutex
	batchSize int

	tables     map[string]*clickHouseTable
	tableNames []string
	entryCount int
	closed     bool
}

// NewClickHouse connects to the server named by the DSN, for example
// clickhouse://localhost:9000/cachesim?username=default.
func NewClickHouse(dsn string) (*ClickHouseRecorder, error) {
	options, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid ClickHouse DSN: %w", err)
	}

	options.DialTimeout = 30 * time.Second
	options.ConnOpenStrategy = clickhouse.ConnOpenInOrder

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	r := &ClickHouseRecorder{
		conn:      conn,
		batchSize: 100000,
		tables:    make(map[string]*clickHouseTable),
	}

	atexit.Register(func() { r.Flush() })

	return r, nil
}

func clickHouseColumnType(kind reflect.Kind) string {
	switch kind {
	case reflect.Bool:
		return "Bool"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Int64:
		return "Int64"
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return "UInt64"
	case reflect.Float32:
		return "Float32"
	case reflect.Float64:
		return "Float64"
	case reflect.String:
		return "String"
	default:
		panic(fmt.Sprintf("unsupported kind %s", kind))
	}
}

func clickHouseCreateTableSQL(tableName string, sampleEntry any) string {
	structType := reflect.TypeOf(sampleEntry)
	columns := make([]string, structType.NumField())

	for i := range columns {
		field := structType.Field(i)
		columns[i] = field.Name + " " + clickHouseColumnType(field.Type.Kind())
	}

	return "CREATE TABLE IF NOT EXISTS " + tableName + " (\n\t" +
		strings.Join(columns, ",\n\t") +
		"\n) ENGINE = MergeTree()\nORDER BY tuple()"
}

// clickHouseRow widens the fields to the column types.
func clickHouseRow(entry any) []any {
	value := reflect.ValueOf(entry)
	row := make([]any, value.NumField())

	for i := range row {
		field := value.Field(i)

		switch field.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
			reflect.Int64:
			row[i] = field.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
			reflect.Uint64:
			row[i] = field.Uint()
		default:
			row[i] = field.Interface()
		}
	}

	return row
}

// CreateTable creates a MergeTree table whose columns are the fields of the
// sample entry.
func (r *ClickHouseRecorder) CreateTable(tableName string, sampleEntry any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := checkStructFields(sampleEntry)
	if err != nil {
		panic(err)
	}

	if _, exists := r.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	err = r.conn.Exec(context.Background(),
		clickHouseCreateTableSQL(tableName, sampleEntry))
	if err != nil {
		panic(fmt.Errorf("failed to create table %s: %w", tableName, err))
	}

	r.tables[tableName] = &clickHouseTable{
		structType: reflect.TypeOf(sampleEntry),
	}
	r.tableNames = append(r.tableNames, tableName)
}

// InsertData buffers an entry. A full batch is sent right away.
func (r *ClickHouseRecorder) InsertData(tableName string, entry any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, exists := r.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != table.structType {
		panic(fmt.Sprintf("entry of type %T does not match table %s",
			entry, tableName))
	}

	table.rows = append(table.rows, clickHouseRow(entry))

	r.entryCount++
	if r.entryCount >= r.batchSize {
		r.flush()
	}
}

// ListTables returns all table names in creation order.
func (r *ClickHouseRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.tableNames))
	copy(names, r.tableNames)

	return names
}

// Flush sends all the buffered rows.
func (r *ClickHouseRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.flush()
}

func (r *ClickHouseRecorder) flush() {
	if r.entryCount == 0 || r.closed {
		return
	}

	ctx := context.Background()

	for _, tableName := range r.tableNames {
		table := r.tables[tableName]
		if len(table.rows) == 0 {
			continue
		}

		batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO "+tableName)
		if err != nil {
			panic(fmt.Errorf("failed to prepare batch for %s: %w",
				tableName, err))
		}

		for _, row := range table.rows {
			err = batch.Append(row...)
			if err != nil {
				panic(fmt.Errorf("failed to append to batch: %w", err))
			}
		}

		err = batch.Send()
		if err != nil {
			panic(fmt.Errorf("failed to send batch: %w", err))
		}

		table.rows = table.rows[:0]
	}

	r.entryCount = 0
}

// Close flushes remaining rows and closes the connection.
func (r *ClickHouseRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.flush()
	r.closed = true

	err := r.conn.Close()
	if err != nil {
		return fmt.Errorf("failed to close ClickHouse connection: %w", err)
	}

	return nil
}

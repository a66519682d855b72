package store

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/memolanes/kernel/journey"
)

// primaryMigrations is the ordered schema history for main.db: an
// ongoing-point log, the finalized journey table, and a settings table,
// per spec.md §4.6.
var primaryMigrations = []migration{
	{version: 1, sql: `
CREATE TABLE ongoing_journey (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp_sec  INTEGER NOT NULL,
	lat            REAL NOT NULL,
	lng            REAL NOT NULL,
	process_result INTEGER NOT NULL
);

CREATE TABLE journey (
	id                 TEXT PRIMARY KEY,
	journey_date       INTEGER NOT NULL,
	end_timestamp_sec  INTEGER,
	type               INTEGER NOT NULL,
	header             BLOB NOT NULL,
	data               BLOB NOT NULL
);
CREATE INDEX journey_end_timestamp_idx ON journey(end_timestamp_sec DESC);

CREATE TABLE setting (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`},
}

// PrimaryStore is the durable store of finalized journeys and the ongoing
// point log, backed by a single SQLite connection (serialized by Facade's
// mutex, matching storage.rs's single-lock discipline — see spec.md §5).
type PrimaryStore struct {
	conn   *sqlite.Conn
	logger *log.Logger
}

// OpenPrimaryStore opens (creating if absent) the primary store at path and
// brings its schema up to date.
func OpenPrimaryStore(path string, logger *log.Logger) (*PrimaryStore, error) {
	if logger == nil {
		logger = defaultLogger()
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		return nil, fmt.Errorf("store: opening primary store %s: %w", path, err)
	}
	if err := runMigrations(conn, primaryMigrations); err != nil {
		conn.Close()
		return nil, err
	}
	return &PrimaryStore{conn: conn, logger: logger}, nil
}

// Close releases the underlying connection.
func (ps *PrimaryStore) Close() error {
	return ps.conn.Close()
}

// Txn is handed to the closure passed to WithTxn. Action starts as
// ActionNone and must be set by any mutating operation so the caller
// (Facade.WithTxn) knows what cache repair, if any, is required on commit —
// the "action side-channel" of spec.md §4.6/§9.
type Txn struct {
	conn   *sqlite.Conn
	Action TxnAction
}

// WithTxn runs f inside a single immediate SQLite transaction that commits
// if f returns nil and rolls back otherwise.
func (ps *PrimaryStore) WithTxn(f func(*Txn) error) error {
	endFn, err := sqlitex.ImmediateTransaction(ps.conn)
	if err != nil {
		return fmt.Errorf("store: starting transaction: %w", err)
	}
	var txnErr error
	defer func() { endFn(&txnErr) }()

	txn := &Txn{conn: ps.conn, Action: ActionNone{}}
	txnErr = f(txn)
	return txnErr
}

func isActionNone(a TxnAction) bool {
	_, ok := a.(ActionNone)
	return ok
}

func actionName(a TxnAction) string {
	switch a.(type) {
	case ActionNone:
		return "none"
	case ActionCompleteRebuilt:
		return "complete_rebuilt"
	case ActionMerge:
		return "merge"
	default:
		return "unknown"
	}
}

func encodeDataBlob(data journey.Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := journey.SerializeData(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeDataBlob(b []byte) (journey.Data, error) {
	return journey.DeserializeData(bytes.NewReader(b))
}

// revisionAlphabet matches original_source/app/rust/src/main_db.rs's
// random_string::generate(8, ALPHANUMERIC) charset.
const revisionAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// newRevision returns the "short random token" journey revision spec.md §3
// describes: a freshly, genuinely random 8-char alphanumeric string, drawn
// from crypto/rand so two mutations of the same journey in the same second
// never collide, matching main_db.rs's random_string::generate(8,
// ALPHANUMERIC) rather than a time-sortable id's truncated prefix.
func newRevision() string {
	b := make([]byte, 8)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(revisionAlphabet))))
		if err != nil {
			panic(fmt.Sprintf("store: reading random revision bytes: %v", err))
		}
		b[i] = revisionAlphabet[n.Int64()]
	}
	return string(b)
}

// --- ongoing point log -----------------------------------------------------

// AppendOngoingPoint appends one recorded GPS fix to the ongoing log. It
// does not set Action: the ongoing log is not a finalized journey, so
// appending to it has no cached layer to invalidate.
func (txn *Txn) AppendOngoingPoint(timestampSec int64, lat, lng float64, result ProcessResult) error {
	return sqlitex.ExecuteTransient(txn.conn,
		`INSERT INTO ongoing_journey(timestamp_sec, lat, lng, process_result) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []interface{}{timestampSec, lat, lng, int64(result)}})
}

type ongoingRow struct {
	timestampSec  int64
	lat, lng      float64
	processResult ProcessResult
}

func (txn *Txn) readOngoingRows() ([]ongoingRow, error) {
	var rows []ongoingRow
	err := sqlitex.ExecuteTransient(txn.conn,
		`SELECT timestamp_sec, lat, lng, process_result FROM ongoing_journey ORDER BY id`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rows = append(rows, ongoingRow{
					timestampSec:  stmt.ColumnInt64(0),
					lat:           stmt.ColumnFloat(1),
					lng:           stmt.ColumnFloat(2),
					processResult: ProcessResult(stmt.ColumnInt64(3)),
				})
				return nil
			},
		})
	return rows, err
}

func (txn *Txn) truncateOngoingLog() error {
	return sqlitex.ExecuteTransient(txn.conn, `DELETE FROM ongoing_journey`, nil)
}

// splitOngoingSegments breaks rows into runs, starting a new run at each
// point flagged ProcessNewSegment and dropping points flagged
// ProcessIgnore entirely, per spec.md §3's get_ongoing_journey contract.
// Empty runs (e.g. a NewSegment point immediately followed by another)
// never appear in the result.
func splitOngoingSegments(rows []ongoingRow) [][]ongoingRow {
	var segments [][]ongoingRow
	var current []ongoingRow
	for _, r := range rows {
		if r.processResult == ProcessIgnore {
			continue
		}
		if r.processResult == ProcessNewSegment && len(current) > 0 {
			segments = append(segments, current)
			current = nil
		}
		current = append(current, r)
	}
	if len(current) > 0 {
		segments = append(segments, current)
	}
	return segments
}

// GetOngoingJourney assembles the current ongoing point log into a Vector,
// or returns ok=false if the log (after dropping empty/ignored runs) is
// empty.
func (txn *Txn) GetOngoingJourney() (*OngoingJourney, bool, error) {
	rows, err := txn.readOngoingRows()
	if err != nil {
		return nil, false, err
	}
	segments := splitOngoingSegments(rows)
	if len(segments) == 0 {
		return nil, false, nil
	}

	var v journey.Vector
	var start, end time.Time
	first := true
	for _, seg := range segments {
		ts := journey.TrackSegment{}
		for _, r := range seg {
			ts.TrackPoints = append(ts.TrackPoints, journey.NewTrackPoint(r.lat, r.lng))
			t := time.Unix(r.timestampSec, 0).UTC()
			if first || t.Before(start) {
				start = t
			}
			if first || t.After(end) {
				end = t
			}
			first = false
		}
		v.TrackSegments = append(v.TrackSegments, ts)
	}
	return &OngoingJourney{Start: start, End: end, Vector: v}, true, nil
}

// FinalizeOngoingJourney converts the ongoing log into a new Vector
// journey: it re-derives the same segments as GetOngoingJourney while also
// feeding a JourneyDatePicker (which needs each point's timestamp, already
// lost once a Vector is assembled), picks the journey_date, inserts the new
// journey, and truncates the ongoing log. Returns ok=false if there was
// nothing to finalize.
func (txn *Txn) FinalizeOngoingJourney() (*journey.Header, bool, error) {
	rows, err := txn.readOngoingRows()
	if err != nil {
		return nil, false, err
	}
	segments := splitOngoingSegments(rows)
	if len(segments) == 0 {
		return nil, false, nil
	}

	picker := journey.NewJourneyDatePicker()
	var v journey.Vector
	var start, end time.Time
	first := true
	for _, seg := range segments {
		ts := journey.TrackSegment{}
		for _, r := range seg {
			tp := journey.NewTrackPoint(r.lat, r.lng)
			ts.TrackPoints = append(ts.TrackPoints, tp)
			t := time.Unix(r.timestampSec, 0).UTC()
			picker.AddPoint(t.Local(), tp)
			if first || t.Before(start) {
				start = t
			}
			if first || t.After(end) {
				end = t
			}
			first = false
		}
		v.TrackSegments = append(v.TrackSegments, ts)
	}

	journeyDate, ok := picker.PickJourneyDate()
	if !ok {
		y, m, d := start.Local().Date()
		journeyDate = journey.DateToDays(y, m, d)
	}

	header := journey.Header{
		ID:          uuid.NewString(),
		Revision:    newRevision(),
		JourneyDate: journeyDate,
		CreatedAt:   time.Now().UTC(),
		Start:       &start,
		End:         &end,
		Type:        journey.TypeVector,
		Kind:        journey.KindDefault{},
	}
	if err := txn.InsertJourney(header, journey.VectorData{Vector: v}); err != nil {
		return nil, false, err
	}
	if err := txn.truncateOngoingLog(); err != nil {
		return nil, false, err
	}
	txn.Action = ActionMerge{JourneyIDs: []string{header.ID}}
	return &header, true, nil
}

// --- journey CRUD -----------------------------------------------------------

// InsertJourney writes header/data as a new row, rejecting a header whose
// declared Type doesn't match data.Type().
func (txn *Txn) InsertJourney(header journey.Header, data journey.Data) error {
	if header.Type != data.Type() {
		return fmt.Errorf("%w: header type %v, data type %v", journey.ErrTypeMismatch, header.Type, data.Type())
	}
	headerBlob, err := journey.EncodeHeader(header)
	if err != nil {
		return err
	}
	dataBlob, err := encodeDataBlob(data)
	if err != nil {
		return err
	}
	var endTs interface{}
	if header.End != nil {
		endTs = header.End.Unix()
	}
	return sqlitex.ExecuteTransient(txn.conn,
		`INSERT INTO journey(id, journey_date, end_timestamp_sec, type, header, data) VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []interface{}{
			header.ID, header.JourneyDate, endTs, int64(header.Type), headerBlob, dataBlob,
		}})
}

// CreateAndInsertJourney generates a fresh id and revision, stamps
// CreatedAt (defaulting to now), and delegates to InsertJourney.
func (txn *Txn) CreateAndInsertJourney(
	date int64,
	start, end, createdAt *time.Time,
	kind journey.Kind,
	note *string,
	data journey.Data,
) (journey.Header, error) {
	created := time.Now().UTC()
	if createdAt != nil {
		created = *createdAt
	}
	if kind == nil {
		kind = journey.KindDefault{}
	}
	header := journey.Header{
		ID:          uuid.NewString(),
		Revision:    newRevision(),
		JourneyDate: date,
		CreatedAt:   created,
		Start:       start,
		End:         end,
		Type:        data.Type(),
		Kind:        kind,
		Note:        note,
	}
	if err := txn.InsertJourney(header, data); err != nil {
		return journey.Header{}, err
	}
	txn.Action = ActionMerge{JourneyIDs: []string{header.ID}}
	return header, nil
}

// QueryJourneys returns headers ordered by (end_timestamp_sec desc, id
// desc), optionally filtered to an inclusive journey_date range.
func (txn *Txn) QueryJourneys(from, to *int64) ([]journey.Header, error) {
	query := "SELECT header FROM journey"
	var conds []string
	var args []interface{}
	if from != nil {
		conds = append(conds, "journey_date >= ?")
		args = append(args, *from)
	}
	if to != nil {
		conds = append(conds, "journey_date <= ?")
		args = append(args, *to)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY end_timestamp_sec DESC, id DESC"

	var headers []journey.Header
	err := sqlitex.ExecuteTransient(txn.conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			h, err := journey.DecodeHeader(columnBlob(stmt, 0))
			if err != nil {
				return err
			}
			headers = append(headers, h)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return headers, nil
}

// GetJourneyHeader returns the header for id, or ok=false if absent.
func (txn *Txn) GetJourneyHeader(id string) (*journey.Header, bool, error) {
	var header *journey.Header
	err := sqlitex.ExecuteTransient(txn.conn, `SELECT header FROM journey WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []interface{}{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			h, err := journey.DecodeHeader(columnBlob(stmt, 0))
			if err != nil {
				return err
			}
			header = &h
			return nil
		},
	})
	if err != nil {
		return nil, false, err
	}
	return header, header != nil, nil
}

// GetJourneyData returns the payload for id, or ok=false if absent.
func (txn *Txn) GetJourneyData(id string) (journey.Data, bool, error) {
	var data journey.Data
	err := sqlitex.ExecuteTransient(txn.conn, `SELECT data FROM journey WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []interface{}{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			d, err := decodeDataBlob(columnBlob(stmt, 0))
			if err != nil {
				return err
			}
			data = d
			return nil
		},
	})
	if err != nil {
		return nil, false, err
	}
	return data, data != nil, nil
}

// GetJourney returns both header and data for id, or ok=false if absent.
func (txn *Txn) GetJourney(id string) (*journey.Header, journey.Data, bool, error) {
	header, ok, err := txn.GetJourneyHeader(id)
	if err != nil || !ok {
		return nil, nil, false, err
	}
	data, ok, err := txn.GetJourneyData(id)
	if err != nil || !ok {
		return nil, nil, false, err
	}
	return header, data, true, nil
}

// DeleteJourney removes one journey by id.
func (txn *Txn) DeleteJourney(id string) error {
	if err := sqlitex.ExecuteTransient(txn.conn, `DELETE FROM journey WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []interface{}{id}}); err != nil {
		return err
	}
	txn.Action = ActionCompleteRebuilt{}
	return nil
}

// DeleteAllJourneys removes every finalized journey, leaving the ongoing
// log untouched.
func (txn *Txn) DeleteAllJourneys() error {
	if err := sqlitex.ExecuteTransient(txn.conn, `DELETE FROM journey`, nil); err != nil {
		return err
	}
	txn.Action = ActionCompleteRebuilt{}
	return nil
}

// ClearJourneys removes every finalized journey and truncates the ongoing
// log — a full reset, unlike DeleteAllJourneys.
func (txn *Txn) ClearJourneys() error {
	if err := txn.DeleteAllJourneys(); err != nil {
		return err
	}
	return txn.truncateOngoingLog()
}

// UpdateJourneyMetadata rewrites a journey's mutable header fields and
// bumps UpdatedAt. Any nil field is left unchanged.
func (txn *Txn) UpdateJourneyMetadata(id string, kind *journey.Kind, note *string, start, end *time.Time) error {
	header, ok, err := txn.GetJourneyHeader(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrJourneyNotFound
	}
	if kind != nil {
		header.Kind = *kind
	}
	if note != nil {
		header.Note = note
	}
	if start != nil {
		header.Start = start
	}
	if end != nil {
		header.End = end
	}
	now := time.Now().UTC()
	header.UpdatedAt = &now

	headerBlob, err := journey.EncodeHeader(*header)
	if err != nil {
		return err
	}
	var endTs interface{}
	if header.End != nil {
		endTs = header.End.Unix()
	}
	if err := sqlitex.ExecuteTransient(txn.conn,
		`UPDATE journey SET header = ?, end_timestamp_sec = ? WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []interface{}{headerBlob, endTs, id}}); err != nil {
		return err
	}
	txn.Action = ActionCompleteRebuilt{}
	return nil
}

// UpdateJourneyDataWithLatestPostprocessor rewrites a journey's data blob
// (and header Type, if the payload's shape changed).
func (txn *Txn) UpdateJourneyDataWithLatestPostprocessor(id string, data journey.Data) error {
	header, ok, err := txn.GetJourneyHeader(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrJourneyNotFound
	}
	header.Type = data.Type()
	headerBlob, err := journey.EncodeHeader(*header)
	if err != nil {
		return err
	}
	dataBlob, err := encodeDataBlob(data)
	if err != nil {
		return err
	}
	if err := sqlitex.ExecuteTransient(txn.conn,
		`UPDATE journey SET header = ?, data = ?, type = ? WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []interface{}{headerBlob, dataBlob, int64(header.Type), id}}); err != nil {
		return err
	}
	txn.Action = ActionCompleteRebuilt{}
	return nil
}

// --- calendar breakdown queries ---------------------------------------------

// EarliestJourneyDate returns the smallest journey_date across all
// journeys, or ok=false if there are none.
func (txn *Txn) EarliestJourneyDate() (int64, bool, error) {
	var date int64
	var found bool
	err := sqlitex.ExecuteTransient(txn.conn, `SELECT MIN(journey_date) FROM journey`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if stmt.ColumnType(0) == sqlite.TypeNull {
				return nil
			}
			date = stmt.ColumnInt64(0)
			found = true
			return nil
		},
	})
	return date, found, err
}

func (txn *Txn) distinctJourneyDates(from, to *int64) ([]int64, error) {
	query := "SELECT DISTINCT journey_date FROM journey"
	var conds []string
	var args []interface{}
	if from != nil {
		conds = append(conds, "journey_date >= ?")
		args = append(args, *from)
	}
	if to != nil {
		conds = append(conds, "journey_date <= ?")
		args = append(args, *to)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	var dates []int64
	err := sqlitex.ExecuteTransient(txn.conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			dates = append(dates, stmt.ColumnInt64(0))
			return nil
		},
	})
	return dates, err
}

// YearsWithJourney returns every calendar year that has at least one
// journey, ascending.
func (txn *Txn) YearsWithJourney() ([]int, error) {
	dates, err := txn.distinctJourneyDates(nil, nil)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	for _, d := range dates {
		y, _, _ := journey.DaysToDate(d)
		seen[y] = true
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}

// MonthsWithJourney returns every month in year that has at least one
// journey, ascending.
func (txn *Txn) MonthsWithJourney(year int) ([]time.Month, error) {
	from := journey.DateToDays(year, time.January, 1)
	to := journey.DateToDays(year, time.December, 31)
	dates, err := txn.distinctJourneyDates(&from, &to)
	if err != nil {
		return nil, err
	}
	seen := make(map[time.Month]bool)
	for _, d := range dates {
		_, m, _ := journey.DaysToDate(d)
		seen[m] = true
	}
	months := make([]time.Month, 0, len(seen))
	for m := range seen {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })
	return months, nil
}

// DaysWithJourney returns every day-of-month in (year, month) that has at
// least one journey, ascending.
func (txn *Txn) DaysWithJourney(year int, month time.Month) ([]int, error) {
	from := journey.DateToDays(year, month, 1)
	to := journey.DateToDays(year, month+1, 0) // day 0 of next month == last day of this one
	dates, err := txn.distinctJourneyDates(&from, &to)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	for _, d := range dates {
		_, _, day := journey.DaysToDate(d)
		seen[day] = true
	}
	days := make([]int, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Ints(days)
	return days, nil
}

// --- settings ---------------------------------------------------------------

func (ps *PrimaryStore) setSetting(key, value string) error {
	return sqlitex.ExecuteTransient(ps.conn,
		`INSERT INTO setting(key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		&sqlitex.ExecOptions{Args: []interface{}{key, value}})
}

func (ps *PrimaryStore) getSetting(key string) (string, bool, error) {
	var value string
	var found bool
	err := sqlitex.ExecuteTransient(ps.conn, `SELECT value FROM setting WHERE key = ?`, &sqlitex.ExecOptions{
		Args: []interface{}{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value = stmt.ColumnText(0)
			found = true
			return nil
		},
	})
	return value, found, err
}

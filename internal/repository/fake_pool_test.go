package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type videoRow struct {
	id           string
	title        string
	channelID    string
	channelTitle string
	categoryID   int
	region       string
	publishedAt  *time.Time
	createdSeq   int
}

type snapshotKey struct {
	videoID    string
	capturedAt time.Time
}

type snapshotRow struct {
	views    int64
	comments int64
	likes    *int64
}

// fakePool emulates just enough of the schema to check conflict handling and
// transaction visibility.
type fakePool struct {
	videos    map[string]*videoRow
	snapshots map[snapshotKey]snapshotRow
	seq       int

	failExecAt int
	commitErr  error
	beginErr   error
	queryErr   error
	rankRows   [][]any

	lastQueryArgs []any
	commits       int
	rollbacks     int
}

func newFakePool() *fakePool {
	return &fakePool{
		videos:    make(map[string]*videoRow),
		snapshots: make(map[snapshotKey]snapshotRow),
	}
}

func (p *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	return &fakeTx{pool: p}, nil
}

func (p *fakePool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	p.lastQueryArgs = args
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	switch sql {
	case listTrackedVideoIDs:
		limit := args[0].(int)
		rows := make([]*videoRow, 0, len(p.videos))
		for _, v := range p.videos {
			rows = append(rows, v)
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].createdSeq > rows[j].createdSeq })
		out := &fakeRows{}
		for i, v := range rows {
			if i >= limit {
				break
			}
			out.data = append(out.data, []any{v.id})
		}
		return out, nil
	case countSnapshotsAt:
		ts := args[0].(time.Time)
		n := 0
		for k := range p.snapshots {
			if k.capturedAt.Equal(ts) {
				n++
			}
		}
		return &fakeRows{data: [][]any{{n}}}, nil
	case topHotness:
		return &fakeRows{data: p.rankRows}, nil
	}
	return nil, fmt.Errorf("unexpected query: %s", sql)
}

var errUniqueViolation = errors.New("duplicate key value violates unique constraint")

func normalizeSQL(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

// conflictClause returns what follows ON CONFLICT in a normalized statement,
// or "" when the statement has none.
func conflictClause(stmt string) string {
	_, after, ok := strings.Cut(stmt, "ON CONFLICT ")
	if !ok {
		return ""
	}
	return after
}

// updatedColumns lists the targets of a DO UPDATE SET clause.
func updatedColumns(conflict string) map[string]bool {
	cols := make(map[string]bool)
	_, set, ok := strings.Cut(conflict, "DO UPDATE SET ")
	if !ok {
		return cols
	}
	for _, assignment := range strings.Split(set, ",") {
		col, _, _ := strings.Cut(assignment, "=")
		cols[strings.TrimSpace(col)] = true
	}
	return cols
}

func (p *fakePool) addVideo(id string) {
	p.seq++
	p.videos[id] = &videoRow{id: id, createdSeq: p.seq}
}

type fakeTx struct {
	pgx.Tx
	pool    *fakePool
	pending []func() error
	execs   int
	done    bool
}

// Exec applies statements according to their own ON CONFLICT clause, so a
// change to the SQL shows up as a change in fake behaviour.
func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs++
	if t.pool.failExecAt > 0 && t.execs == t.pool.failExecAt {
		return pgconn.CommandTag{}, errors.New("deadlock detected")
	}
	stmt := normalizeSQL(sql)
	conflict := conflictClause(stmt)
	switch {
	case strings.HasPrefix(stmt, "INSERT INTO snapshots "):
		key := snapshotKey{videoID: args[0].(string), capturedAt: args[1].(time.Time)}
		row := snapshotRow{views: args[2].(int64), comments: args[3].(int64), likes: args[4].(*int64)}
		t.pending = append(t.pending, func() error {
			if _, exists := t.pool.snapshots[key]; exists {
				if conflict == "(video_id, captured_at) DO NOTHING" {
					return nil
				}
				return errUniqueViolation
			}
			t.pool.snapshots[key] = row
			return nil
		})
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.HasPrefix(stmt, "INSERT INTO videos "):
		in := videoRow{
			id:           args[0].(string),
			title:        args[1].(string),
			channelID:    args[2].(string),
			channelTitle: args[3].(string),
			categoryID:   args[4].(int),
			region:       args[5].(string),
			publishedAt:  args[6].(*time.Time),
		}
		cols := updatedColumns(conflict)
		t.pending = append(t.pending, func() error {
			existing, ok := t.pool.videos[in.id]
			if !ok {
				t.pool.seq++
				in.createdSeq = t.pool.seq
				t.pool.videos[in.id] = &in
				return nil
			}
			if !strings.HasPrefix(conflict, "(video_id) DO ") {
				return errUniqueViolation
			}
			for col := range cols {
				switch col {
				case "title":
					existing.title = in.title
				case "channel_id":
					existing.channelID = in.channelID
				case "channel_title":
					existing.channelTitle = in.channelTitle
				case "category_id":
					existing.categoryID = in.categoryID
				case "region":
					existing.region = in.region
				case "published_at":
					existing.publishedAt = in.publishedAt
				default:
					return fmt.Errorf("column %q does not exist", col)
				}
			}
			return nil
		})
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("unexpected exec: %s", sql)
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.pool.commitErr != nil {
		return t.pool.commitErr
	}
	for _, apply := range t.pending {
		if err := apply(); err != nil {
			return err
		}
	}
	t.done = true
	t.pool.commits++
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.pending = nil
	t.pool.rollbacks++
	return nil
}

type fakeRows struct {
	pgx.Rows
	data [][]any
	idx  int
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	if len(row) != len(dest) {
		return fmt.Errorf("scan: %d columns into %d targets", len(row), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *int:
			*p = row[i].(int)
		case *float64:
			*p = row[i].(float64)
		default:
			return fmt.Errorf("scan: unsupported target %T", d)
		}
	}
	return nil
}

func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Close()     {}

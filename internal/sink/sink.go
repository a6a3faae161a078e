package sink

import (
	"database/sql"
	"log/slog"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"aquila/internal/trace"
)

const schema = `CREATE TABLE IF NOT EXISTS alterations (
	seq     INTEGER NOT NULL,
	line    INTEGER NOT NULL,
	status  TEXT NOT NULL,
	info    TEXT NOT NULL,
	op      TEXT NOT NULL,
	before_value TEXT NOT NULL,
	args    TEXT NOT NULL
)`

// Sink appends every committed alteration to a SQL table. It is wired in as
// the session's observer hook, so it only ever sees events that survived the
// checkpoint protocol.
type Sink struct {
	db     *sql.DB
	insert string
	seq    int64
}

// Open connects using any of the registered drivers (sqlite3, mysql,
// postgres) and ensures the alterations table exists.
func Open(driver, dsn string) (*Sink, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	insert := `INSERT INTO alterations (seq, line, status, info, op, before_value, args) VALUES (?, ?, ?, ?, ?, ?, ?)`
	if driver == "postgres" {
		insert = `INSERT INTO alterations (seq, line, status, info, op, before_value, args) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	}
	return &Sink{db: db, insert: insert}, nil
}

// Observer returns the hook to register on a session. Write failures are
// logged and never abort the run: the sink observes, it does not gate.
func (s *Sink) Observer() trace.Observer {
	return func(ev trace.Event) {
		s.seq++
		args := make([]string, len(ev.Alt.Args))
		for i, a := range ev.Alt.Args {
			args[i] = a.Inspect()
		}
		_, err := s.db.Exec(s.insert,
			s.seq, ev.Line, ev.Status.String(), ev.Info,
			ev.Alt.Op, ev.Alt.Before.Inspect(), strings.Join(args, ", "),
		)
		if err != nil {
			slog.Warn("alteration sink write failed",
				slog.Int64("seq", s.seq),
				slog.String("op", ev.Alt.Op),
				slog.Any("error", err))
		}
	}
}

func (s *Sink) Close() error {
	return s.db.Close()
}

package report

import (
	"database/sql"
	"encoding/json"
	"math"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/pkg/errors"
	"github.com/xiyueyiwan/COMP551-Project4/nnet"
	_ "modernc.org/sqlite"
)

// Store keeps a history of training runs in a sqlite database.
type Store struct {
	db *sql.DB
}

// Run is the summary of one stored training run.
type Run struct {
	ID        int64
	Name      string
	Config    nnet.Config
	State     string
	Iters     int
	BestValid float64
	BestIter  int
	TestScore float64
	Elapsed   time.Duration
	Host      string
	Started   time.Time
}

// OpenStore opens or creates the database.
func OpenStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			config TEXT NOT NULL,
			state TEXT NOT NULL,
			iters INTEGER NOT NULL,
			best_valid REAL,
			best_iter INTEGER NOT NULL,
			test_score REAL,
			elapsed_ms INTEGER NOT NULL,
			host TEXT NOT NULL,
			started TEXT NOT NULL
		)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create runs table")
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS epochs(
			run_id INTEGER NOT NULL REFERENCES runs(id),
			epoch INTEGER NOT NULL,
			iter INTEGER NOT NULL,
			train_error REAL,
			valid_error REAL,
			elapsed_ms INTEGER NOT NULL,
			PRIMARY KEY(run_id, epoch)
		)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create epochs table")
	}
	return &Store{db: db}, nil
}

// Close the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Host describes the cpu the runs are recorded on.
func Host() string {
	return cpuid.CPU.BrandName + " " + cpuid.CPU.VendorString
}

// AddRun saves the run summary and per epoch stats in a single transaction and returns the run id.
func (s *Store) AddRun(conf nnet.Config, res *nnet.Result, started time.Time) (id int64, err error) {
	confData, err := json.Marshal(conf)
	if err != nil {
		return 0, err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	r, err := tx.Exec(`INSERT INTO runs(name, config, state, iters, best_valid, best_iter, test_score, elapsed_ms, host, started)
		VALUES(?,?,?,?,?,?,?,?,?,?)`,
		conf.ReportName(), string(confData), res.State.String(), res.Iters, nullable(res.Stop.BestValidLoss),
		res.Stop.BestIter, nullable(res.Stop.TestScore), res.Elapsed.Milliseconds(), Host(), started.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, errors.Wrap(err, "insert run")
	}
	if id, err = r.LastInsertId(); err != nil {
		return 0, err
	}
	for _, st := range res.Stats {
		_, err = tx.Exec("INSERT INTO epochs(run_id, epoch, iter, train_error, valid_error, elapsed_ms) VALUES(?,?,?,?,?,?)",
			id, st.Epoch, st.Iter, nullable(st.TrainError), nullable(st.ValidError), st.Elapsed.Milliseconds())
		if err != nil {
			return 0, errors.Wrapf(err, "insert epoch %d", st.Epoch)
		}
	}
	return id, tx.Commit()
}

// Runs returns all of the stored runs, most recent first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT id, name, config, state, iters, best_valid, best_iter, test_score, elapsed_ms, host, started
		FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var r Run
		var conf, started string
		var bestValid, testScore sql.NullFloat64
		var elapsed int64
		if err = rows.Scan(&r.ID, &r.Name, &conf, &r.State, &r.Iters, &bestValid, &r.BestIter, &testScore, &elapsed, &r.Host, &started); err != nil {
			return nil, err
		}
		if err = json.Unmarshal([]byte(conf), &r.Config); err != nil {
			return nil, errors.Wrapf(err, "run %d config", r.ID)
		}
		r.BestValid, r.TestScore = value(bestValid), value(testScore)
		r.Elapsed = time.Duration(elapsed) * time.Millisecond
		if r.Started, err = time.Parse(time.RFC3339, started); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Epochs returns the per epoch stats for a run.
func (s *Store) Epochs(runID int64) ([]nnet.Stats, error) {
	rows, err := s.db.Query("SELECT epoch, iter, train_error, valid_error, elapsed_ms FROM epochs WHERE run_id = ? ORDER BY epoch", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []nnet.Stats
	for rows.Next() {
		var st nnet.Stats
		var train, valid sql.NullFloat64
		var elapsed int64
		if err = rows.Scan(&st.Epoch, &st.Iter, &train, &valid, &elapsed); err != nil {
			return nil, err
		}
		st.TrainError, st.ValidError = value(train), value(valid)
		st.Elapsed = time.Duration(elapsed) * time.Millisecond
		list = append(list, st)
	}
	return list, rows.Err()
}

// sqlite has no NaN or infinity so these are stored as NULL
func nullable(x float64) sql.NullFloat64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: x, Valid: true}
}

func value(x sql.NullFloat64) float64 {
	if !x.Valid {
		return math.NaN()
	}
	return x.Float64
}

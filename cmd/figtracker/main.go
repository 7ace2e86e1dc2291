package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/afritaa/figtracker/internal/analysis"
	"github.com/afritaa/figtracker/internal/api"
	"github.com/afritaa/figtracker/internal/importer"
	"github.com/afritaa/figtracker/internal/metrics"
	"github.com/afritaa/figtracker/internal/store"
	"github.com/afritaa/figtracker/internal/trigger"
)

type cli struct {
	DB       string        `help:"Path to SQLite database." default:"data/figtracker.db" env:"FIGTRACKER_DB"`
	Port     string        `help:"HTTP server port." default:"8080" env:"FIGTRACKER_PORT"`
	Model    string        `help:"Chat model used for analysis." default:"gpt-4o-mini" env:"FIGTRACKER_MODEL"`
	Cooldown time.Duration `help:"Debounce window before an automatic analysis run." default:"5s" env:"FIGTRACKER_COOLDOWN"`

	MinObservations int `help:"Observation count required before automatic analysis." default:"3" env:"FIGTRACKER_MIN_OBSERVATIONS"`

	NoTrigger bool `help:"Disable the debounced analysis trigger."`

	Import      string `help:"Import observations from a CSV file and exit." type:"existingfile"`
	ImportSheet string `help:"Import observations from a Google Sheets link and exit."`
	Analyze     bool   `help:"Run one analysis and exit."`
}

func main() {
	var flags cli
	kong.Parse(&flags,
		kong.Name("figtracker"),
		kong.Description("Fig tree phenology and fruit bat activity tracker."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	db, err := sql.Open("sqlite", flags.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if err := st.Load(); err != nil {
		log.Fatalf("load state: %v", err)
	}
	log.Printf("store loaded: %d observations", st.Count())

	var client *analysis.Client
	if c, err := analysis.NewClient(flags.Model); err != nil {
		log.Printf("analysis disabled: %v", err)
	} else {
		client = c
	}

	latest := &analysis.Latest{}

	var runAnalysis api.RunAnalysisFunc
	if client != nil {
		runAnalysis = func(ctx context.Context, reason string) (*analysis.Result, error) {
			return runOnce(ctx, st, client, latest, reason)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case flags.Import != "":
		if err := importFile(st, flags.Import); err != nil {
			log.Fatalf("import: %v", err)
		}
		return
	case flags.ImportSheet != "":
		if err := importSheet(ctx, st, flags.ImportSheet); err != nil {
			log.Fatalf("import sheet: %v", err)
		}
		return
	case flags.Analyze:
		if runAnalysis == nil {
			log.Fatal("analysis requires OPENAI_API_KEY")
		}
		result, err := runAnalysis(ctx, "cli")
		if err != nil {
			log.Fatalf("analyze: %v", err)
		}
		fmt.Println(result.ReportText)
		return
	}

	var trig *trigger.Trigger
	if runAnalysis != nil && !flags.NoTrigger {
		trig = trigger.New(flags.Cooldown, flags.MinObservations, func() {
			runCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if _, err := runAnalysis(runCtx, "trigger"); err != nil {
				log.Printf("trigger: analysis failed: %v", err)
			}
		})
		defer trig.Stop()
	} else if flags.NoTrigger {
		log.Println("automatic analysis disabled (--no-trigger)")
	}

	server := api.NewServer(st, latest, trig, runAnalysis, flags.Port)

	log.Printf("starting server on :%s", flags.Port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// runOnce executes a full analysis cycle: call the model, reconcile, then
// apply prediction and weather to the store. Overlapping runs are allowed;
// each completion replaces the previous state.
func runOnce(ctx context.Context, st *store.Store, client *analysis.Client, latest *analysis.Latest, reason string) (*analysis.Result, error) {
	run, err := st.StartAnalysisRun(reason, st.Count())
	if err != nil {
		log.Printf("analysis: record run: %v", err)
	}

	resp, err := client.Analyze(ctx, st.Records(), st.Location())
	if err != nil {
		metrics.AnalysisRuns.WithLabelValues("error").Inc()
		if run != nil {
			run.ErrorMessage = sqlString(err.Error())
			st.CompleteAnalysisRun(run)
		}
		return nil, err
	}

	result := analysis.Reconcile(resp)
	latest.Set(result)

	if result.Prediction != nil {
		if err := st.SetPrediction(*result.Prediction); err != nil {
			log.Printf("analysis: save prediction: %v", err)
		}
	}
	if err := st.ApplyWeather(result.Weather); err != nil {
		log.Printf("analysis: apply weather: %v", err)
	}

	metrics.AnalysisRuns.WithLabelValues("ok").Inc()
	if run != nil {
		run.Success = true
		run.ResponseSizeBytes = sqlInt64(int64(len(resp.Text)))
		run.PayloadParsed = sqlBool(result.Prediction != nil || len(result.Weather) > 0 || len(result.Correlations) > 0)
		if err := st.CompleteAnalysisRun(run); err != nil {
			log.Printf("analysis: complete run: %v", err)
		}
	}
	return &result, nil
}

func importFile(st *store.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	rows, err := importer.Parse(string(data))
	if err != nil {
		return err
	}
	if err := st.MergeImportBatch(rows); err != nil {
		return err
	}
	log.Printf("imported %d rows, %d observations total", len(rows), st.Count())
	return nil
}

func importSheet(ctx context.Context, st *store.Store, link string) error {
	text, err := importer.NewSheetClient().FetchCSV(ctx, link)
	if err != nil {
		return err
	}
	rows, err := importer.Parse(text)
	if err != nil {
		return err
	}
	if err := st.MergeImportBatch(rows); err != nil {
		return err
	}
	log.Printf("imported %d rows, %d observations total", len(rows), st.Count())
	return nil
}

func sqlString(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }
func sqlInt64(n int64) sql.NullInt64    { return sql.NullInt64{Int64: n, Valid: true} }
func sqlBool(b bool) sql.NullBool       { return sql.NullBool{Bool: b, Valid: true} }
